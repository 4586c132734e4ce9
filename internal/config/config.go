package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"quiz-engine/internal/quiz"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	LogMode  string
	Quiz     quiz.Config
}

type ServerConfig struct {
	Addr         string
	AllowOrigins []string
}

type DatabaseConfig struct {
	Driver     string
	SQLitePath string
	DSN        string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
}

// PostgresDSN prefers an explicit DATABASE_DSN over the split fields.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

func setDefaults(v *viper.Viper) {
	defaults := quiz.DefaultConfig()

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("LOG_MODE", "dev")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "quiz.db")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CATALOG_CACHE_TTL", defaults.CatalogCacheTTL.String())
	v.SetDefault("PRACTICE_TOTAL_QUESTIONS", defaults.PracticeTotalQuestions)
	v.SetDefault("PRACTICE_DURATION_MINUTES", int(defaults.PracticeDuration/time.Minute))
	v.SetDefault("CORRECT_MARK", defaults.CorrectMark)
	v.SetDefault("NEGATIVE_MARK", defaults.NegativeMark)
	v.SetDefault("MIXED_EASY", defaults.MixedEasy)
	v.SetDefault("MIXED_MEDIUM", defaults.MixedMedium)
	v.SetDefault("MIXED_HARD", defaults.MixedHard)
}

// Load reads an optional .env file from dir, then the process environment.
// Environment values win over the file.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:         v.GetString("SERVER_ADDR"),
			AllowOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
			SQLitePath: v.GetString("SQLITE_PATH"),
			DSN:        v.GetString("DATABASE_DSN"),
			Host:       v.GetString("DATABASE_HOST"),
			Port:       v.GetString("DATABASE_PORT"),
			User:       v.GetString("DATABASE_USER"),
			Password:   v.GetString("DATABASE_PASSWORD"),
			Name:       v.GetString("DATABASE_NAME"),
			SSLMode:    v.GetString("DATABASE_SSLMODE"),
		},
		Redis:   RedisConfig{Addr: strings.TrimSpace(v.GetString("REDIS_ADDR"))},
		JWT:     JWTConfig{Secret: v.GetString("JWT_SECRET"), TTL: v.GetDuration("JWT_TTL")},
		LogMode: v.GetString("LOG_MODE"),
		Quiz: quiz.Config{
			PracticeTotalQuestions: v.GetInt("PRACTICE_TOTAL_QUESTIONS"),
			PracticeDuration:       time.Duration(v.GetInt("PRACTICE_DURATION_MINUTES")) * time.Minute,
			CorrectMark:            v.GetFloat64("CORRECT_MARK"),
			NegativeMark:           v.GetFloat64("NEGATIVE_MARK"),
			MixedEasy:              v.GetInt("MIXED_EASY"),
			MixedMedium:            v.GetInt("MIXED_MEDIUM"),
			MixedHard:              v.GetInt("MIXED_HARD"),
			CatalogCacheTTL:        v.GetDuration("CATALOG_CACHE_TTL"),
		},
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.Name == "") {
			return nil, fmt.Errorf("DATABASE_DSN or DATABASE_HOST and DATABASE_NAME are required for postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Database.Driver)
	}
	if err := cfg.Quiz.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
