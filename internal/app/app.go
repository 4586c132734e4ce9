package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"

	"quiz-engine/internal/config"
	"quiz-engine/internal/platform/logger"
	"quiz-engine/internal/quiz"
	"quiz-engine/internal/quiz/gormstore"
	"quiz-engine/internal/quiz/rediscache"
	"quiz-engine/internal/quiz/sqlite"
)

// OpenStore picks the backing store from DATABASE_DRIVER.
func OpenStore(cfg *config.Config, log *logger.Logger) (quiz.Store, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "", "sqlite":
		log.Info("opening sqlite store", "path", cfg.Database.SQLitePath)
		store, err := sqlite.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		log.Info("opening postgres store", "host", cfg.Database.Host, "database", cfg.Database.Name)
		store, err := gormstore.Open(cfg.Database.PostgresDSN(), log)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// OpenCatalogCache returns a redis-backed cache when REDIS_ADDR is set and an
// in-process one otherwise. The close func is never nil.
func OpenCatalogCache(cfg *config.Config, log *logger.Logger) (quiz.CatalogCache, func() error, error) {
	ttl := cfg.Quiz.CatalogCacheTTL
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return quiz.NewMemoryCatalogCache(ttl), func() error { return nil }, nil
	}

	cache, err := rediscache.Dial(cfg.Redis.Addr, ttl, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("catalog cache backed by redis", "addr", cfg.Redis.Addr)
	return cache, cache.Close, nil
}

// NewService builds the engine over store with the configured cache.
func NewService(cfg *config.Config, store quiz.Store, cache quiz.CatalogCache, log *logger.Logger) (*quiz.Service, error) {
	return quiz.NewService(store, store, cfg.Quiz, log, quiz.WithCatalogCache(cache))
}

// Module provides the engine and its dependencies to an fx application. The
// store and cache are closed when the application stops.
var Module = fx.Options(
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (quiz.Store, error) {
			store, err := OpenStore(cfg, log)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					log.Info("closing store")
					return store.Close()
				},
			})
			return store, nil
		},
		func(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (quiz.CatalogCache, error) {
			cache, closeFn, err := OpenCatalogCache(cfg, log)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error { return closeFn() },
			})
			return cache, nil
		},
		NewService,
	),
)
