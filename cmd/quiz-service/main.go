package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"quiz-engine/internal/app"
	"quiz-engine/internal/config"
	"quiz-engine/internal/httpapi"
	"quiz-engine/internal/platform/logger"
	"quiz-engine/internal/quiz"
)

func main() {
	configDir := flag.String("config-dir", ".", "directory holding an optional .env file")
	addr := flag.String("addr", "", "HTTP listen address (overrides SERVER_ADDR)")
	flag.Parse()

	application := fx.New(
		fx.NopLogger,
		fx.Provide(
			func() (*config.Config, error) {
				cfg, err := config.Load(*configDir)
				if err != nil {
					return nil, err
				}
				if *addr != "" {
					cfg.Server.Addr = *addr
				}
				return cfg, nil
			},
			func(cfg *config.Config) (*logger.Logger, error) {
				return logger.New(cfg.LogMode)
			},
			newRouter,
		),
		app.Module,
		fx.Invoke(startServer),
	)

	if err := application.Start(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	<-application.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown error:", err)
		os.Exit(1)
	}
}

func newRouter(cfg *config.Config, service *quiz.Service, log *logger.Logger) (*gin.Engine, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.NewRouter(service, log, httpapi.RouterConfig{
		JWTSecret:    []byte(cfg.JWT.Secret),
		AllowOrigins: cfg.Server.AllowOrigins,
	}), nil
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, router *gin.Engine, log *logger.Logger) {
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("quiz-service listening", "addr", cfg.Server.Addr, "database", cfg.Database.Driver)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("quiz-service shutting down")
			defer log.Sync()
			return server.Shutdown(ctx)
		},
	})
}
