package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"quiz-engine/internal/app"
	"quiz-engine/internal/cli"
	"quiz-engine/internal/config"
	"quiz-engine/internal/opentdb"
	"quiz-engine/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer log.Sync()

	err = cli.Run(ctx, os.Args[1:], os.Stdout, cli.Env{
		OpenStore: func(context.Context) (cli.Store, error) {
			return app.OpenStore(cfg, log)
		},
		Trivia:    opentdb.NewClient(nil),
		JWTSecret: []byte(cfg.JWT.Secret),
		TokenTTL:  cfg.JWT.TTL,
		Log:       log,
	})
	if errors.Is(err, cli.ErrUsage) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
