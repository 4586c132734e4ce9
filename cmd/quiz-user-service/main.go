package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"quiz-engine/internal/userclient"
)

func main() {
	token := flag.String("token", os.Getenv("QUIZ_TOKEN"), "bearer token from `quiz-cli token` (defaults to $QUIZ_TOKEN)")
	server := flag.String("server", "http://127.0.0.1:8080", "quiz service base URL")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "error: --token or QUIZ_TOKEN is required")
		os.Exit(1)
	}

	err := userclient.Run(context.Background(), os.Stdin, os.Stdout, userclient.Config{
		Token:       *token,
		ServerURL:   *server,
		HTTPTimeout: *timeout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
