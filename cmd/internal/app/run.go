package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chatauth/cmd/internal/config"
)

// Run is the CLI entrypoint used by cmd/chatauth.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run() error {
	dir := os.Getenv("CHATAUTH_CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}

	cfg, err := config.Load(dir)
	if err != nil {
		// Config violations are fatal before any listener opens.
		return err
	}
	log := NewLogger(cfg.App.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}
