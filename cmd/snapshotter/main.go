package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/crm-bff/internal/app"
	"github.com/samvad-hq/crm-bff/internal/config"
	"github.com/samvad-hq/crm-bff/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snapshotter start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("snapshotter starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshotter, err := app.NewSnapshotter(ctx, cfg, log.Named("snapshotter"))
	if err != nil {
		logger.ErrorObj("failed to initialize snapshotter", "error", err)
		return err
	}

	if err := snapshotter.Run(ctx); err != nil {
		return fmt.Errorf("snapshotter run: %w", err)
	}

	return nil
}
