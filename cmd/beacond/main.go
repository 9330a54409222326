package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"roombeacon/beacond/internal/app"
	"roombeacon/beacond/internal/config"
	"roombeacon/beacond/internal/radio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	driver, err := buildDriver(cfg)
	if err != nil {
		logger.Error("failed to initialize radio driver", "radio", cfg.Radio, "error", err)
		os.Exit(1)
	}

	application := app.New(cfg, driver, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("beacon agent terminated", "error", err)
		os.Exit(1)
	}

	logger.Info("beacon agent stopped cleanly")
}

func buildDriver(cfg config.Config) (radio.Driver, error) {
	if cfg.Radio == "sim" {
		return radio.NewSim(), nil
	}
	return radio.NewBlueZ()
}

func logLevel(level string) slog.Leveler {
	var lvl slog.Level

	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	lv := new(slog.LevelVar)
	lv.Set(lvl)
	return lv
}
