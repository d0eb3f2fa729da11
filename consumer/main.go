package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

func main() {
	// create a new context
	ctx := context.Background()

	// create a new logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx = context.WithValue(ctx, "logger", logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// getting the appConfig
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()
	appConfig, err := config.NewConfig(*configPath)
	if err != nil {
		logger.Error("Error reading configuration file", "error", err)
		os.Exit(1)
	}

	// getting the consumer manager
	manager, err := NewConsumerManager(ctx, appConfig)
	if err != nil {
		logger.Error("Error creating consumer manager", "error", err)
		os.Exit(1)
	}

	if err := manager.Run(ctx); err != nil {
		logger.Error("Error running consumer manager", "error", err)
		os.Exit(1)
	}
}
