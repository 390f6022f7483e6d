package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/config"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/logging"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/orchestrator"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadCollector()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("RemoteWatch Collector starting...")
	if cfg.EnvFile != "" {
		logger.Info("Loaded environment file", zap.String("path", cfg.EnvFile))
	}
	logger.Info("Configuration loaded",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Duration("presence_window", cfg.PresenceWindow))

	orch := orchestrator.NewCollectorOrchestrator(cfg, logger)

	if err := orch.Start(); err != nil {
		logger.Fatal("Failed to start orchestrator", zap.Error(err))
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Collector error", zap.Error(err))
	}

	if err := orch.Stop(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Collector stopped successfully")
}
