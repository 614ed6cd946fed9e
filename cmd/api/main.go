package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/receiptwise/receiptmatch-backend/internal/api"
	"github.com/receiptwise/receiptmatch-backend/internal/application/schedule"
	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/config"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/logging"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path")
	flag.Parse()

	// Load .env if present so local runs pick up RECEIPTMATCH_* vars
	_ = godotenv.Load()

	var cfg *config.Config
	if *configFile != "" {
		cfg = config.LoadOrEnvWithPath(*configFile)
	} else {
		cfg = config.LoadOrEnv()
	}

	logger := logging.NewScopedLogger(cfg.Observability.Logging, "api")

	matchCfg, err := cfg.Matching.ToMatchingConfig()
	if err != nil {
		logger.Error("Invalid matching configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	svc := service.NewMatchService(store, matchCfg, logging.NewScopedLogger(cfg.Observability.Logging, "automatch"))
	svc.StartBackgroundCleanup(5 * time.Minute)
	defer svc.StopBackgroundCleanup()

	var scheduler *schedule.Scheduler
	if cfg.Schedule.Enabled {
		scheduler = schedule.NewScheduler(svc, cfg.Schedule.AutoMatchCron, logging.NewScopedLogger(cfg.Observability.Logging, "schedule"))
		if err := scheduler.Start(); err != nil {
			logger.Error("Failed to start scheduler", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer scheduler.Stop()
	}

	serverCfg := api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	server := api.NewServer(serverCfg, store, svc, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server", slog.Int("port", cfg.Server.Port))
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}
