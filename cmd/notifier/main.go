package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mtskcm/iot-service-notifier/internal/config"
	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := service.New(cfg)
	if err := svc.Run(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("service exited with error")
		os.Exit(1)
	}
}
