package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vendorsync/internal/app"
	"github.com/vladislavdragonenkov/vendorsync/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

func main() {
	// .env необязателен: на устройстве настройки обычно приходят из окружения.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env file")
	}

	setupLogger(os.Getenv(envLogLevel))
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":       version.GetVersion(),
		"http_addr":     cfg.HTTPAddr,
		"metrics_addr":  cfg.MetricsAddr,
		"storage":       cfg.StorageDriver,
		"submitter":     cfg.SubmitterDriver,
		"connectivity":  cfg.ConnectivityDriver,
		"grace_period":  cfg.GracePeriod.String(),
		"sync_on_write": cfg.SyncOnEnqueue,
	}).Info("запускаем vendor-sync")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("vendor-sync остановлен")
}
