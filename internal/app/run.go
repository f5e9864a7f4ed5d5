package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/config"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.Load()

	closer, err := logging.InitGlobalLogger(logging.Options{
		Level:         cfg.LogLevel,
		JSON:          cfg.IsNais(),
		SecureLogFile: cfg.SecureLogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	defer logging.MustSync()

	logging.Info("Starting tiltakspenger-overgangsstonad",
		logging.Field{Key: "profile", Value: string(cfg.Profile)},
		logging.Field{Key: "topic", Value: cfg.Kafka.Topic},
	)

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.Start(ctx)
	logging.Info("Stopping tiltakspenger-overgangsstonad")
	return err
}
