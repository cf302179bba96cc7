package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/asset-pipeline/internal/logging"
)

type Runner func(ctx context.Context, logger zerolog.Logger) error

// Run loads .env, builds the logger and runs the service until it returns or
// the process receives SIGINT/SIGTERM. The result is the process exit code.
func Run(serviceName string, run Runner) int {
	_ = godotenv.Load()

	logger := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")).
		With().
		Str("service", serviceName).
		Logger()

	logger.Info().Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, logger) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		// даём runner'у закрыть коннекты
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("stopped with error")
				return 1
			}
		case <-time.After(15 * time.Second):
			logger.Warn().Msg("shutdown grace period exceeded")
		}
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("failed")
			return 1
		}
		logger.Info().Msg("stopped")
		return 0
	}
}
