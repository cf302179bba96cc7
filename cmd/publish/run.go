package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/kafka"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/outbox"
	"github.com/romariotrain/asset-pipeline/internal/config"
	"github.com/romariotrain/asset-pipeline/internal/storage/postgres"
)

func run(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := config.LoadPublisher()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.KafkaBrokers,
		Topic:      cfg.KafkaTopic,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warn().Err(err).Msg("kafka producer close")
		}
	}()

	if err := producer.HealthCheck(ctx); err != nil {
		logger.Warn().Err(err).Msg("kafka is not reachable yet, publisher keeps retrying")
	}

	pub, err := outbox.NewPublisher(outbox.PublisherConfig{
		Store:     postgres.NewOutboxRepo(db),
		Producer:  producer,
		Interval:  cfg.Interval,
		BatchSize: cfg.BatchSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	return pub.Start(ctx)
}
