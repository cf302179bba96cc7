package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/asset-pipeline/internal/storage/postgres"
)

// Store is the read side of the outbox table.
type Store interface {
	GetPending(ctx context.Context, limit int) ([]postgres.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Publisher relays job status events from the outbox table to the broker.
// Delivery is at-least-once: a record that was published but not marked is
// published again on the next tick.
type Publisher struct {
	store     Store
	producer  EventPublisher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

type PublisherConfig struct {
	Store     Store
	Producer  EventPublisher
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Store == nil {
		return nil, errors.New("outbox store is required")
	}
	if cfg.Producer == nil {
		return nil, errors.New("event producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		store:     cfg.Store,
		producer:  cfg.Producer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start polls the outbox until ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Err(ctx.Err()).Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.PublishPending(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

// PublishPending relays one batch and returns how many records were marked processed.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	records, err := p.store.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(records) == 0 {
		p.logger.Debug().Msg("no pending events")
		return 0, nil
	}

	var published, failed, marked int
	for _, rec := range records {
		log := p.logger.With().
			Str("event_id", rec.EventID).
			Str("event_type", rec.EventType).
			Str("job_id", rec.AggregateID).
			Int64("outbox_id", rec.ID).
			Logger()

		// keyed by job so one job's transitions stay ordered
		if err := p.producer.Publish(ctx, rec.AggregateID, rec.Payload); err != nil {
			log.Error().Err(err).Msg("failed to publish event")
			failed++
			// later records of the same job must not overtake this one
			break
		}
		published++

		if err := p.store.MarkProcessed(ctx, rec.ID); err != nil {
			log.Warn().Err(err).Msg("failed to mark event as processed")
			continue
		}
		marked++
	}

	p.logger.Info().
		Int("total", len(records)).
		Int("published", published).
		Int("failed", failed).
		Int("marked", marked).
		Msg("outbox batch done")

	return marked, nil
}
