package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

const (
	StuckJobMessage   = "job is stuck - no heartbeat received recently"
	ExhaustedMessage  = "max attempts exceeded"
	DefaultInterval   = 10 * time.Second
	DefaultStuckAfter = 30 * time.Second
)

// JobService is the part of service.Service the reaper drives.
type JobService interface {
	ListStale(ctx context.Context, threshold time.Duration) ([]models.Job, error)
	ListExhausted(ctx context.Context) ([]models.Job, error)
	Fail(ctx context.Context, id uuid.UUID, expected models.Status, message string) (*models.Job, error)
	Exhaust(ctx context.Context, job models.Job, message string) (*models.Job, error)
}

type Config struct {
	Interval   time.Duration
	StuckAfter time.Duration
	Logger     zerolog.Logger
}

// Reaper fails jobs whose worker stopped sending heartbeats and parks jobs
// that used up their attempts.
type Reaper struct {
	svc        JobService
	interval   time.Duration
	stuckAfter time.Duration
	logger     zerolog.Logger
}

func New(svc JobService, cfg Config) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = DefaultStuckAfter
	}
	return &Reaper{
		svc:        svc,
		interval:   cfg.Interval,
		stuckAfter: cfg.StuckAfter,
		logger:     cfg.Logger.With().Str("component", "reaper").Logger(),
	}
}

func (r *Reaper) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.interval).
		Dur("stuck_after", r.stuckAfter).
		Msg("reaper started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reaper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

type SweepResult struct {
	Stuck     int
	Exhausted int
	Skipped   int
}

// Sweep runs one pass. Jobs that changed under it are skipped, not retried.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	stale, err := r.svc.ListStale(ctx, r.stuckAfter)
	if err != nil {
		return res, fmt.Errorf("list stale jobs: %w", err)
	}
	for _, job := range stale {
		updated, err := r.svc.Fail(ctx, job.ID, models.InProgressStatus, StuckJobMessage)
		if r.skip(job, err) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("fail stuck job %s: %w", job.ID, err)
		}
		res.Stuck++
		r.logger.Warn().
			Str("job_id", job.ID.String()).
			Time("last_heart_beat", job.LastHeartBeat).
			Str("status", string(updated.Status)).
			Int("attempts", updated.Attempts).
			Msg("stuck job failed")
	}

	exhausted, err := r.svc.ListExhausted(ctx)
	if err != nil {
		return res, fmt.Errorf("list exhausted jobs: %w", err)
	}
	for _, job := range exhausted {
		_, err := r.svc.Exhaust(ctx, job, ExhaustedMessage)
		if r.skip(job, err) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("exhaust job %s: %w", job.ID, err)
		}
		res.Exhausted++
		r.logger.Info().
			Str("job_id", job.ID.String()).
			Int("attempts", job.Attempts).
			Msg("job exceeded max attempts")
	}

	return res, nil
}

// skip reports whether err means another writer got to the job first.
func (r *Reaper) skip(job models.Job, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidTransition) {
		r.logger.Debug().
			Err(err).
			Str("job_id", job.ID.String()).
			Msg("job changed concurrently, skipped")
		return true
	}
	return false
}
