package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

// JobAPI is the job API as seen from a worker. *Client implements it.
type JobAPI interface {
	ListJobs(ctx context.Context) ([]Job, error)
	Claim(ctx context.Context, id uuid.UUID, expected models.Status) (*Job, error)
	PatchJob(ctx context.Context, id uuid.UUID, patch JobPatch) (*Job, error)
	Heartbeat(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*Job, error)
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)
	Download(ctx context.Context, fileURL string) ([]byte, error)
}

var _ JobAPI = (*Client)(nil)

var errJobLost = errors.New("job no longer held by this worker")

type ProcessorConfig struct {
	MaxAttempts       int
	HeartbeatInterval time.Duration
	JobTimeout        time.Duration
	Logger            zerolog.Logger
}

// Processor runs one claimed job to completion or failure.
type Processor struct {
	api         JobAPI
	extractor   *Extractor
	tokens      TokenCounter
	maxAttempts int
	heartbeat   time.Duration
	timeout     time.Duration
	logger      zerolog.Logger
}

func NewProcessor(api JobAPI, extractor *Extractor, tokens TokenCounter, cfg ProcessorConfig) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if tokens == nil {
		tokens = ApproxTokenCounter{}
	}
	return &Processor{
		api:         api,
		extractor:   extractor,
		tokens:      tokens,
		maxAttempts: cfg.MaxAttempts,
		heartbeat:   cfg.HeartbeatInterval,
		timeout:     cfg.JobTimeout,
		logger:      cfg.Logger.With().Str("component", "processor").Logger(),
	}
}

// Process expects job to be claimed (in_progress) by this worker. When ctx
// ends before the job does, nothing is reported and the job stays
// in_progress until the reaper picks it up.
func (p *Processor) Process(ctx context.Context, job Job) error {
	log := p.logger.With().Str("job_id", job.ID.String()).Str("asset_id", job.AssetID.String()).Logger()
	start := time.Now()

	leaseCtx, dropLease := context.WithCancelCause(ctx)
	defer dropLease(nil)
	jobCtx, cancel := context.WithTimeout(leaseCtx, p.timeout)
	defer cancel()

	stopHeartbeat := p.startHeartbeat(jobCtx, job.ID, dropLease, log)
	content, err := p.extract(jobCtx, job, log)
	stopHeartbeat()

	if cause := context.Cause(leaseCtx); errors.Is(cause, errJobLost) {
		log.Warn().Err(cause).Msg("job lost during processing, result dropped")
		return cause
	}

	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Err(err).Msg("processing interrupted, job left in_progress")
			return err
		}
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("job timed out after %s: %w", p.timeout, err)
		}
		log.Error().Err(err).Int("attempt", job.Attempts+1).Msg("job failed")
		if ferr := p.fail(ctx, job, err); ferr != nil {
			log.Error().Err(ferr).Msg("failed to report job failure")
		}
		return err
	}

	tokens := p.tokens.Count(content)
	if _, err := p.api.Complete(jobCtx, job.ID, content, tokens); err != nil {
		if IsConflict(err) {
			log.Warn().Err(err).Msg("job changed before completion, result dropped")
		}
		return fmt.Errorf("complete job: %w", err)
	}

	log.Info().
		Int("token_count", tokens).
		Dur("duration", time.Since(start)).
		Msg("job completed")
	return nil
}

func (p *Processor) extract(ctx context.Context, job Job, log zerolog.Logger) (string, error) {
	asset, err := p.api.GetAsset(ctx, job.AssetID)
	if err != nil {
		return "", err
	}
	data, err := p.api.Download(ctx, asset.FileURL)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("file_name", asset.FileName).
		Str("file_type", string(asset.FileType)).
		Int("bytes", len(data)).
		Msg("extracting content")

	return p.extractor.Extract(ctx, *asset, data)
}

// fail reports the attempt even when ctx is already done.
func (p *Processor) fail(ctx context.Context, job Job, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	attempts := job.Attempts + 1
	status := models.FailedStatus
	if attempts >= p.maxAttempts {
		status = models.MaxAttemptsExceededStatus
	}
	msg := cause.Error()
	_, err := p.api.PatchJob(ctx, job.ID, JobPatch{
		Status:       &status,
		ErrorMessage: &msg,
		Attempts:     &attempts,
	})
	return err
}

// startHeartbeat keeps the job's lastHeartBeat fresh until the returned func
// is called. A heartbeat the server rejects as lost calls lost with errJobLost.
func (p *Processor) startHeartbeat(ctx context.Context, id uuid.UUID, lost context.CancelCauseFunc, log zerolog.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := p.api.Heartbeat(ctx, id)
				switch {
				case err == nil || ctx.Err() != nil:
				case IsJobLost(err):
					lost(fmt.Errorf("%w: %v", errJobLost, err))
					return
				default:
					log.Warn().Err(err).Msg("heartbeat failed")
				}
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
