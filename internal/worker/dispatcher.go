package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/domain"
)

type JobHandler interface {
	Process(ctx context.Context, job Job) error
}

type DispatcherConfig struct {
	Workers      int
	MaxAttempts  int
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Dispatcher polls the job API and feeds claimable jobs to a fixed pool of workers.
type Dispatcher struct {
	api         JobAPI
	handler     JobHandler
	workers     int
	maxAttempts int
	interval    time.Duration
	logger      zerolog.Logger

	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewDispatcher(api JobAPI, handler JobHandler, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Dispatcher{
		api:         api,
		handler:     handler,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.PollInterval,
		logger:      cfg.Logger.With().Str("component", "dispatcher").Logger(),
		held:        make(map[uuid.UUID]struct{}),
	}
}

// Run blocks until ctx is done. In-flight jobs are not cancelled with ctx;
// they finish or hit their own timeout before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan Job)

	g.Go(func() error {
		defer close(queue)
		return d.poll(gctx, queue)
	})
	for i := 1; i <= d.workers; i++ {
		workerID := i
		g.Go(func() error {
			d.work(gctx, workerID, queue)
			return nil
		})
	}

	d.logger.Info().
		Int("workers", d.workers).
		Dur("poll_interval", d.interval).
		Msg("dispatcher started")

	err := g.Wait()
	d.logger.Info().Msg("dispatcher stopped")
	return err
}

func (d *Dispatcher) poll(ctx context.Context, queue chan<- Job) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.enqueue(ctx, queue)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// enqueue offers every claimable job to the pool once; it blocks while all workers are busy.
func (d *Dispatcher) enqueue(ctx context.Context, queue chan<- Job) {
	jobs, err := d.api.ListJobs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("failed to fetch jobs")
		}
		return
	}

	for _, job := range jobs {
		if !d.wants(job) || !d.hold(job.ID) {
			continue
		}
		select {
		case queue <- job:
		case <-ctx.Done():
			d.release(job.ID)
			return
		}
	}
}

// wants filters out jobs the dispatcher must not touch. Stale in_progress
// jobs and exhausted ones are left to the server side reaper.
func (d *Dispatcher) wants(job Job) bool {
	return domain.ClaimableFrom(job.Status) && job.Attempts < d.maxAttempts
}

func (d *Dispatcher) work(ctx context.Context, workerID int, queue <-chan Job) {
	log := d.logger.With().Int("worker_id", workerID).Logger()
	for job := range queue {
		d.runOne(ctx, job, log)
	}
}

func (d *Dispatcher) runOne(ctx context.Context, job Job, log zerolog.Logger) {
	defer d.release(job.ID)

	claimed, err := d.api.Claim(ctx, job.ID, job.Status)
	if err != nil {
		if IsConflict(err) {
			log.Debug().Str("job_id", job.ID.String()).Msg("job taken by another worker")
		} else if ctx.Err() == nil {
			log.Error().Err(err).Str("job_id", job.ID.String()).Msg("claim failed")
		}
		return
	}

	log.Info().
		Str("job_id", claimed.ID.String()).
		Int("attempts", claimed.Attempts).
		Msg("processing job")
	_ = d.handler.Process(context.WithoutCancel(ctx), *claimed)
}

func (d *Dispatcher) hold(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.held[id]; ok {
		return false
	}
	d.held[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id uuid.UUID) {
	d.mu.Lock()
	delete(d.held, id)
	d.mu.Unlock()
}

// Held reports how many jobs are queued or running in this process.
func (d *Dispatcher) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held)
}

var _ JobHandler = (*Processor)(nil)
