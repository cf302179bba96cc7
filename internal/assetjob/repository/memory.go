package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

// MemoryRepository is a Store kept in process memory. It backs tests and STORE=memory runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	jobs     map[uuid.UUID]*models.Job
	byAsset  map[uuid.UUID]uuid.UUID
	assets   map[uuid.UUID]*models.Asset
	projects map[uuid.UUID]*models.Project
	events   []models.DomainEvent
	clock    func() time.Time
}

var _ Store = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs:     make(map[uuid.UUID]*models.Job),
		byAsset:  make(map[uuid.UUID]uuid.UUID),
		assets:   make(map[uuid.UUID]*models.Asset),
		projects: make(map[uuid.UUID]*models.Project),
		clock:    time.Now,
	}
}

// SetClock overrides the time source used for updated_at.
func (r *MemoryRepository) SetClock(clock func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
}

func (r *MemoryRepository) AddProject(p models.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.projects[p.ID] = &cp
}

// Events returns the outbox entries recorded so far.
func (r *MemoryRepository) Events() []models.DomainEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) Create(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == uuid.Nil || job.AssetID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assets[job.AssetID]; !ok {
		return models.ErrNotFound
	}
	return r.insertJobLocked(job)
}

func (r *MemoryRepository) insertJobLocked(job *models.Job) error {
	if _, exists := r.byAsset[job.AssetID]; exists {
		return models.ErrDuplicateJob
	}
	if _, exists := r.jobs[job.ID]; exists {
		return models.ErrConflict
	}
	r.jobs[job.ID] = copyJob(job)
	r.byAsset[job.AssetID] = job.ID
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyJob(j), nil
}

func (r *MemoryRepository) ListByStatus(ctx context.Context, statuses ...models.Status) ([]models.Job, error) {
	want := make(map[models.Status]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	return r.listJobs(ctx, func(j *models.Job) bool {
		_, ok := want[j.Status]
		return ok
	})
}

func (r *MemoryRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Job, error) {
	return r.listJobs(ctx, func(j *models.Job) bool { return j.ProjectID == projectID })
}

func (r *MemoryRepository) ListStale(ctx context.Context, before time.Time) ([]models.Job, error) {
	return r.listJobs(ctx, func(j *models.Job) bool {
		return j.Status == models.InProgressStatus && j.LastHeartBeat.Before(before)
	})
}

func (r *MemoryRepository) listJobs(ctx context.Context, keep func(*models.Job) bool) ([]models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Job, 0)
	for _, j := range r.jobs {
		if keep(j) {
			out = append(out, *copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id uuid.UUID, upd models.JobUpdate) (*models.Job, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateJobLocked(id, upd)
}

func (r *MemoryRepository) updateJobLocked(id uuid.UUID, upd models.JobUpdate) (*models.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if upd.Expected != nil && j.Status != *upd.Expected {
		return nil, models.ErrConflict
	}
	if upd.Patch.IsEmpty() {
		return copyJob(j), nil
	}

	next := upd.Patch.Apply(*j)
	next.UpdatedAt = r.clock()
	r.jobs[id] = copyJob(&next)
	if upd.Event != nil {
		r.events = append(r.events, upd.Event)
	}
	return copyJob(&next), nil
}

func (r *MemoryRepository) CreateWithJob(ctx context.Context, asset *models.Asset, job *models.Job) error {
	if asset == nil || job == nil || asset.ID == uuid.Nil || job.AssetID != asset.ID {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[asset.ProjectID]; !ok {
		return models.ErrNotFound
	}
	if _, exists := r.assets[asset.ID]; exists {
		return models.ErrConflict
	}
	if err := r.insertJobLocked(job); err != nil {
		return err
	}
	cp := *asset
	r.assets[asset.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAsset(a), nil
}

func (r *MemoryRepository) ListAssetsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Asset, 0)
	for _, a := range r.assets {
		if a.ProjectID == projectID {
			out = append(out, *copyAsset(a))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*models.Asset, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	r.setContentLocked(a, content, tokenCount)
	return copyAsset(a), nil
}

func (r *MemoryRepository) setContentLocked(a *models.Asset, content string, tokenCount int) {
	c, n := content, tokenCount
	a.Content = &c
	a.TokenCount = &n
	a.UpdatedAt = r.clock()
}

func (r *MemoryRepository) DeleteAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	delete(r.assets, id)
	// cascade
	if jobID, ok := r.byAsset[id]; ok {
		delete(r.jobs, jobID)
		delete(r.byAsset, id)
	}
	return copyAsset(a), nil
}

func (r *MemoryRepository) CompleteJob(ctx context.Context, jobID uuid.UUID, content string, tokenCount int, upd models.JobUpdate) (*models.Job, error) {
	if jobID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if upd.Expected != nil && j.Status != *upd.Expected {
		return nil, models.ErrConflict
	}
	a, ok := r.assets[j.AssetID]
	if !ok {
		return nil, models.ErrNotFound
	}

	r.setContentLocked(a, content, tokenCount)
	return r.updateJobLocked(jobID, upd)
}

func (r *MemoryRepository) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func copyJob(j *models.Job) *models.Job {
	cp := *j
	if j.ErrorMessage != nil {
		m := *j.ErrorMessage
		cp.ErrorMessage = &m
	}
	return &cp
}

func copyAsset(a *models.Asset) *models.Asset {
	cp := *a
	if a.Content != nil {
		c := *a.Content
		cp.Content = &c
	}
	if a.TokenCount != nil {
		n := *a.TokenCount
		cp.TokenCount = &n
	}
	return &cp
}
