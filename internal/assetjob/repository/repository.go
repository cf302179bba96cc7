package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

type JobRepository interface {
	// Create fails with models.ErrDuplicateJob when the asset already has a job.
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// ListByStatus gives no ordering guarantee.
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]models.Job, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Job, error)
	// ListStale returns in_progress jobs whose heartbeat is older than before.
	ListStale(ctx context.Context, before time.Time) ([]models.Job, error)
	// Update returns models.ErrNotFound for a missing row and models.ErrConflict
	// when upd.Expected is set and does not match the stored status.
	Update(ctx context.Context, id uuid.UUID, upd models.JobUpdate) (*models.Job, error)
}

type AssetRepository interface {
	// CreateWithJob stores the asset and its job atomically.
	CreateWithJob(ctx context.Context, asset *models.Asset, job *models.Job) error
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	ListAssetsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Asset, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*models.Asset, error)
	// DeleteAsset removes the asset; its job is removed by cascade.
	DeleteAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	// CompleteJob writes the asset content and applies upd to the job in one transaction.
	CompleteJob(ctx context.Context, jobID uuid.UUID, content string, tokenCount int, upd models.JobUpdate) (*models.Job, error)
}

type ProjectRepository interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type Store interface {
	JobRepository
	AssetRepository
	ProjectRepository
}
