package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/repository"
)

const jobColumns = `id, asset_id, project_id, status, error_message, attempts, last_heart_beat, created_at, updated_at`

// Repo implements repository.Store on top of PostgreSQL.
type Repo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
}

var _ repository.Store = (*Repo)(nil)

func NewRepo(db *sqlx.DB, outbox *OutboxRepo) *Repo {
	return &Repo{db: db, outbox: outbox}
}

func (r *Repo) Create(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	return mapError("job create", insertJob(ctx, r.db, job))
}

func insertJob(ctx context.Context, ex sqlx.ExtContext, job *models.Job) error {
	const q = `
		INSERT INTO asset_processing_jobs (id, asset_id, project_id, status, error_message, attempts, last_heart_beat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := ex.ExecContext(ctx, q,
		job.ID, job.AssetID, job.ProjectID, job.Status, nullString(job.ErrorMessage),
		job.Attempts, job.LastHeartBeat, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM asset_processing_jobs WHERE id = $1`

	var j models.Job
	if err := r.db.GetContext(ctx, &j, q, id); err != nil {
		return nil, mapError("job get by id", err)
	}
	return &j, nil
}

func (r *Repo) ListByStatus(ctx context.Context, statuses ...models.Status) ([]models.Job, error) {
	if len(statuses) == 0 {
		return []models.Job{}, nil
	}
	q, args, err := sqlx.In(`SELECT `+jobColumns+` FROM asset_processing_jobs WHERE status IN (?)`, statuses)
	if err != nil {
		return nil, fmt.Errorf("job list by status: %w", err)
	}

	jobs := []models.Job{}
	if err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("job list by status: %w", err)
	}
	return jobs, nil
}

func (r *Repo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM asset_processing_jobs WHERE project_id = $1`

	jobs := []models.Job{}
	if err := r.db.SelectContext(ctx, &jobs, q, projectID); err != nil {
		return nil, fmt.Errorf("job list by project: %w", err)
	}
	return jobs, nil
}

func (r *Repo) ListStale(ctx context.Context, before time.Time) ([]models.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM asset_processing_jobs
		WHERE status = $1 AND last_heart_beat < $2`

	jobs := []models.Job{}
	if err := r.db.SelectContext(ctx, &jobs, q, models.InProgressStatus, before); err != nil {
		return nil, fmt.Errorf("job list stale: %w", err)
	}
	return jobs, nil
}

func (r *Repo) Update(ctx context.Context, id uuid.UUID, upd models.JobUpdate) (*models.Job, error) {
	var out *models.Job
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		j, err := r.updateJobTx(ctx, tx, id, upd)
		if err != nil {
			return err
		}
		out = j
		return nil
	})
	if err != nil {
		return nil, mapError("job update", err)
	}
	return out, nil
}

// updateJobTx applies upd as a single conditional UPDATE and, when upd.Event
// is set, stores the event in the outbox in the same transaction.
func (r *Repo) updateJobTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, upd models.JobUpdate) (*models.Job, error) {
	if upd.Patch.IsEmpty() {
		return r.currentJobTx(ctx, tx, id, upd.Expected)
	}

	q := `
		UPDATE asset_processing_jobs
		SET status          = COALESCE($2, status),
		    error_message   = COALESCE($3, error_message),
		    attempts        = COALESCE($4, attempts),
		    last_heart_beat = COALESCE($5, last_heart_beat),
		    updated_at      = NOW()
		WHERE id = $1 AND ($6::text IS NULL OR status = $6::text)
		RETURNING ` + jobColumns

	p := upd.Patch
	var j models.Job
	err := tx.GetContext(ctx, &j, q,
		id,
		nullStatus(p.Status),
		nullString(p.ErrorMessage),
		nullInt(p.Attempts),
		nullTime(p.LastHeartBeat),
		nullStatus(upd.Expected),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrConflictTx(ctx, tx, id)
		}
		return nil, err
	}

	if upd.Event != nil {
		if err := r.outbox.Add(ctx, tx, upd.Event); err != nil {
			return nil, fmt.Errorf("add outbox: %w", err)
		}
	}
	return &j, nil
}

func (r *Repo) currentJobTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, expected *models.Status) (*models.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM asset_processing_jobs WHERE id = $1`

	var j models.Job
	if err := tx.GetContext(ctx, &j, q, id); err != nil {
		return nil, err
	}
	if expected != nil && j.Status != *expected {
		return nil, models.ErrConflict
	}
	return &j, nil
}

// missOrConflictTx tells a missing row apart from a status mismatch after a
// conditional UPDATE touched nothing.
func (r *Repo) missOrConflictTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM asset_processing_jobs WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("job exists: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.ErrConflict
}
