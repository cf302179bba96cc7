package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

const assetColumns = `id, project_id, title, file_name, file_url, file_type, mime_type, size, content, token_count, created_at, updated_at`

func (r *Repo) CreateWithJob(ctx context.Context, asset *models.Asset, job *models.Job) error {
	if asset == nil || job == nil || job.AssetID != asset.ID {
		return models.ErrInvalidArgument
	}

	const q = `
		INSERT INTO assets (id, project_id, title, file_name, file_url, file_type, mime_type, size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, q,
			asset.ID, asset.ProjectID, asset.Title, asset.FileName, asset.FileURL,
			asset.FileType, asset.MimeType, asset.Size, asset.CreatedAt, asset.UpdatedAt,
		); err != nil {
			return err
		}
		return insertJob(ctx, tx, job)
	})
	return mapError("asset create with job", err)
}

func (r *Repo) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	var a models.Asset
	if err := r.db.GetContext(ctx, &a, q, id); err != nil {
		return nil, mapError("asset get", err)
	}
	return &a, nil
}

func (r *Repo) ListAssetsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets WHERE project_id = $1 ORDER BY created_at ASC`

	assets := []models.Asset{}
	if err := r.db.SelectContext(ctx, &assets, q, projectID); err != nil {
		return nil, fmt.Errorf("asset list by project: %w", err)
	}
	return assets, nil
}

func (r *Repo) UpdateContent(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*models.Asset, error) {
	var a models.Asset
	if err := r.db.GetContext(ctx, &a, updateContentQuery, id, content, tokenCount); err != nil {
		return nil, mapError("asset update content", err)
	}
	return &a, nil
}

var updateContentQuery = `
	UPDATE assets
	SET content = $2, token_count = $3, updated_at = NOW()
	WHERE id = $1
	RETURNING ` + assetColumns

func (r *Repo) DeleteAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	q := `DELETE FROM assets WHERE id = $1 RETURNING ` + assetColumns

	var a models.Asset
	if err := r.db.GetContext(ctx, &a, q, id); err != nil {
		return nil, mapError("asset delete", err)
	}
	return &a, nil
}

func (r *Repo) CompleteJob(ctx context.Context, jobID uuid.UUID, content string, tokenCount int, upd models.JobUpdate) (*models.Job, error) {
	var out *models.Job
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var assetID uuid.UUID
		if err := tx.GetContext(ctx, &assetID,
			`SELECT asset_id FROM asset_processing_jobs WHERE id = $1 FOR UPDATE`, jobID); err != nil {
			return err
		}

		// статус проверяем до записи контента, иначе проигравший воркер перезапишет ассет
		if upd.Expected != nil {
			if _, err := r.currentJobTx(ctx, tx, jobID, upd.Expected); err != nil {
				return err
			}
		}

		var a models.Asset
		if err := tx.GetContext(ctx, &a, updateContentQuery, assetID, content, tokenCount); err != nil {
			return err
		}

		j, err := r.updateJobTx(ctx, tx, jobID, upd)
		if err != nil {
			return err
		}
		out = j
		return nil
	})
	if err != nil {
		return nil, mapError("job complete", err)
	}
	return out, nil
}

func (r *Repo) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	const q = `SELECT id, user_id, title, created_at, updated_at FROM projects WHERE id = $1`

	var p models.Project
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, mapError("project get", err)
	}
	return &p, nil
}
