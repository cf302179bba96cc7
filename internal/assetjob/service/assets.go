package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

const MaxUploadSize = 50 * 1024 * 1024

var allowedMimeTypes = map[string]struct{}{
	"video/mp4":       {},
	"video/quicktime": {},
	"audio/wav":       {},
	"audio/ogg":       {},
	"audio/mpeg":      {},
	"text/plain":      {},
	"text/markdown":   {},
}

// UploadedFile describes a finished blob upload.
type UploadedFile struct {
	ProjectID uuid.UUID
	FileName  string
	FileURL   string
	FileType  models.FileType
	MimeType  string
	Size      int64
}

func (f UploadedFile) validate() error {
	switch {
	case f.ProjectID == uuid.Nil:
		return fmt.Errorf("%w: project id is required", models.ErrInvalidArgument)
	case f.FileName == "" || f.FileURL == "":
		return fmt.Errorf("%w: file name and url are required", models.ErrInvalidArgument)
	case !f.FileType.Valid():
		return fmt.Errorf("%w: unknown file type %q", models.ErrInvalidArgument, f.FileType)
	case f.Size <= 0 || f.Size > MaxUploadSize:
		return fmt.Errorf("%w: size must be between 1 and %d bytes", models.ErrInvalidArgument, MaxUploadSize)
	}
	if _, ok := allowedMimeTypes[f.MimeType]; !ok {
		return fmt.Errorf("%w: mime type %q is not allowed", models.ErrInvalidArgument, f.MimeType)
	}
	return nil
}

// RegisterUpload creates the asset for a finished upload together with its
// processing job in status created.
func (s *Service) RegisterUpload(ctx context.Context, userID string, f UploadedFile) (*models.Asset, *models.Job, error) {
	if err := f.validate(); err != nil {
		return nil, nil, err
	}
	if err := s.authorizeProject(ctx, userID, f.ProjectID); err != nil {
		return nil, nil, err
	}

	now := s.clock()
	title := path.Base(strings.TrimSuffix(f.FileName, "/"))
	if title == "." || title == "/" {
		title = f.FileName
	}

	asset := &models.Asset{
		ID:        s.idGen(),
		ProjectID: f.ProjectID,
		Title:     title,
		FileName:  f.FileName,
		FileURL:   f.FileURL,
		FileType:  f.FileType,
		MimeType:  f.MimeType,
		Size:      f.Size,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job := &models.Job{
		ID:            s.idGen(),
		AssetID:       asset.ID,
		ProjectID:     f.ProjectID,
		Status:        models.CreatedStatus,
		Attempts:      0,
		LastHeartBeat: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateWithJob(ctx, asset, job); err != nil {
		return nil, nil, err
	}
	return asset, job, nil
}

func (s *Service) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.store.GetAsset(ctx, id)
}

// UpdateAssetContent writes worker output without touching the job row.
func (s *Service) UpdateAssetContent(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*models.Asset, error) {
	if id == uuid.Nil || tokenCount < 0 {
		return nil, models.ErrInvalidArgument
	}
	return s.store.UpdateContent(ctx, id, content, tokenCount)
}

func (s *Service) ListAssets(ctx context.Context, userID string, projectID uuid.UUID) ([]models.Asset, error) {
	if err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListAssetsByProject(ctx, projectID)
}

// DeleteAsset removes the asset, its job (by cascade) and the stored blob.
func (s *Service) DeleteAsset(ctx context.Context, userID string, projectID, assetID uuid.UUID) (*models.Asset, error) {
	if assetID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	a, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if a.ProjectID != projectID {
		return nil, models.ErrNotFound
	}

	deleted, err := s.store.DeleteAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, deleted.FileURL); err != nil {
			return deleted, fmt.Errorf("delete blob: %w", err)
		}
	}
	return deleted, nil
}
