package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *StoreMock) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) ListByStatus(ctx context.Context, statuses ...models.Status) ([]models.Job, error) {
	args := m.Called(ctx, statuses)
	if v := args.Get(0); v != nil {
		return v.([]models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Job, error) {
	args := m.Called(ctx, projectID)
	if v := args.Get(0); v != nil {
		return v.([]models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) ListStale(ctx context.Context, before time.Time) ([]models.Job, error) {
	args := m.Called(ctx, before)
	if v := args.Get(0); v != nil {
		return v.([]models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) Update(ctx context.Context, id uuid.UUID, upd models.JobUpdate) (*models.Job, error) {
	args := m.Called(ctx, id, upd)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) CreateWithJob(ctx context.Context, asset *models.Asset, job *models.Job) error {
	args := m.Called(ctx, asset, job)
	return args.Error(0)
}

func (m *StoreMock) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Asset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) ListAssetsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Asset, error) {
	args := m.Called(ctx, projectID)
	if v := args.Get(0); v != nil {
		return v.([]models.Asset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) UpdateContent(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*models.Asset, error) {
	args := m.Called(ctx, id, content, tokenCount)
	if v := args.Get(0); v != nil {
		return v.(*models.Asset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) DeleteAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Asset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) CompleteJob(ctx context.Context, jobID uuid.UUID, content string, tokenCount int, upd models.JobUpdate) (*models.Job, error) {
	args := m.Called(ctx, jobID, content, tokenCount, upd)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

type BlobMock struct {
	mock.Mock
}

func (m *BlobMock) Delete(ctx context.Context, fileURL string) error {
	return m.Called(ctx, fileURL).Error(0)
}
