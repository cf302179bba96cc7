package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/repository"
)

const DefaultMaxAttempts = 3

// BlobDeleter removes an uploaded file from blob storage.
type BlobDeleter interface {
	Delete(ctx context.Context, fileURL string) error
}

type Service struct {
	store       repository.Store
	blobs       BlobDeleter
	clock       func() time.Time
	idGen       func() uuid.UUID
	maxAttempts int
}

type Option func(*Service)

func WithBlobDeleter(b BlobDeleter) Option {
	return func(s *Service) { s.blobs = b }
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		clock:       time.Now,
		idGen:       uuid.New,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) MaxAttempts() int { return s.maxAttempts }

// authorizeProject hides projects owned by someone else behind ErrNotFound.
func (s *Service) authorizeProject(ctx context.Context, userID string, projectID uuid.UUID) error {
	if userID == "" {
		return models.ErrUnauthorized
	}
	if projectID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return models.ErrNotFound
	}
	return nil
}
