package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/domain"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

// ListClaimable returns jobs in created, failed or in_progress. Whether an
// in_progress job is stalled is for the caller to judge from its heartbeat.
func (s *Service) ListClaimable(ctx context.Context) ([]models.Job, error) {
	return s.store.ListByStatus(ctx, models.ClaimableStatuses...)
}

func (s *Service) ListProjectJobs(ctx context.Context, userID string, projectID uuid.UUID) ([]models.Job, error) {
	if err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListByProject(ctx, projectID)
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.store.GetByID(ctx, id)
}

// Patch applies a partial update. A status change must follow the transition
// table and only lands if nobody changed the status since it was read.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, patch models.JobPatch) (*models.Job, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	upd := models.JobUpdate{Patch: patch}
	if patch.Status != nil {
		if err := domain.ValidateTransition(current.Status, *patch.Status); err != nil {
			return nil, err
		}
		expected := current.Status
		upd.Expected = &expected
		upd.Event = s.statusEvent(*current, patch)
	}
	return s.store.Update(ctx, id, upd)
}

func validatePatch(p models.JobPatch) error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidArgument, *p.Status)
	}
	if p.Attempts != nil && *p.Attempts < 0 {
		return fmt.Errorf("%w: attempts must not be negative", models.ErrInvalidArgument)
	}
	return nil
}

// statusEvent returns nil when the patch keeps the current status.
func (s *Service) statusEvent(current models.Job, patch models.JobPatch) models.DomainEvent {
	if patch.Status == nil || *patch.Status == current.Status {
		return nil
	}
	attempts := current.Attempts
	if patch.Attempts != nil {
		attempts = *patch.Attempts
	}
	return models.NewJobStatusChanged(current, *patch.Status, attempts, s.clock())
}

// Claim moves a job from expected to in_progress. Of several concurrent
// claimers exactly one wins; the others get models.ErrConflict.
func (s *Service) Claim(ctx context.Context, id uuid.UUID, expected models.Status) (*models.Job, error) {
	if id == uuid.Nil || !domain.ClaimableFrom(expected) {
		return nil, models.ErrInvalidArgument
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != expected {
		return nil, models.ErrConflict
	}

	now := s.clock()
	status := models.InProgressStatus
	patch := models.JobPatch{Status: &status, LastHeartBeat: &now}
	return s.store.Update(ctx, id, models.JobUpdate{
		Expected: &expected,
		Patch:    patch,
		Event:    models.NewJobStatusChanged(*current, status, current.Attempts, now),
	})
}

// Heartbeat refreshes the liveness timestamp of a job the caller holds.
func (s *Service) Heartbeat(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	now := s.clock()
	expected := models.InProgressStatus
	return s.store.Update(ctx, id, models.JobUpdate{
		Expected: &expected,
		Patch:    models.JobPatch{LastHeartBeat: &now},
	})
}

// Complete stores the extracted content on the asset and marks the job
// completed in a single transaction.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*models.Job, error) {
	if id == uuid.Nil || tokenCount < 0 {
		return nil, models.ErrInvalidArgument
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	status := models.CompletedStatus
	if err := domain.ValidateTransition(current.Status, status); err != nil {
		return nil, err
	}

	now := s.clock()
	expected := current.Status
	return s.store.CompleteJob(ctx, id, content, tokenCount, models.JobUpdate{
		Expected: &expected,
		Patch:    models.JobPatch{Status: &status, LastHeartBeat: &now},
		Event:    models.NewJobStatusChanged(*current, status, current.Attempts, now),
	})
}

// Fail records a failed attempt on a job currently in expected. The job
// becomes max_attempts_exceeded once attempts reach the configured maximum.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, expected models.Status, message string) (*models.Job, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != expected {
		return nil, models.ErrConflict
	}

	attempts := current.Attempts + 1
	status := models.FailedStatus
	if attempts >= s.maxAttempts {
		status = models.MaxAttemptsExceededStatus
	}
	if err := domain.ValidateTransition(current.Status, status); err != nil {
		return nil, err
	}

	patch := models.JobPatch{Status: &status, ErrorMessage: &message, Attempts: &attempts}
	return s.store.Update(ctx, id, models.JobUpdate{
		Expected: &expected,
		Patch:    patch,
		Event:    s.statusEvent(*current, patch),
	})
}

// Exhaust parks a created or failed job whose attempts already reached the maximum.
func (s *Service) Exhaust(ctx context.Context, job models.Job, message string) (*models.Job, error) {
	if job.Attempts < s.maxAttempts {
		return nil, fmt.Errorf("%w: job has %d of %d attempts", models.ErrInvalidArgument, job.Attempts, s.maxAttempts)
	}
	status := models.MaxAttemptsExceededStatus
	if err := domain.ValidateTransition(job.Status, status); err != nil {
		return nil, err
	}

	expected := job.Status
	patch := models.JobPatch{Status: &status, ErrorMessage: &message}
	return s.store.Update(ctx, job.ID, models.JobUpdate{
		Expected: &expected,
		Patch:    patch,
		Event:    s.statusEvent(job, patch),
	})
}

// ListStale returns in_progress jobs that have not sent a heartbeat within threshold.
func (s *Service) ListStale(ctx context.Context, threshold time.Duration) ([]models.Job, error) {
	return s.store.ListStale(ctx, s.clock().Add(-threshold))
}

// ListExhausted returns created or failed jobs that used up all their attempts.
func (s *Service) ListExhausted(ctx context.Context) ([]models.Job, error) {
	jobs, err := s.store.ListByStatus(ctx, models.CreatedStatus, models.FailedStatus)
	if err != nil {
		return nil, err
	}
	out := jobs[:0]
	for _, j := range jobs {
		if j.Attempts >= s.maxAttempts {
			out = append(out, j)
		}
	}
	return out, nil
}
