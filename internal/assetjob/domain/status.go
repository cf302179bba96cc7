package domain

import (
	"fmt"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

var transitions = map[models.Status][]models.Status{
	models.CreatedStatus: {
		models.InProgressStatus,
		models.FailedStatus,
		models.MaxAttemptsExceededStatus,
	},
	models.InProgressStatus: {
		models.CompletedStatus,
		models.FailedStatus,
		models.MaxAttemptsExceededStatus,
		models.CreatedStatus,
	},
	models.FailedStatus: {
		models.InProgressStatus,
		models.MaxAttemptsExceededStatus,
		models.CreatedStatus,
	},
	// completed и max_attempts_exceeded терминальные
}

func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition allows staying in the same non-terminal status so a
// worker can bump attempts or the error message without moving the job.
func ValidateTransition(from, to models.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidArgument, to)
	}
	if from == to && !from.Terminal() {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	return nil
}

// ClaimableFrom reports whether a worker may take a job that is currently in s.
func ClaimableFrom(s models.Status) bool {
	return s == models.CreatedStatus || s == models.FailedStatus
}
