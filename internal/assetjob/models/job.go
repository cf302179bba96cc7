package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	CreatedStatus             Status = "created"
	InProgressStatus          Status = "in_progress"
	FailedStatus              Status = "failed"
	CompletedStatus           Status = "completed"
	MaxAttemptsExceededStatus Status = "max_attempts_exceeded"
)

// AllStatuses lists every status a job row may carry.
var AllStatuses = []Status{
	CreatedStatus,
	InProgressStatus,
	FailedStatus,
	CompletedStatus,
	MaxAttemptsExceededStatus,
}

// ClaimableStatuses are the statuses returned to workers when they poll for work.
// in_progress is included on purpose: the heartbeat decides whether such a job is stalled.
var ClaimableStatuses = []Status{CreatedStatus, FailedStatus, InProgressStatus}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == CompletedStatus || s == MaxAttemptsExceededStatus
}

// Job is a single asset processing job. There is exactly one per asset.
type Job struct {
	ID            uuid.UUID `db:"id"`
	AssetID       uuid.UUID `db:"asset_id"`
	ProjectID     uuid.UUID `db:"project_id"`
	Status        Status    `db:"status"`
	ErrorMessage  *string   `db:"error_message"`
	Attempts      int       `db:"attempts"`
	LastHeartBeat time.Time `db:"last_heart_beat"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// JobPatch is a partial update. Nil fields keep their stored value.
type JobPatch struct {
	Status        *Status
	ErrorMessage  *string
	Attempts      *int
	LastHeartBeat *time.Time
}

func (p JobPatch) IsEmpty() bool {
	return p.Status == nil && p.ErrorMessage == nil && p.Attempts == nil && p.LastHeartBeat == nil
}

// Apply returns a copy of j with the patch applied. UpdatedAt is left to the caller.
func (p JobPatch) Apply(j Job) Job {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.ErrorMessage != nil {
		msg := *p.ErrorMessage
		j.ErrorMessage = &msg
	}
	if p.Attempts != nil {
		j.Attempts = *p.Attempts
	}
	if p.LastHeartBeat != nil {
		j.LastHeartBeat = *p.LastHeartBeat
	}
	return j
}

// JobUpdate describes a single write to a job row.
type JobUpdate struct {
	// Expected, when set, turns the write into a compare-and-swap on the current status.
	Expected *Status
	Patch    JobPatch
	// Event is stored in the outbox in the same transaction as the row update.
	Event DomainEvent
}
