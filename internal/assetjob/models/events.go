package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

const JobStatusChangedType = "AssetProcessingJobStatusChanged"

// JobStatusChanged is recorded whenever a job moves to a different status.
type JobStatusChanged struct {
	eventID    uuid.UUID
	jobID      uuid.UUID
	assetID    uuid.UUID
	projectID  uuid.UUID
	from       Status
	to         Status
	attempts   int
	occurredAt time.Time
}

func NewJobStatusChanged(job Job, to Status, attempts int, at time.Time) *JobStatusChanged {
	return &JobStatusChanged{
		eventID:    uuid.New(),
		jobID:      job.ID,
		assetID:    job.AssetID,
		projectID:  job.ProjectID,
		from:       job.Status,
		to:         to,
		attempts:   attempts,
		occurredAt: at,
	}
}

func (e *JobStatusChanged) EventID() uuid.UUID     { return e.eventID }
func (e *JobStatusChanged) EventType() string      { return JobStatusChangedType }
func (e *JobStatusChanged) AggregateID() uuid.UUID { return e.jobID }
func (e *JobStatusChanged) OccurredAt() time.Time  { return e.occurredAt }

func (e *JobStatusChanged) From() Status  { return e.from }
func (e *JobStatusChanged) To() Status    { return e.to }
func (e *JobStatusChanged) Attempts() int { return e.attempts }

func (e *JobStatusChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID `json:"event_id"`
		JobID      uuid.UUID `json:"job_id"`
		AssetID    uuid.UUID `json:"asset_id"`
		ProjectID  uuid.UUID `json:"project_id"`
		From       Status    `json:"from"`
		To         Status    `json:"to"`
		Attempts   int       `json:"attempts"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		EventID:    e.eventID,
		JobID:      e.jobID,
		AssetID:    e.assetID,
		ProjectID:  e.projectID,
		From:       e.from,
		To:         e.to,
		Attempts:   e.attempts,
		OccurredAt: e.occurredAt,
	})
}
