package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

// Field names follow the wire format workers already speak (camelCase).

type PatchJobRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=created in_progress failed completed max_attempts_exceeded"`
	ErrorMessage  *string `json:"errorMessage"`
	Attempts      *int    `json:"attempts" validate:"omitempty,min=0"`
	LastHeartBeat *string `json:"lastHeartBeat" validate:"omitempty,timestamp"`
}

type ClaimJobRequest struct {
	ExpectedStatus string `json:"expectedStatus" validate:"required,oneof=created failed"`
}

type CompleteJobRequest struct {
	Content    string `json:"content"`
	TokenCount int    `json:"tokenCount" validate:"min=0"`
}

type UpdateAssetRequest struct {
	Content    *string `json:"content" validate:"required"`
	TokenCount *int    `json:"tokenCount" validate:"required,min=0"`
}

type UploadCompleteRequest struct {
	ProjectID uuid.UUID `json:"projectId" validate:"required"`
	FileName  string    `json:"fileName" validate:"required"`
	FileURL   string    `json:"fileUrl" validate:"required,url"`
	FileType  string    `json:"fileType" validate:"required,oneof=video audio text markdown other"`
	MimeType  string    `json:"mimeType" validate:"required"`
	Size      int64     `json:"size" validate:"required,gt=0"`
}

type JobResponse struct {
	ID            uuid.UUID     `json:"id"`
	AssetID       uuid.UUID     `json:"assetId"`
	ProjectID     uuid.UUID     `json:"projectId"`
	Status        models.Status `json:"status"`
	ErrorMessage  *string       `json:"errorMessage"`
	Attempts      int           `json:"attempts"`
	LastHeartBeat time.Time     `json:"lastHeartBeat"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type AssetResponse struct {
	ID         uuid.UUID       `json:"id"`
	ProjectID  uuid.UUID       `json:"projectId"`
	Title      string          `json:"title"`
	FileName   string          `json:"fileName"`
	FileURL    string          `json:"fileUrl"`
	FileType   models.FileType `json:"fileType"`
	MimeType   string          `json:"mimeType"`
	Size       int64           `json:"size"`
	Content    *string         `json:"content"`
	TokenCount *int            `json:"tokenCount"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type UploadCompleteResponse struct {
	Asset AssetResponse `json:"asset"`
	Job   JobResponse   `json:"job"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error  string       `json:"error"`
	Errors []FieldError `json:"errors,omitempty"`
}

func toJobResponse(j *models.Job) JobResponse {
	return JobResponse{
		ID:            j.ID,
		AssetID:       j.AssetID,
		ProjectID:     j.ProjectID,
		Status:        j.Status,
		ErrorMessage:  j.ErrorMessage,
		Attempts:      j.Attempts,
		LastHeartBeat: j.LastHeartBeat,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

func toJobResponses(jobs []models.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}
	return out
}

func toAssetResponse(a *models.Asset) AssetResponse {
	return AssetResponse{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		Title:      a.Title,
		FileName:   a.FileName,
		FileURL:    a.FileURL,
		FileType:   a.FileType,
		MimeType:   a.MimeType,
		Size:       a.Size,
		Content:    a.Content,
		TokenCount: a.TokenCount,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toAssetResponses(assets []models.Asset) []AssetResponse {
	out := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		out = append(out, toAssetResponse(&assets[i]))
	}
	return out
}
