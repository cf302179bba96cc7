package models

import (
	"time"

	"github.com/google/uuid"
)

type FileType string

const (
	VideoFile    FileType = "video"
	AudioFile    FileType = "audio"
	TextFile     FileType = "text"
	MarkdownFile FileType = "markdown"
	OtherFile    FileType = "other"
)

func (t FileType) Valid() bool {
	switch t {
	case VideoFile, AudioFile, TextFile, MarkdownFile, OtherFile:
		return true
	default:
		return false
	}
}

type Asset struct {
	ID         uuid.UUID `db:"id"`
	ProjectID  uuid.UUID `db:"project_id"`
	Title      string    `db:"title"`
	FileName   string    `db:"file_name"`
	FileURL    string    `db:"file_url"`
	FileType   FileType  `db:"file_type"`
	MimeType   string    `db:"mime_type"`
	Size       int64     `db:"size"`
	Content    *string   `db:"content"`
	TokenCount *int      `db:"token_count"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type Project struct {
	ID        uuid.UUID `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
