package worker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"unicode/utf8"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrNoTranscriber       = errors.New("transcription is not configured")
)

type Transcriber interface {
	Transcribe(ctx context.Context, fileName string, data []byte) (string, error)
}

// Extractor turns a downloaded asset into plain text.
type Extractor struct {
	transcriber Transcriber
}

// NewExtractor accepts a nil transcriber; audio and video then fail with ErrNoTranscriber.
func NewExtractor(t Transcriber) *Extractor {
	return &Extractor{transcriber: t}
}

func (e *Extractor) Extract(ctx context.Context, a Asset, data []byte) (string, error) {
	switch a.FileType {
	case models.TextFile, models.MarkdownFile:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s is not valid UTF-8", a.FileName)
		}
		return string(data), nil

	case models.AudioFile, models.VideoFile:
		if e.transcriber == nil {
			return "", ErrNoTranscriber
		}
		text, err := e.transcriber.Transcribe(ctx, path.Base(a.FileName), data)
		if err != nil {
			return "", fmt.Errorf("transcribe %s: %w", a.FileName, err)
		}
		return text, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, a.FileType)
	}
}
