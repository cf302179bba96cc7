package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

// MaxDownloadSize caps how much of an asset file the worker buffers.
const MaxDownloadSize = 50 * 1024 * 1024

type Job struct {
	ID            uuid.UUID     `json:"id"`
	AssetID       uuid.UUID     `json:"assetId"`
	ProjectID     uuid.UUID     `json:"projectId"`
	Status        models.Status `json:"status"`
	ErrorMessage  *string       `json:"errorMessage"`
	Attempts      int           `json:"attempts"`
	LastHeartBeat time.Time     `json:"lastHeartBeat"`
}

type Asset struct {
	ID       uuid.UUID       `json:"id"`
	FileName string          `json:"fileName"`
	FileURL  string          `json:"fileUrl"`
	FileType models.FileType `json:"fileType"`
	MimeType string          `json:"mimeType"`
	Size     int64           `json:"size"`
}

type JobPatch struct {
	Status        *models.Status `json:"status,omitempty"`
	ErrorMessage  *string        `json:"errorMessage,omitempty"`
	Attempts      *int           `json:"attempts,omitempty"`
	LastHeartBeat *time.Time     `json:"lastHeartBeat,omitempty"`
}

// APIError is a non-2xx answer from the job API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409, i.e. someone else changed the job first.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsJobLost reports whether the server no longer lets this worker hold the job.
func IsJobLost(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the job API with the shared service token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.do(ctx, http.MethodGet, "/asset-processing-job", nil, nil, &jobs); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (c *Client) Claim(ctx context.Context, id uuid.UUID, expected models.Status) (*Job, error) {
	var job Job
	body := map[string]models.Status{"expectedStatus": expected}
	if err := c.do(ctx, http.MethodPost, "/asset-processing-job/claim", jobQuery(id), body, &job); err != nil {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}
	return &job, nil
}

func (c *Client) PatchJob(ctx context.Context, id uuid.UUID, patch JobPatch) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPatch, "/asset-processing-job", jobQuery(id), patch, &job); err != nil {
		return nil, fmt.Errorf("patch job %s: %w", id, err)
	}
	return &job, nil
}

// Heartbeat refreshes lastHeartBeat on a job this worker holds. The server
// answers 409 once the job left in_progress.
func (c *Client) Heartbeat(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodPost, "/asset-processing-job/heartbeat", jobQuery(id), nil, nil); err != nil {
		return fmt.Errorf("heartbeat job %s: %w", id, err)
	}
	return nil
}

func (c *Client) Complete(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*Job, error) {
	var job Job
	body := map[string]any{"content": content, "tokenCount": tokenCount}
	if err := c.do(ctx, http.MethodPost, "/asset-processing-job/complete", jobQuery(id), body, &job); err != nil {
		return nil, fmt.Errorf("complete job %s: %w", id, err)
	}
	return &job, nil
}

func (c *Client) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	var a Asset
	q := url.Values{"assetId": {id.String()}}
	if err := c.do(ctx, http.MethodGet, "/asset", q, nil, &a); err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	return &a, nil
}

// Download fetches an asset file from blob storage. The service token is not sent there.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: status %d", fileURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read download: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("download %s: file exceeds %d bytes", fileURL, MaxDownloadSize)
	}
	return data, nil
}

func jobQuery(id uuid.UUID) url.Values {
	return url.Values{"jobId": {id.String()}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
