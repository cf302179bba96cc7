package worker

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

// fakeAPI is an in-process job API with the same claim semantics as the server.
type fakeAPI struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*Job
	assets     map[uuid.UUID]*Asset
	files      map[string][]byte
	heartbeats int
	patches    []JobPatch
	completed  map[uuid.UUID]string
	listErr    error
	// gate, when set, holds every download until it is closed
	gate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		jobs:      make(map[uuid.UUID]*Job),
		assets:    make(map[uuid.UUID]*Asset),
		files:     make(map[string][]byte),
		completed: make(map[uuid.UUID]string),
	}
}

func (f *fakeAPI) addJob(status models.Status, attempts int, ft models.FileType, data []byte) Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &Asset{ID: uuid.New(), FileName: "uploads/file", FileURL: "https://blob.example.com/" + uuid.NewString(), FileType: ft}
	j := &Job{ID: uuid.New(), AssetID: a.ID, Status: status, Attempts: attempts}
	f.assets[a.ID] = a
	f.files[a.FileURL] = data
	f.jobs[j.ID] = j
	return *j
}

func (f *fakeAPI) job(id uuid.UUID) Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[id]
}

func (f *fakeAPI) ListJobs(ctx context.Context) ([]Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Job
	for _, j := range f.jobs {
		if j.Status == models.CreatedStatus || j.Status == models.FailedStatus || j.Status == models.InProgressStatus {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeAPI) Claim(ctx context.Context, id uuid.UUID, expected models.Status) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "job not found"}
	}
	if j.Status != expected {
		return nil, &APIError{StatusCode: http.StatusConflict, Message: "conflict"}
	}
	j.Status = models.InProgressStatus
	cp := *j
	return &cp, nil
}

func (f *fakeAPI) PatchJob(ctx context.Context, id uuid.UUID, patch JobPatch) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	f.patches = append(f.patches, patch)
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.Attempts != nil {
		j.Attempts = *patch.Attempts
	}
	if patch.ErrorMessage != nil {
		j.ErrorMessage = patch.ErrorMessage
	}
	cp := *j
	return &cp, nil
}

func (f *fakeAPI) Heartbeat(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return &APIError{StatusCode: http.StatusNotFound, Message: "job not found"}
	}
	if j.Status != models.InProgressStatus {
		return &APIError{StatusCode: http.StatusConflict, Message: "conflict"}
	}
	f.heartbeats++
	return nil
}

func (f *fakeAPI) Complete(ctx context.Context, id uuid.UUID, content string, tokenCount int) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	if j.Status != models.InProgressStatus {
		return nil, &APIError{StatusCode: http.StatusConflict, Message: "invalid transition"}
	}
	j.Status = models.CompletedStatus
	f.completed[id] = content
	cp := *j
	return &cp, nil
}

func (f *fakeAPI) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "asset not found"}
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAPI) Download(ctx context.Context, fileURL string) ([]byte, error) {
	f.mu.Lock()
	data, ok := f.files[fileURL]
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, errors.New("download: status 404")
	}
	if data == nil {
		// block until the job times out
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return data, nil
}

var _ JobAPI = (*fakeAPI)(nil)
