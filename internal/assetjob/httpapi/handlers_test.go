package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/repository"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/service"
)

const (
	testServiceKey = "service-key"
	testSecret     = "session-secret"
)

type testEnv struct {
	router  http.Handler
	svc     *service.Service
	repo    *repository.MemoryRepository
	project models.Project
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := repository.NewMemoryRepository()
	p := models.Project{ID: uuid.New(), UserID: "user_1", Title: "podcast"}
	repo.AddProject(p)

	svc := service.New(repo)
	h := New(svc, zerolog.Nop())
	return &testEnv{
		router: NewRouter(h, RouterConfig{
			ServiceToken:  testServiceKey,
			SessionSecret: testSecret,
			Logger:        zerolog.Nop(),
		}),
		svc:     svc,
		repo:    repo,
		project: p,
	}
}

func signSessionToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (e *testEnv) newJob(t *testing.T) *models.Job {
	t.Helper()
	_, job, err := e.svc.RegisterUpload(context.Background(), e.project.UserID, service.UploadedFile{
		ProjectID: e.project.ID,
		FileName:  "uploads/notes.md",
		FileURL:   "https://blob.example.com/uploads/notes.md",
		FileType:  models.MarkdownFile,
		MimeType:  "text/markdown",
		Size:      64,
	})
	require.NoError(t, err)
	return job
}

func (e *testEnv) worker(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, target, body, testServiceKey)
}

func (e *testEnv) user(t *testing.T, userID, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := signSessionToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return e.do(t, method, target, body, token)
}

func (e *testEnv) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func jobURL(path string, id uuid.UUID) string {
	return "/api/asset-processing-job" + path + "?jobId=" + id.String()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServiceToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/asset-processing-job", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/asset-processing-job", "", "wrong")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.worker(t, http.MethodGet, "/api/asset-processing-job", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	target := "/api/projects/" + env.project.ID.String() + "/asset-processing-jobs"

	rec := env.do(t, http.MethodGet, target, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := signSessionToken("other-secret", env.project.UserID, time.Hour)
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, target, "", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := signSessionToken(testSecret, env.project.UserID, -time.Minute)
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, target, "", expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// service key is not a session
	rec = env.do(t, http.MethodGet, target, "", testServiceKey)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListClaimableJobs(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodGet, "/api/asset-processing-job", "")
	require.Equal(t, http.StatusOK, rec.Code)

	jobs := decode[[]map[string]any](t, rec)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID.String(), jobs[0]["id"])
	assert.Equal(t, "created", jobs[0]["status"])
	assert.Contains(t, jobs[0], "assetId")
	assert.Contains(t, jobs[0], "lastHeartBeat")
	assert.Contains(t, jobs[0], "errorMessage")
}

func TestPatchJob_StatusAndAttempts(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPatch, jobURL("", job.ID), `{"status":"in_progress"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.worker(t, http.MethodPatch, jobURL("", job.ID),
		`{"status":"failed","errorMessage":"boom","attempts":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[JobResponse](t, rec)
	assert.Equal(t, models.FailedStatus, resp.Status)
	assert.Equal(t, 1, resp.Attempts)
	require.NotNil(t, resp.ErrorMessage)
	assert.Equal(t, "boom", *resp.ErrorMessage)
}

func TestPatchJob_Heartbeat(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPatch, jobURL("", job.ID), `{"lastHeartBeat":"2026-03-01T12:30:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[JobResponse](t, rec)
	assert.True(t, resp.LastHeartBeat.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)))
	assert.Equal(t, models.CreatedStatus, resp.Status)
}

func TestPatchJob_EmptyBodyObjectIsNoop(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPatch, jobURL("", job.ID), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[JobResponse](t, rec)
	assert.True(t, job.UpdatedAt.Equal(resp.UpdatedAt))
}

func TestPatchJob_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	cases := []struct {
		name      string
		target    string
		body      string
		wantField string
		wantMsg   string
	}{
		{
			name:      "unknown status names the value",
			target:    jobURL("", job.ID),
			body:      `{"status":"bogus"}`,
			wantField: "status",
			wantMsg:   `got "bogus"`,
		},
		{
			name:      "unknown field",
			target:    jobURL("", job.ID),
			body:      `{"status":"failed","retries":2}`,
			wantField: "retries",
			wantMsg:   "unknown field",
		},
		{
			name:      "wrong type",
			target:    jobURL("", job.ID),
			body:      `{"attempts":"two"}`,
			wantField: "attempts",
			wantMsg:   "must be of type int",
		},
		{
			name:      "negative attempts",
			target:    jobURL("", job.ID),
			body:      `{"attempts":-1}`,
			wantField: "attempts",
			wantMsg:   "must be at least 0",
		},
		{
			name:      "bad timestamp",
			target:    jobURL("", job.ID),
			body:      `{"lastHeartBeat":"yesterday"}`,
			wantField: "lastHeartBeat",
			wantMsg:   "ISO-8601",
		},
		{
			name:      "malformed json",
			target:    jobURL("", job.ID),
			body:      `{"status":`,
			wantField: "body",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.worker(t, http.MethodPatch, tc.target, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decode[ErrorResponse](t, rec)
			require.NotEmpty(t, resp.Errors)
			assert.Equal(t, tc.wantField, resp.Errors[0].Field)
			assert.Contains(t, resp.Errors[0].Message, tc.wantMsg)
		})
	}

	// nothing was written
	stored, err := env.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CreatedStatus, stored.Status)
	assert.Equal(t, 0, stored.Attempts)
}

func TestPatchJob_MissingOrInvalidJobID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.worker(t, http.MethodPatch, "/api/asset-processing-job", `{"status":"failed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.worker(t, http.MethodPatch, "/api/asset-processing-job?jobId=nope", `{"status":"failed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.worker(t, http.MethodPatch, jobURL("", uuid.New()), `{"status":"failed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchJob_TerminalStatusIsConflict(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPatch, jobURL("", job.ID), `{"status":"max_attempts_exceeded"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.worker(t, http.MethodPatch, jobURL("", job.ID), `{"status":"in_progress"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestClaimJob(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPost, jobURL("/claim", job.ID), `{"expectedStatus":"created"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.InProgressStatus, decode[JobResponse](t, rec).Status)

	// the second claimer lost the race
	rec = env.worker(t, http.MethodPost, jobURL("/claim", job.ID), `{"expectedStatus":"created"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.worker(t, http.MethodPost, jobURL("/claim", job.ID), `{"expectedStatus":"completed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeartbeatJob_OnlyWhileInProgress(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPost, jobURL("/heartbeat", job.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code, "unclaimed job")

	rec = env.worker(t, http.MethodPost, jobURL("/claim", job.ID), `{"expectedStatus":"created"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	claimed := decode[JobResponse](t, rec)

	rec = env.worker(t, http.MethodPost, jobURL("/heartbeat", job.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	beat := decode[JobResponse](t, rec)
	assert.Equal(t, models.InProgressStatus, beat.Status)
	assert.False(t, beat.LastHeartBeat.Before(claimed.LastHeartBeat))

	rec = env.worker(t, http.MethodPost, jobURL("/complete", job.ID), `{"content":"x","tokenCount":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.worker(t, http.MethodPost, jobURL("/heartbeat", job.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code, "completed job")

	got, err := env.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletedStatus, got.Status)
	assert.Equal(t, 0, got.Attempts)

	rec = env.worker(t, http.MethodPost, jobURL("/heartbeat", uuid.New()), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.worker(t, http.MethodPost, "/api/asset-processing-job/heartbeat", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteJob_WritesContent(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPost, jobURL("/claim", job.ID), `{"expectedStatus":"created"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.worker(t, http.MethodPost, jobURL("/complete", job.ID), `{"content":"# hello","tokenCount":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.CompletedStatus, decode[JobResponse](t, rec).Status)

	rec = env.worker(t, http.MethodGet, "/api/asset?assetId="+job.AssetID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	asset := decode[AssetResponse](t, rec)
	require.NotNil(t, asset.Content)
	assert.Equal(t, "# hello", *asset.Content)
	require.NotNil(t, asset.TokenCount)
	assert.Equal(t, 2, *asset.TokenCount)
}

func TestCompleteJob_NotClaimedIsConflict(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)

	rec := env.worker(t, http.MethodPost, jobURL("/complete", job.ID), `{"content":"x","tokenCount":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	asset, err := env.svc.GetAsset(context.Background(), job.AssetID)
	require.NoError(t, err)
	assert.Nil(t, asset.Content)
}

func TestPatchAsset(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)
	target := "/api/asset?assetId=" + job.AssetID.String()

	rec := env.worker(t, http.MethodPatch, target, `{"content":"hello world","tokenCount":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hello world", *decode[AssetResponse](t, rec).Content)

	rec = env.worker(t, http.MethodPatch, target, `{"content":"hello world"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.worker(t, http.MethodPatch, "/api/asset?assetId="+uuid.NewString(), `{"content":"x","tokenCount":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProjectJobs_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)
	target := "/api/projects/" + env.project.ID.String() + "/asset-processing-jobs"

	rec := env.user(t, env.project.UserID, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode[[]JobResponse](t, rec)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	rec = env.user(t, "intruder", http.MethodGet, target, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.user(t, env.project.UserID, http.MethodGet, "/api/projects/not-a-uuid/asset-processing-jobs", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteUpload(t *testing.T) {
	env := newTestEnv(t)

	body := `{
		"projectId":"` + env.project.ID.String() + `",
		"fileName":"uploads/talk.mp4",
		"fileUrl":"https://blob.example.com/uploads/talk.mp4",
		"fileType":"video",
		"mimeType":"video/mp4",
		"size":2048
	}`
	rec := env.user(t, env.project.UserID, http.MethodPost, "/api/upload/complete", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[UploadCompleteResponse](t, rec)
	assert.Equal(t, resp.Asset.ID, resp.Job.AssetID)
	assert.Equal(t, models.CreatedStatus, resp.Job.Status)
	assert.Equal(t, models.VideoFile, resp.Asset.FileType)

	rec = env.user(t, env.project.UserID, http.MethodPost, "/api/upload/complete",
		`{"projectId":"`+env.project.ID.String()+`","fileName":"a.exe","fileUrl":"https://x/a.exe","fileType":"other","mimeType":"application/x-msdownload","size":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndDeleteProjectAssets(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t)
	base := "/api/projects/" + env.project.ID.String() + "/assets"

	rec := env.user(t, env.project.UserID, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AssetResponse](t, rec), 1)

	rec = env.user(t, "intruder", http.MethodDelete, base+"?assetId="+job.AssetID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.user(t, env.project.UserID, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.user(t, env.project.UserID, http.MethodDelete, base+"?assetId="+job.AssetID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := env.svc.GetJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
