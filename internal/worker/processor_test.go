package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

func newTestProcessor(api JobAPI, cfg ProcessorConfig) *Processor {
	cfg.Logger = zerolog.Nop()
	return NewProcessor(api, NewExtractor(nil), ApproxTokenCounter{}, cfg)
}

func claim(t *testing.T, api *fakeAPI, job Job) Job {
	t.Helper()
	claimed, err := api.Claim(context.Background(), job.ID, job.Status)
	require.NoError(t, err)
	return *claimed
}

func TestProcessor_CompletesTextJob(t *testing.T) {
	api := newFakeAPI()
	job := claim(t, api, api.addJob(models.CreatedStatus, 0, models.MarkdownFile, []byte("# Title\nbody text")))

	err := newTestProcessor(api, ProcessorConfig{}).Process(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, models.CompletedStatus, api.job(job.ID).Status)
	assert.Equal(t, "# Title\nbody text", api.completed[job.ID])
	assert.Empty(t, api.patches)
}

func TestProcessor_FailureIncrementsAttempts(t *testing.T) {
	api := newFakeAPI()
	job := claim(t, api, api.addJob(models.FailedStatus, 1, models.TextFile, []byte{0xff}))

	err := newTestProcessor(api, ProcessorConfig{MaxAttempts: 3}).Process(context.Background(), job)

	require.Error(t, err)
	got := api.job(job.ID)
	assert.Equal(t, models.FailedStatus, got.Status)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "UTF-8")
}

func TestProcessor_LastAttemptExhaustsJob(t *testing.T) {
	api := newFakeAPI()
	job := claim(t, api, api.addJob(models.FailedStatus, 2, models.OtherFile, []byte("x")))

	err := newTestProcessor(api, ProcessorConfig{MaxAttempts: 3}).Process(context.Background(), job)

	require.ErrorIs(t, err, ErrUnsupportedFileType)
	got := api.job(job.ID)
	assert.Equal(t, models.MaxAttemptsExceededStatus, got.Status)
	assert.Equal(t, 3, got.Attempts)
}

func TestProcessor_TimeoutFailsJobAndSendsHeartbeats(t *testing.T) {
	api := newFakeAPI()
	// nil file data makes Download block until the job context ends
	job := claim(t, api, api.addJob(models.CreatedStatus, 0, models.TextFile, nil))

	p := newTestProcessor(api, ProcessorConfig{
		HeartbeatInterval: 5 * time.Millisecond,
		JobTimeout:        60 * time.Millisecond,
	})
	err := p.Process(context.Background(), job)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, models.FailedStatus, api.job(job.ID).Status)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Greater(t, api.heartbeats, 0)
}

func TestProcessor_CompleteConflictDoesNotReportFailure(t *testing.T) {
	api := newFakeAPI()
	// not claimed, so completion is rejected
	job := api.addJob(models.CreatedStatus, 0, models.TextFile, []byte("hello"))

	err := newTestProcessor(api, ProcessorConfig{}).Process(context.Background(), job)

	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Empty(t, api.patches)
	assert.Equal(t, models.CreatedStatus, api.job(job.ID).Status)
}

func TestProcessor_InterruptedJobIsNotReported(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	job := claim(t, api, api.addJob(models.FailedStatus, 2, models.TextFile, []byte("hello")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(20*time.Millisecond, cancel)

	err := newTestProcessor(api, ProcessorConfig{MaxAttempts: 3, JobTimeout: 2 * time.Second}).Process(ctx, job)

	require.ErrorIs(t, err, context.Canceled)
	got := api.job(job.ID)
	assert.Equal(t, models.InProgressStatus, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, api.patches)
}

func TestProcessor_LostJobDropsResult(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	job := claim(t, api, api.addJob(models.CreatedStatus, 0, models.TextFile, []byte("hello")))

	// the reaper fails the job while the worker is still downloading
	status := models.FailedStatus
	attempts := 1
	time.AfterFunc(20*time.Millisecond, func() {
		_, _ = api.PatchJob(context.Background(), job.ID, JobPatch{Status: &status, Attempts: &attempts})
	})

	p := newTestProcessor(api, ProcessorConfig{
		HeartbeatInterval: 5 * time.Millisecond,
		JobTimeout:        2 * time.Second,
	})
	err := p.Process(context.Background(), job)

	require.ErrorIs(t, err, errJobLost)
	got := api.job(job.ID)
	assert.Equal(t, models.FailedStatus, got.Status)
	assert.Equal(t, 1, got.Attempts)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Len(t, api.patches, 1)
	assert.Empty(t, api.completed)
}
