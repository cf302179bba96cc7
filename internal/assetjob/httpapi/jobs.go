package httpapi

import (
	"net/http"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
)

// ListClaimableJobs handles GET /api/asset-processing-job.
func (h *Handler) ListClaimableJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListClaimable(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// PatchJob handles PATCH /api/asset-processing-job?jobId=.
func (h *Handler) PatchJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := queryUUID(w, r, "jobId")
	if !ok {
		return
	}
	defer r.Body.Close()

	var req PatchJobRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}

	patch := models.JobPatch{
		ErrorMessage: req.ErrorMessage,
		Attempts:     req.Attempts,
	}
	if req.Status != nil {
		s := models.Status(*req.Status)
		patch.Status = &s
	}
	if req.LastHeartBeat != nil {
		// already checked by the timestamp validator
		t, _ := parseTimestamp(*req.LastHeartBeat)
		patch.LastHeartBeat = &t
	}

	job, err := h.svc.Patch(r.Context(), jobID, patch)
	if err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// ClaimJob handles POST /api/asset-processing-job/claim?jobId=.
func (h *Handler) ClaimJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := queryUUID(w, r, "jobId")
	if !ok {
		return
	}
	defer r.Body.Close()

	var req ClaimJobRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}

	job, err := h.svc.Claim(r.Context(), jobID, models.Status(req.ExpectedStatus))
	if err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// HeartbeatJob handles POST /api/asset-processing-job/heartbeat?jobId=.
// Only an in_progress job accepts a heartbeat; anything else is a 409.
func (h *Handler) HeartbeatJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := queryUUID(w, r, "jobId")
	if !ok {
		return
	}

	job, err := h.svc.Heartbeat(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// CompleteJob handles POST /api/asset-processing-job/complete?jobId=.
func (h *Handler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := queryUUID(w, r, "jobId")
	if !ok {
		return
	}
	defer r.Body.Close()

	var req CompleteJobRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}

	job, err := h.svc.Complete(r.Context(), jobID, req.Content, req.TokenCount)
	if err != nil {
		h.writeServiceError(w, r, err, "job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// ListProjectJobs handles GET /api/projects/{projectId}/asset-processing-jobs.
func (h *Handler) ListProjectJobs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectId")
	if !ok {
		return
	}

	jobs, err := h.svc.ListProjectJobs(r.Context(), UserIDFromContext(r.Context()), projectID)
	if err != nil {
		h.writeServiceError(w, r, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}
