package httpapi

import (
	"net/http"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/service"
)

// GetAsset handles GET /api/asset?assetId= for workers.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := queryUUID(w, r, "assetId")
	if !ok {
		return
	}

	a, err := h.svc.GetAsset(r.Context(), assetID)
	if err != nil {
		h.writeServiceError(w, r, err, "asset")
		return
	}
	writeJSON(w, http.StatusOK, toAssetResponse(a))
}

// PatchAsset handles PATCH /api/asset?assetId=.
func (h *Handler) PatchAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := queryUUID(w, r, "assetId")
	if !ok {
		return
	}
	defer r.Body.Close()

	var req UpdateAssetRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err, "asset")
		return
	}

	a, err := h.svc.UpdateAssetContent(r.Context(), assetID, *req.Content, *req.TokenCount)
	if err != nil {
		h.writeServiceError(w, r, err, "asset")
		return
	}
	writeJSON(w, http.StatusOK, toAssetResponse(a))
}

// ListProjectAssets handles GET /api/projects/{projectId}/assets.
func (h *Handler) ListProjectAssets(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectId")
	if !ok {
		return
	}

	assets, err := h.svc.ListAssets(r.Context(), UserIDFromContext(r.Context()), projectID)
	if err != nil {
		h.writeServiceError(w, r, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, toAssetResponses(assets))
}

// DeleteProjectAsset handles DELETE /api/projects/{projectId}/assets?assetId=.
func (h *Handler) DeleteProjectAsset(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectId")
	if !ok {
		return
	}
	assetID, ok := queryUUID(w, r, "assetId")
	if !ok {
		return
	}

	if _, err := h.svc.DeleteAsset(r.Context(), UserIDFromContext(r.Context()), projectID, assetID); err != nil {
		h.writeServiceError(w, r, err, "asset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}

// CompleteUpload handles POST /api/upload/complete: the blob is stored, now record it.
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req UploadCompleteRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err, "project")
		return
	}

	asset, job, err := h.svc.RegisterUpload(r.Context(), UserIDFromContext(r.Context()), service.UploadedFile{
		ProjectID: req.ProjectID,
		FileName:  req.FileName,
		FileURL:   req.FileURL,
		FileType:  models.FileType(req.FileType),
		MimeType:  req.MimeType,
		Size:      req.Size,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "project")
		return
	}

	h.logger.Info().
		Str("asset_id", asset.ID.String()).
		Str("job_id", job.ID.String()).
		Str("project_id", job.ProjectID.String()).
		Msg("upload registered")

	writeJSON(w, http.StatusCreated, UploadCompleteResponse{
		Asset: toAssetResponse(asset),
		Job:   toJobResponse(job),
	})
}
