package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/models"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/service"
)

type Handler struct {
	svc      *service.Service
	logger   zerolog.Logger
	validate *validator.Validate
}

func New(svc *service.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		logger:   logger.With().Str("component", "httpapi").Logger(),
		validate: newValidator(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError is the single place where domain errors become HTTP statuses.
// notFound names the missing entity for the 404 body.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Errors: reqErr.fields})
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		writeErrorJSON(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, models.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, notFound+" not found")
	case errors.Is(err, models.ErrDuplicateJob):
		writeErrorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		writeErrorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrConflict):
		writeErrorJSON(w, http.StatusConflict, "conflict: job status changed concurrently")
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

// queryUUID reads a required uuid query parameter, writing a 400 when it is missing or malformed.
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeErrorJSON(w, http.StatusBadRequest, "missing "+name+" parameter")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
