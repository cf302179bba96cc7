package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	ServiceToken  string
	SessionSecret string
	Logger        zerolog.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(cfg.Logger), middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// worker surface
		r.Group(func(r chi.Router) {
			r.Use(ServiceToken(cfg.ServiceToken))

			r.Get("/asset-processing-job", h.ListClaimableJobs)
			r.Patch("/asset-processing-job", h.PatchJob)
			r.Post("/asset-processing-job/claim", h.ClaimJob)
			r.Post("/asset-processing-job/heartbeat", h.HeartbeatJob)
			r.Post("/asset-processing-job/complete", h.CompleteJob)

			r.Get("/asset", h.GetAsset)
			r.Patch("/asset", h.PatchAsset)
		})

		// user surface
		r.Group(func(r chi.Router) {
			r.Use(Session(cfg.SessionSecret))

			r.Get("/projects/{projectId}/asset-processing-jobs", h.ListProjectJobs)
			r.Get("/projects/{projectId}/assets", h.ListProjectAssets)
			r.Delete("/projects/{projectId}/assets", h.DeleteProjectAsset)
			r.Post("/upload/complete", h.CompleteUpload)
		})
	})

	return r
}
