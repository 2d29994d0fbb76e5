package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/server/handler"
	"github.com/sevigo/codezen/internal/server/middleware"
)

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(cfg *config.Config, h *handler.Handler, limiter *middleware.RateLimiter, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	// Synchronous reviews wait for the model, so the budget follows the write timeout.
	r.Use(chimw.Timeout(cfg.Server.WriteTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.CreateProject)
			r.Get("/", h.ListProjects)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.GetProject)
				r.Delete("/", h.DeleteProject)

				r.Post("/guidelines", h.AddGuideline)
				r.Get("/guidelines", h.ListGuidelines)

				r.With(limiter.Limit("review")).Post("/reviews", h.SubmitReview)
				r.Get("/reviews", h.ListReviews)
				r.Get("/reviews/{reviewID}", h.GetReview)

				r.With(limiter.Limit("comment")).Post("/reviews/{reviewID}/comments", h.Ask)
				r.Get("/reviews/{reviewID}/comments", h.ListComments)
			})
		})
	})

	return r
}
