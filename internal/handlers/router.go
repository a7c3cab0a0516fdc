package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Ivan-Kwetey/ArtInsight/internal/middleware"
)

// NewRouter mounts the prediction, upload and health endpoints.
func NewRouter(h *Handler, checkers map[string]middleware.HealthChecker, logger *slog.Logger) http.Handler {
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(middleware.Logging(logger))
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/livez", middleware.LivenessHandler)

	mux.Post("/predict", h.Predict)
	mux.Post("/predict/raw", h.PredictRaw)
	mux.Get("/uploads/{filename}", h.Upload)

	return mux
}
