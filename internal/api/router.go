package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every route of the table API.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(LoggingMiddleware(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/vocabularies", h.ListVocabulary)
		r.Post("/vocabularies", h.AddVocabulary)
		r.Get("/vocabularies/{key}", h.GetVocabulary)
		r.Delete("/vocabularies/{key}", h.DeleteVocabulary)
		r.Delete("/vocabularies/{key}/edit", h.CancelEdit)
		r.Post("/vocabularies/{key}/{field}/edit", h.BeginEdit)
		r.Put("/vocabularies/{key}/{field}", h.CommitEdit)

		r.Post("/import", h.ImportDocument)
		r.Post("/export", h.ExportVocabulary)
		r.Get("/stats", h.GetStats)
	})

	return r
}

// CorsMiddleware adds CORS headers so a front end served from another
// local port can call the API.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs one structured line per request. It must run
// after chimiddleware.RequestID.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
