package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaikaijiang/Instant-RAG/internal/api"
	"github.com/kaikaijiang/Instant-RAG/internal/api/handlers"
	"github.com/kaikaijiang/Instant-RAG/internal/api/middleware"
)

type RouterConfig struct {
	ProjectHandler  *handlers.ProjectHandler
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	EmailHandler    *handlers.EmailHandler

	// MaxBodyBytes limits request bodies; uploads need headroom for
	// multi-file batches. Zero applies the default.
	MaxBodyBytes int64
}

const defaultMaxBodyBytes int64 = 64 * 1024 * 1024

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(limit))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/projects", func(r chi.Router) {
		r.Post("/", cfg.ProjectHandler.Create)
		r.Get("/", cfg.ProjectHandler.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cfg.ProjectHandler.Get)
			r.Delete("/", cfg.ProjectHandler.Delete)

			r.Post("/documents", cfg.DocumentHandler.Upload)
			r.Get("/documents", cfg.DocumentHandler.List)
			r.Delete("/documents/{docID}", cfg.DocumentHandler.Delete)
			r.Post("/web", cfg.DocumentHandler.IngestWeb)

			r.Post("/chat", cfg.ChatHandler.Ask)
			r.Get("/chat/history", cfg.ChatHandler.History)
			r.Delete("/chat/history", cfg.ChatHandler.ClearHistory)

			r.Post("/email/settings", cfg.EmailHandler.SaveSettings)
			r.Get("/email/settings", cfg.EmailHandler.GetSettings)
			r.Post("/email/ingest", cfg.EmailHandler.Ingest)
			r.Get("/email/summaries", cfg.EmailHandler.ListSummaries)
		})
	})

	return r
}
