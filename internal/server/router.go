package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/vocabtool/internal/api"
	"github.com/cloo-solutions/vocabtool/internal/api/handlers"
	"github.com/cloo-solutions/vocabtool/internal/api/middleware"
)

type RouterConfig struct {
	// TokenValidator guards the resolution routes. Nil leaves them open.
	TokenValidator middleware.TokenValidator
	LookupHandler  *handlers.LookupHandler
	ResolveHandler *handlers.ResolveHandler
	// AccessLogger receives one JSON line per request. Nil writes to stdout.
	AccessLogger *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.AccessLogger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/lookup-code", cfg.LookupHandler.Lookup)
	r.Get("/$lookup-code", cfg.LookupHandler.Lookup)
	r.Get("/search", cfg.LookupHandler.Search)
	r.Get("/systems", cfg.LookupHandler.Systems)

	if cfg.ResolveHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.TokenValidator != nil {
				r.Use(middleware.BearerAuth(cfg.TokenValidator))
			}

			r.Route("/resolve", func(r chi.Router) {
				r.Post("/", cfg.ResolveHandler.Resolve)
				r.Post("/batch", cfg.ResolveHandler.ResolveBatch)
			})
			r.Get("/resolutions", cfg.ResolveHandler.Recent)
		})
	}

	return r
}
