package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/graphservice"
	"github.com/starford/notegraph/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(graphs *graphservice.Service, notes *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(graphs, notes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Graph.
	r.Get("/graph", h.Graph)
	r.Post("/graph", h.BuildGraph)
	r.Put("/selection", h.Select)
	r.Get("/settings", h.Settings)
	r.Put("/settings", h.UpdateSettings)

	// Notes and notebooks.
	r.Get("/notes/{id}/links", h.NoteLinks)
	r.Get("/notebooks/filter", h.NotebookFilter)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
