package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/graphservice"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	graphs *graphservice.Service
	notes  *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(graphs *graphservice.Service, notes *noteservice.Service) *Handler {
	return &Handler{graphs: graphs, notes: notes}
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the current graph snapshot
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	SnapshotResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	snap, err := h.graphs.Current(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// BuildGraph handles POST /api/graph.
//
//	@Summary		Build a graph with explicit settings
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GraphRequest	true	"Build request"
//	@Success		200		{object}	GraphResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph [post]
func (h *Handler) BuildGraph(w http.ResponseWriter, r *http.Request) {
	req := GraphRequest{NoteID: h.graphs.Selected(), Settings: h.graphs.Settings()}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "build graph", err)
		return
	}
	g, err := h.graphs.Build(r.Context(), req.Settings.Request(req.NoteID))
	if err != nil {
		writeError(w, "build graph", err, slog.String("note_id", req.NoteID))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Select handles PUT /api/selection.
//
//	@Summary		Change the selected note
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectionRequest	true	"Selected note"
//	@Success		200		{object}	SnapshotResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/selection [put]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "select", err)
		return
	}
	snap, err := h.graphs.Select(r.Context(), req.NoteID)
	if err != nil {
		writeError(w, "select", err, slog.String("note_id", req.NoteID))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Settings handles GET /api/settings.
//
//	@Summary		Get the active graph settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) Settings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.graphs.Settings())
}

// UpdateSettings handles PUT /api/settings.
//
//	@Summary		Change graph settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsResponse	true	"Settings; omitted fields keep their value"
//	@Success		200		{object}	SettingsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.graphs.Settings()
	if !decodeBody(w, r, &settings) {
		return
	}
	if err := h.graphs.UpdateSettings(r.Context(), settings); err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, h.graphs.Settings())
}

// NoteLinks handles GET /api/notes/{id}/links.
//
//	@Summary		Outgoing links, backlinks and tags of a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteLinksResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/links [get]
func (h *Handler) NoteLinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	links, err := h.notes.Links(r.Context(), id)
	if err != nil {
		writeError(w, "note links", err, slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// NotebookFilter handles GET /api/notebooks/filter.
//
//	@Summary		Resolve a notebook filter
//	@Tags			notebooks
//	@Produce		json
//	@Param			filter		query		string	false	"Comma-separated notebook names or ids"
//	@Param			children	query		bool	false	"Extend to descendant notebooks"
//	@Param			include		query		bool	false	"Keep only the named notebooks"
//	@Success		200			{object}	NotebookFilterResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/filter [get]
func (h *Handler) NotebookFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec := notebook.Spec{Filter: q.Get("filter")}
	for name, dst := range map[string]*bool{"children": &spec.Children, "include": &spec.Include} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter '"+name+"' must be a boolean"))
			return
		}
		*dst = v
	}

	res, err := h.notes.ResolveNotebooks(r.Context(), spec)
	if err != nil {
		writeError(w, "notebook filter", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
