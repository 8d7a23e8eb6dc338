package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/graphservice"
	"github.com/starford/notegraph/internal/noteservice"
)

// GraphRequest is the body of an ad-hoc build. Omitted settings fall back to
// the active ones.
type GraphRequest struct {
	NoteID string `json:"note_id" example:"3a1f0c2e9b8d4f6a8c7e5d4b3a291f0e"`
	graphservice.Settings
}

// Validate validates the request.
func (r *GraphRequest) Validate() error {
	return r.Settings.Validate()
}

// SelectionRequest is the body of a selection change.
type SelectionRequest struct {
	NoteID string `json:"note_id" example:"3a1f0c2e9b8d4f6a8c7e5d4b3a291f0e" validate:"required"`
}

// Validate validates the request.
func (r *SelectionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NoteID, validation.Required),
	)
}

// GraphResponse is an assembled graph.
type GraphResponse = graph.Graph

// SnapshotResponse is the graph viewers render, with its rendering hints.
type SnapshotResponse = graphservice.Snapshot

// SettingsResponse carries the active graph settings.
type SettingsResponse = graphservice.Settings

// NoteLinksResponse is the link view of one note.
type NoteLinksResponse = noteservice.NoteLinks

// NotebookFilterResponse is a resolved notebook filter.
type NotebookFilterResponse = noteservice.FilterResolution
