// Package source defines the record source the graph core reads from: a
// paginated, Joplin-shaped data API addressed by resource path.
package source

import (
	"context"
	"strings"
)

// Resource kinds.
const (
	KindNotes   = "notes"
	KindFolders = "folders"
	KindTags    = "tags"
	KindSearch  = "search"
)

// Field names understood by every Source.
const (
	FieldID          = "id"
	FieldParentID    = "parent_id"
	FieldTitle       = "title"
	FieldBody        = "body"
	FieldUpdatedTime = "updated_time"
)

// Order directions.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// MaxPageSize is the largest page a Source returns.
const MaxPageSize = 100

var (
	NoteFields     = []string{FieldID, FieldParentID, FieldTitle, FieldBody}
	NotebookFields = []string{FieldID, FieldTitle, FieldParentID}
	TagFields      = []string{FieldID, FieldTitle}
	IDFields       = []string{FieldID}
)

// Query addresses one page of a resource.
//
// Path examples: {"notes"}, {"folders"}, {"tags"}, {"tags", tagID, "notes"},
// {"notes", noteID, "tags"}, {"search"}.
type Query struct {
	Path     []string
	Fields   []string
	OrderBy  string
	OrderDir string
	Limit    int
	Page     int
	Text     string
}

// Resource returns the slash-joined resource path.
func (q Query) Resource() string {
	return strings.Join(q.Path, "/")
}

// Route returns the resource path with the identifier segment replaced by
// ":id", suitable as a low-cardinality metric label.
func (q Query) Route() string {
	if len(q.Path) != 3 {
		return q.Resource()
	}
	return q.Path[0] + "/:id/" + q.Path[2]
}

// Record is one item of a page. Only the requested fields are populated.
type Record struct {
	ID          string `json:"id"`
	ParentID    string `json:"parent_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Body        string `json:"body,omitempty"`
	UpdatedTime int64  `json:"updated_time,omitempty"`
}

// Page is the response to a Query.
type Page struct {
	Items   []Record `json:"items"`
	HasMore bool     `json:"has_more"`
}

// Source is the external data collaborator.
type Source interface {
	// QueryPage returns one page of the resource addressed by q.
	QueryPage(ctx context.Context, q Query) (*Page, error)
	// QueryByID looks up a single record by primary key. A missing record
	// yields apperr.ErrNotFound, distinguishable from transport failures.
	QueryByID(ctx context.Context, kind, id string, fields []string) (*Record, error)
	// Backlinks returns the ids of notes whose body references noteID.
	Backlinks(ctx context.Context, noteID string) ([]string, error)
}
