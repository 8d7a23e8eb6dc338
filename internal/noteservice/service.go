// Package noteservice answers per-note questions outside a full graph build:
// which notes a note links to, which notes link back, which tags it carries,
// and what a notebook filter resolves to.
package noteservice

import (
	"context"
	"fmt"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/source"
	"github.com/starford/notegraph/internal/tag"
)

// NoteLinks is the link view of one note.
type NoteLinks struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parent_id"`
	// Links are the raw link targets, anchors included.
	Links []string `json:"links"`
	// Targets are the distinct note ids the links point at.
	Targets   []string     `json:"targets"`
	Backlinks []string     `json:"backlinks"`
	Tags      []models.Tag `json:"tags"`
}

// FilterResolution is the outcome of resolving a notebook filter.
type FilterResolution struct {
	Active bool `json:"active"`
	// Dropped lists the notebooks whose notes the filter rejects. Under
	// include polarity this is the complement of the named notebooks.
	Dropped []models.Notebook `json:"dropped"`
	// Kept lists every other notebook.
	Kept []models.Notebook `json:"kept"`
}

// Service reads from a record source.
type Service struct {
	src  source.Source
	tags *tag.Resolver
}

// NewService creates a new note service.
func NewService(src source.Source) *Service {
	return &Service{src: src, tags: tag.NewResolver(src)}
}

// Links returns the outgoing links, backlinks and tags of noteID.
// apperr.ErrNotFound is passed through when the note does not exist.
func (s *Service) Links(ctx context.Context, noteID string) (*NoteLinks, error) {
	rec, err := s.src.QueryByID(ctx, source.KindNotes, noteID, source.NoteFields)
	if err != nil {
		return nil, fmt.Errorf("noteservice: note %s: %w", noteID, err)
	}

	links := parser.SortedLinks(parser.ExtractLinks(rec.Body))
	backlinks, err := s.Backlinks(ctx, noteID)
	if err != nil {
		return nil, err
	}
	tags, err := s.tags.NoteTags(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: tags %s: %w", noteID, err)
	}

	return &NoteLinks{
		ID:        rec.ID,
		Title:     rec.Title,
		ParentID:  rec.ParentID,
		Links:     links,
		Targets:   Targets(links),
		Backlinks: backlinks,
		Tags:      nonNilTags(tags),
	}, nil
}

// Backlinks lists the notes whose body links to noteID.
func (s *Service) Backlinks(ctx context.Context, noteID string) ([]string, error) {
	ids, err := s.src.Backlinks(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: backlinks %s: %w", noteID, err)
	}
	return nonNilSlice(ids), nil
}

// Targets strips anchors from sorted link targets and drops duplicates,
// keeping the input order.
func Targets(links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		id := parser.StripFragment(l)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ResolveNotebooks resolves a notebook filter against the current catalog.
func (s *Service) ResolveNotebooks(ctx context.Context, spec notebook.Spec) (*FilterResolution, error) {
	res := &FilterResolution{Active: spec.Active(), Dropped: []models.Notebook{}, Kept: []models.Notebook{}}

	dropped, cat, err := notebook.ResolveFilter(ctx, s.src, spec)
	if err != nil {
		return nil, fmt.Errorf("noteservice: resolve notebooks: %w", err)
	}
	if cat == nil {
		return res, nil
	}
	for _, nb := range cat.All() {
		if dropped.Has(nb.ID) {
			res.Dropped = append(res.Dropped, nb)
		} else {
			res.Kept = append(res.Kept, nb)
		}
	}
	return res, nil
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilTags(t []models.Tag) []models.Tag {
	if t == nil {
		return []models.Tag{}
	}
	return t
}
