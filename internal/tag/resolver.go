// Package tag resolves tag-name filters into the notes carrying those tags.
package tag

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/notegraph/internal/fetch"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/source"
)

// NoteSet is a set of note ids.
type NoteSet map[string]struct{}

// Has reports membership.
func (s NoteSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Resolver answers tag questions against a source.
type Resolver struct {
	src source.Source
}

// NewResolver returns a resolver reading from src.
func NewResolver(src source.Source) *Resolver {
	return &Resolver{src: src}
}

// All lists every tag.
func (r *Resolver) All(ctx context.Context) ([]models.Tag, error) {
	recs, err := fetch.All(ctx, r.src, source.Query{
		Path:   []string{source.KindTags},
		Fields: source.TagFields,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("tag: list: %w", err)
	}
	tags := make([]models.Tag, len(recs))
	for i, rec := range recs {
		tags[i] = models.Tag{ID: rec.ID, Title: rec.Title}
	}
	return tags, nil
}

// NotesForFilter resolves a comma-separated list of tag titles to the ids of
// every note carrying one of them. Every tag with a matching title counts.
// active is false when filter has no tokens, in which case the tag filter is
// the identity regardless of polarity.
func (r *Resolver) NotesForFilter(ctx context.Context, filter string) (notes NoteSet, active bool, err error) {
	wanted := make(map[string]struct{})
	for _, t := range strings.Split(filter, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[t] = struct{}{}
		}
	}
	notes = make(NoteSet)
	if len(wanted) == 0 {
		return notes, false, nil
	}

	tags, err := r.All(ctx)
	if err != nil {
		return nil, true, err
	}
	for _, t := range tags {
		if _, ok := wanted[t.Title]; !ok {
			continue
		}
		recs, err := fetch.All(ctx, r.src, source.Query{
			Path:   []string{source.KindTags, t.ID, source.KindNotes},
			Fields: source.IDFields,
		}, nil)
		if err != nil {
			return nil, true, fmt.Errorf("tag: notes of %s: %w", t.ID, err)
		}
		for _, rec := range recs {
			notes[rec.ID] = struct{}{}
		}
	}
	return notes, true, nil
}

// NoteTags lists the tags carried by one note.
func (r *Resolver) NoteTags(ctx context.Context, noteID string) ([]models.Tag, error) {
	recs, err := fetch.All(ctx, r.src, source.Query{
		Path:   []string{source.KindNotes, noteID, source.KindTags},
		Fields: source.TagFields,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("tag: tags of %s: %w", noteID, err)
	}
	tags := make([]models.Tag, len(recs))
	for i, rec := range recs {
		tags[i] = models.Tag{ID: rec.ID, Title: rec.Title}
	}
	return tags, nil
}
