// Package filter decides which notes survive notebook and tag filtering.
package filter

import (
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/tag"
)

// Hierarchy answers parent lookups in the notebook forest.
type Hierarchy interface {
	Parent(notebookID string) string
}

// Predicate is a per-note accept/reject decision. The zero value accepts
// every note.
type Predicate struct {
	// Dropped is the resolved notebook set. It always names the notebooks
	// whose notes are rejected: include polarity has already been inverted.
	Dropped notebook.Set
	// NotebookActive is false when the notebook filter string was empty.
	NotebookActive bool
	// NotebookInclude records the configured notebook polarity.
	NotebookInclude bool
	// Descendants extends exclusion from a named notebook to every notebook
	// below it, walking up from the note's parent.
	Descendants bool
	// Tree is consulted for the ancestor walk. Nil limits the check to the
	// immediate parent.
	Tree Hierarchy

	TagNotes   tag.NoteSet
	TagActive  bool
	TagInclude bool
}

// New composes a predicate from resolved notebook and tag sets.
func New(spec notebook.Spec, dropped notebook.Set, tree Hierarchy, tagNotes tag.NoteSet, tagActive, tagInclude bool) Predicate {
	return Predicate{
		Dropped:         dropped,
		NotebookActive:  spec.Active(),
		NotebookInclude: spec.Include,
		Descendants:     spec.Children,
		Tree:            tree,
		TagNotes:        tagNotes,
		TagActive:       tagActive,
		TagInclude:      tagInclude,
	}
}

// Accept reports whether n passes both the notebook and tag sub-decisions.
func (p Predicate) Accept(n *models.Note) bool {
	if n == nil {
		return false
	}
	return p.acceptNotebook(n.ParentID) && p.acceptTag(n.ID)
}

func (p Predicate) acceptNotebook(parentID string) bool {
	if !p.NotebookActive {
		return true
	}
	if p.Dropped.Has(parentID) {
		return false
	}
	// A note outside every notebook cannot be in the kept set.
	if p.NotebookInclude && parentID == "" {
		return false
	}
	// Under include polarity the dropped set is the complement of the kept
	// subtree, so the immediate parent decides. Walking up would reject
	// notes of a kept notebook nested under a dropped root.
	if p.NotebookInclude || !p.Descendants || p.Tree == nil {
		return true
	}
	seen := map[string]struct{}{parentID: {}}
	for id := p.Tree.Parent(parentID); id != ""; id = p.Tree.Parent(id) {
		if _, ok := seen[id]; ok {
			break
		}
		seen[id] = struct{}{}
		if p.Dropped.Has(id) {
			return false
		}
	}
	return true
}

func (p Predicate) acceptTag(noteID string) bool {
	if !p.TagActive {
		return true
	}
	return p.TagNotes.Has(noteID) == p.TagInclude
}

// Apply returns a new map holding the notes of in that pass p, in the same
// order. in is not modified.
func (p Predicate) Apply(in *models.NoteMap) *models.NoteMap {
	out := models.NewNoteMap()
	for pair := in.Oldest(); pair != nil; pair = pair.Next() {
		if p.Accept(pair.Value) {
			out.Set(pair.Key, pair.Value)
		}
	}
	return out
}
