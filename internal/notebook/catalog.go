// Package notebook loads the notebook forest and resolves notebook filter
// specifications into concrete notebook sets.
package notebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/notegraph/internal/fetch"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/source"
)

// Spec is a notebook filter specification.
type Spec struct {
	// Filter is a comma-separated list of notebook ids and/or titles.
	Filter string `json:"filter" yaml:"filter"`
	// Children extends the named notebooks with all their descendants.
	Children bool `json:"children" yaml:"children"`
	// Include selects include polarity: only notes of the named notebooks
	// are kept. When false the named notebooks are excluded.
	Include bool `json:"include" yaml:"include"`
}

// Active reports whether the spec filters anything. An empty filter is a
// no-op regardless of polarity.
func (s Spec) Active() bool {
	return len(Tokens(s.Filter)) > 0
}

// Tokens splits a comma-separated filter string, dropping blank entries.
func Tokens(filter string) []string {
	var out []string
	for _, t := range strings.Split(filter, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Set is a set of notebook ids.
type Set map[string]struct{}

// Has reports membership.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Catalog is an immutable snapshot of all notebooks.
type Catalog struct {
	all      []models.Notebook
	byID     map[string]models.Notebook
	children map[string][]string
}

// Load fetches every notebook from src.
func Load(ctx context.Context, src source.Source) (*Catalog, error) {
	recs, err := fetch.All(ctx, src, source.Query{
		Path:   []string{source.KindFolders},
		Fields: source.NotebookFields,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("notebook: list: %w", err)
	}
	nbs := make([]models.Notebook, len(recs))
	for i, r := range recs {
		nbs[i] = models.Notebook{ID: r.ID, Title: r.Title, ParentID: r.ParentID}
	}
	return New(nbs), nil
}

// New builds a catalog from an in-memory notebook list.
func New(notebooks []models.Notebook) *Catalog {
	c := &Catalog{
		all:      append([]models.Notebook(nil), notebooks...),
		byID:     make(map[string]models.Notebook, len(notebooks)),
		children: make(map[string][]string),
	}
	for _, nb := range c.all {
		c.byID[nb.ID] = nb
		if !nb.IsRoot() {
			c.children[nb.ParentID] = append(c.children[nb.ParentID], nb.ID)
		}
	}
	return c
}

// All returns every notebook in load order.
func (c *Catalog) All() []models.Notebook {
	return append([]models.Notebook(nil), c.all...)
}

// Parent returns the parent id of a notebook, or "" for roots and unknown ids.
func (c *Catalog) Parent(id string) string {
	return c.byID[id].ParentID
}

// ByTitle returns every notebook whose title equals title exactly.
func (c *Catalog) ByTitle(title string) []models.Notebook {
	var out []models.Notebook
	for _, nb := range c.all {
		if nb.Title == title {
			out = append(out, nb)
		}
	}
	return out
}

// Descendants returns set extended with every notebook below a member, level
// by level. Each notebook is added at most once, so an inconsistent store with
// parent cycles still terminates.
func (c *Catalog) Descendants(set Set) Set {
	out := make(Set, len(set))
	frontier := make([]string, 0, len(set))
	for id := range set {
		out[id] = struct{}{}
		frontier = append(frontier, id)
	}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			for _, child := range c.children[id] {
				if out.Has(child) {
					continue
				}
				out[child] = struct{}{}
				next = append(next, child)
			}
		}
		frontier = next
	}
	return out
}

// Invert returns every catalog notebook not in set.
func (c *Catalog) Invert(set Set) Set {
	out := make(Set)
	for _, nb := range c.all {
		if !set.Has(nb.ID) {
			out[nb.ID] = struct{}{}
		}
	}
	return out
}
