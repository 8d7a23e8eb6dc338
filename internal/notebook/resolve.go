package notebook

import (
	"context"

	"github.com/starford/notegraph/internal/source"
)

// Resolve turns spec into the concrete set of filtered notebooks.
//
// Each token is first looked up as a notebook id; when the lookup fails for
// any reason (not found, or the store rejects the id shape) the token is
// matched against notebook titles instead, possibly matching several
// notebooks. Unknown names match nothing. With Children the set is closed
// over descendants. With Include the set is inverted, so the result is always
// the set of notebooks whose notes are dropped.
//
// An inactive spec yields an empty set.
func (c *Catalog) Resolve(ctx context.Context, src source.Source, spec Spec) Set {
	set := make(Set)
	tokens := Tokens(spec.Filter)
	if len(tokens) == 0 {
		return set
	}

	for _, tok := range tokens {
		if src != nil {
			rec, err := src.QueryByID(ctx, source.KindFolders, tok, source.NotebookFields)
			if err == nil && rec != nil && rec.ID != "" {
				set[rec.ID] = struct{}{}
				continue
			}
		}
		for _, nb := range c.ByTitle(tok) {
			set[nb.ID] = struct{}{}
		}
	}

	if spec.Children {
		set = c.Descendants(set)
	}
	if spec.Include {
		set = c.Invert(set)
	}
	return set
}

// ResolveFilter loads the catalog from src and resolves spec against it.
func ResolveFilter(ctx context.Context, src source.Source, spec Spec) (Set, *Catalog, error) {
	cat, err := Load(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	return cat.Resolve(ctx, src, spec), cat, nil
}
