package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/fetch"
	"github.com/starford/notegraph/internal/filter"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/source"
	"github.com/starford/notegraph/internal/tag"
)

const defaultConcurrency = 8

// Builder builds graphs from a record source. It holds no state between
// builds and may be shared.
type Builder struct {
	src         source.Source
	tags        *tag.Resolver
	logger      *slog.Logger
	concurrency int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithConcurrency caps in-flight per-note lookups within one traversal layer.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBuilder returns a builder reading from src.
func NewBuilder(src source.Source, opts ...Option) *Builder {
	b := &Builder{
		src:         src,
		tags:        tag.NewResolver(src),
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves the filters of req, collects notes in the mode req selects
// and assembles the graph.
func (b *Builder) Build(ctx context.Context, req Request) (*Graph, error) {
	mode := req.Mode()
	start := time.Now()

	notes, err := b.Notes(ctx, req)
	if err != nil {
		metrics.GraphBuilds.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	g := Assemble(notes, req.SelectedID)

	metrics.GraphBuilds.WithLabelValues(mode, "ok").Inc()
	metrics.GraphBuildDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.GraphSize.WithLabelValues("nodes").Set(float64(len(g.Nodes)))
	metrics.GraphSize.WithLabelValues("edges").Set(float64(len(g.Edges)))

	b.logger.Debug("graph: built",
		slog.String("mode", mode),
		slog.String("selected", req.SelectedID),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("edges", len(g.Edges)),
		slog.Duration("elapsed", time.Since(start)))
	return g, nil
}

// Notes returns the filtered note map for req without assembling it.
func (b *Builder) Notes(ctx context.Context, req Request) (*models.NoteMap, error) {
	pred, err := b.Predicate(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Mode() == ModeDegree {
		if req.SelectedID == "" {
			return models.NewNoteMap(), nil
		}
		return b.Neighborhood(ctx, req.SelectedID, req.MaxDegree, req.IncludeBacklinks, pred)
	}
	return b.Bulk(ctx, req.MaxNotes, pred)
}

// Predicate resolves the notebook and tag filters of req. Inactive filters
// cost no source requests.
func (b *Builder) Predicate(ctx context.Context, req Request) (filter.Predicate, error) {
	spec := notebook.Spec{
		Filter:   req.NotebookFilter,
		Children: req.FilterChildren,
		Include:  req.NotebookInclude,
	}
	var (
		dropped notebook.Set
		tree    filter.Hierarchy
	)
	if spec.Active() {
		set, cat, err := notebook.ResolveFilter(ctx, b.src, spec)
		if err != nil {
			return filter.Predicate{}, fmt.Errorf("graph: notebook filter: %w", err)
		}
		dropped, tree = set, cat
	}

	tagNotes, tagActive, err := b.tags.NotesForFilter(ctx, req.TagFilter)
	if err != nil {
		return filter.Predicate{}, fmt.Errorf("graph: tag filter: %w", err)
	}
	return filter.New(spec, dropped, tree, tagNotes, tagActive, req.TagInclude), nil
}

// Bulk collects the maxNotes most recently updated notes and filters them.
// A failing page fails the whole build.
func (b *Builder) Bulk(ctx context.Context, maxNotes int, pred filter.Predicate) (*models.NoteMap, error) {
	all := models.NewNoteMap()
	if maxNotes <= 0 {
		return all, nil
	}
	recs, err := fetch.All(ctx, b.src, source.Query{
		Path:     []string{source.KindNotes},
		Fields:   source.NoteFields,
		OrderBy:  source.FieldUpdatedTime,
		OrderDir: source.OrderDesc,
		Limit:    min(maxNotes, source.MaxPageSize),
	}, fetch.AtMost(maxNotes))
	if err != nil {
		return nil, fmt.Errorf("graph: bulk: %w", err)
	}
	if len(recs) > maxNotes {
		recs = recs[:maxNotes]
	}
	for _, rec := range recs {
		if _, dup := all.Get(rec.ID); dup {
			continue
		}
		all.Set(rec.ID, newNote(rec))
	}
	return pred.Apply(all), nil
}

// Neighborhood expands breadth-first from start for at most maxDegree layers.
// Every requested id is marked visited whether or not its lookup succeeds, so
// a note is fetched at most once and keeps the layer at which it was first
// reached. Notes rejected by pred are neither kept nor expanded.
func (b *Builder) Neighborhood(ctx context.Context, start string, maxDegree int, backlinks bool, pred filter.Predicate) (*models.NoteMap, error) {
	result := models.NewNoteMap()
	visited := make(map[string]struct{})
	pending := []string{start}

	for degree := 0; len(pending) > 0 && degree <= maxDegree; degree++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, id := range pending {
			visited[id] = struct{}{}
		}
		recs := fetch.Many(ctx, b.src, source.KindNotes, pending, source.NoteFields, b.concurrency, b.logger)

		var kept []*models.Note
		for _, rec := range recs {
			if _, dup := result.Get(rec.ID); dup {
				continue
			}
			n := newNote(rec)
			n.SetDistance(degree)
			if !pred.Accept(n) {
				continue
			}
			result.Set(n.ID, n)
			kept = append(kept, n)
		}

		b.logger.Debug("graph: layer fetched",
			slog.Int("degree", degree),
			slog.Int("requested", len(pending)),
			slog.Int("kept", len(kept)))

		if degree == maxDegree {
			break
		}

		var back [][]string
		if backlinks {
			back = b.backlinks(ctx, kept)
		}
		next := make([]string, 0)
		queued := make(map[string]struct{})
		enqueue := func(id string) {
			if _, ok := visited[id]; ok {
				return
			}
			if _, ok := queued[id]; ok {
				return
			}
			queued[id] = struct{}{}
			next = append(next, id)
		}
		for i, n := range kept {
			for _, link := range parser.SortedLinks(n.Links) {
				enqueue(parser.StripFragment(link))
			}
			if backlinks {
				for _, id := range back[i] {
					enqueue(id)
				}
			}
		}
		pending = next
	}
	return result, nil
}

// backlinks queries the reverse links of every note concurrently. A failed
// query contributes nothing.
func (b *Builder) backlinks(ctx context.Context, notes []*models.Note) [][]string {
	out := make([][]string, len(notes))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, n := range notes {
		g.Go(func() error {
			ids, err := b.src.Backlinks(gCtx, n.ID)
			if err != nil {
				b.logger.Debug("graph: backlinks dropped",
					slog.String("id", n.ID),
					slog.String("error", err.Error()))
				return nil
			}
			out[i] = ids
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func newNote(rec source.Record) *models.Note {
	return &models.Note{
		ID:       rec.ID,
		ParentID: rec.ParentID,
		Title:    rec.Title,
		Links:    parser.ExtractLinks(rec.Body),
	}
}
