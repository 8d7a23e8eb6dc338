// Package fetch drains paginated sources into memory and fans out
// per-identifier lookups.
package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/source"
)

// StopFunc reports whether paging should halt given the records gathered so far.
type StopFunc func(collected int) bool

// AtMost stops paging once n records have been collected.
func AtMost(n int) StopFunc {
	return func(collected int) bool { return collected >= n }
}

// All requests pages 1, 2, ... of q until the source reports no further
// pages or stop returns true. Any page error aborts the whole fetch.
func All(ctx context.Context, src source.Source, q source.Query, stop StopFunc) ([]source.Record, error) {
	var out []source.Record
	for page := 1; ; page++ {
		q.Page = page
		p, err := src.QueryPage(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fetch: %s page %d: %w", q.Resource(), page, err)
		}
		out = append(out, p.Items...)
		if !p.HasMore {
			return out, nil
		}
		if stop != nil && stop(len(out)) {
			return out, nil
		}
		// A source that keeps reporting more pages without returning
		// anything would never terminate.
		if len(p.Items) == 0 {
			return out, nil
		}
	}
}

// Many looks up every id of kind concurrently (at most limit in flight; no
// limit when limit <= 0). Failed or missing ids are dropped. The result
// preserves the order of ids, skipping the failures.
func Many(ctx context.Context, src source.Source, kind string, ids []string, fields []string, limit int, logger *slog.Logger) []source.Record {
	results := make([]*source.Record, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			rec, err := src.QueryByID(gCtx, kind, id, fields)
			if err != nil {
				metrics.FetchFailures.WithLabelValues(kind).Inc()
				if logger != nil {
					logger.Debug("fetch: lookup dropped",
						slog.String("kind", kind),
						slog.String("id", id),
						slog.String("error", err.Error()))
				}
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	// Goroutines never return errors; failures are recorded as nil slots.
	_ = g.Wait()

	out := make([]source.Record, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
