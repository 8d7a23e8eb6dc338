package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/fetch"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/source"
)

var _ source.Source = (*DB)(nil)

// table describes one queryable resource: its SQL name, the fields callers
// may select or order by, and the fields returned when none are requested.
type table struct {
	name     string
	fields   []string
	defaults []string
}

var tables = map[string]table{
	source.KindNotes: {
		name:     "notes",
		fields:   []string{source.FieldID, source.FieldParentID, source.FieldTitle, source.FieldBody, source.FieldUpdatedTime},
		defaults: source.NoteFields,
	},
	source.KindFolders: {
		name:     "folders",
		fields:   []string{source.FieldID, source.FieldParentID, source.FieldTitle},
		defaults: source.NotebookFields,
	},
	source.KindTags: {
		name:     "tags",
		fields:   []string{source.FieldID, source.FieldTitle},
		defaults: source.TagFields,
	},
}

func (t table) allows(field string) bool {
	for _, f := range t.fields {
		if f == field {
			return true
		}
	}
	return false
}

// columns validates fields and returns the select list and the field order.
func (t table) columns(fields []string) (string, []string, error) {
	if len(fields) == 0 {
		fields = t.defaults
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		if !t.allows(f) {
			return "", nil, fmt.Errorf("index: field %q on %s: %w", f, t.name, apperr.ErrInvalidQuery)
		}
		cols[i] = "t." + f
	}
	return strings.Join(cols, ", "), fields, nil
}

func (t table) orderBy(field, dir string) (string, error) {
	if field == "" {
		return "t.rowid", nil
	}
	if !t.allows(field) {
		return "", fmt.Errorf("index: order by %q on %s: %w", field, t.name, apperr.ErrInvalidQuery)
	}
	switch strings.ToUpper(dir) {
	case "", source.OrderAsc:
		dir = source.OrderAsc
	case source.OrderDesc:
		dir = source.OrderDesc
	default:
		return "", fmt.Errorf("index: order direction %q: %w", dir, apperr.ErrInvalidQuery)
	}
	return fmt.Sprintf("t.%s %s, t.rowid", field, dir), nil
}

// scanTargets returns pointers into rec for each field, in order.
func scanTargets(rec *source.Record, fields []string) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		switch f {
		case source.FieldID:
			out[i] = &rec.ID
		case source.FieldParentID:
			out[i] = &rec.ParentID
		case source.FieldTitle:
			out[i] = &rec.Title
		case source.FieldBody:
			out[i] = &rec.Body
		case source.FieldUpdatedTime:
			out[i] = &rec.UpdatedTime
		}
	}
	return out
}

// QueryPage implements source.Source.
func (db *DB) QueryPage(ctx context.Context, q source.Query) (*source.Page, error) {
	metrics.SourceRequests.WithLabelValues("sqlite", q.Route()).Inc()

	var (
		kind  string
		join  string
		where = "1 = 1"
		args  []any
	)
	switch {
	case len(q.Path) == 1 && q.Path[0] == source.KindSearch:
		if strings.TrimSpace(q.Text) == "" {
			return &source.Page{Items: []source.Record{}}, nil
		}
		kind = source.KindNotes
		where, args = searchClause(q.Text)
	case len(q.Path) == 1:
		kind = q.Path[0]
	case len(q.Path) == 3 && q.Path[0] == source.KindTags && q.Path[2] == source.KindNotes:
		kind = source.KindNotes
		join = "JOIN note_tags nt ON nt.note_id = t.id"
		where, args = "nt.tag_id = ?", []any{q.Path[1]}
	case len(q.Path) == 3 && q.Path[0] == source.KindNotes && q.Path[2] == source.KindTags:
		kind = source.KindTags
		join = "JOIN note_tags nt ON nt.tag_id = t.id"
		where, args = "nt.note_id = ?", []any{q.Path[1]}
	}
	tbl, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("index: resource %q: %w", q.Resource(), apperr.ErrInvalidQuery)
	}

	cols, fields, err := tbl.columns(q.Fields)
	if err != nil {
		return nil, err
	}
	order, err := tbl.orderBy(q.OrderBy, q.OrderDir)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 || limit > source.MaxPageSize {
		limit = source.MaxPageSize
	}
	page := max(q.Page, 1)

	query := fmt.Sprintf(`SELECT %s FROM %s t %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		cols, tbl.name, join, where, order)
	args = append(args, limit+1, (page-1)*limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query %s: %w", q.Resource(), err)
	}
	defer rows.Close()

	items := make([]source.Record, 0, limit)
	for rows.Next() {
		var rec source.Record
		if err := rows.Scan(scanTargets(&rec, fields)...); err != nil {
			return nil, fmt.Errorf("index: scan %s: %w", q.Resource(), err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: query %s: %w", q.Resource(), err)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return &source.Page{Items: items, HasMore: hasMore}, nil
}

// QueryByID implements source.Source.
func (db *DB) QueryByID(ctx context.Context, kind, id string, fields []string) (*source.Record, error) {
	metrics.SourceRequests.WithLabelValues("sqlite", kind+"/:id").Inc()

	tbl, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("index: resource %q: %w", kind, apperr.ErrInvalidQuery)
	}
	cols, fields, err := tbl.columns(fields)
	if err != nil {
		return nil, err
	}

	var rec source.Record
	err = db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s t WHERE t.id = ?`, cols, tbl.name), id,
	).Scan(scanTargets(&rec, fields)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s %s: %w", kind, id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get %s %s: %w", kind, id, err)
	}
	return &rec, nil
}

// Backlinks implements source.Source by searching note bodies for noteID.
// The note itself is never its own backlink.
func (db *DB) Backlinks(ctx context.Context, noteID string) ([]string, error) {
	recs, err := fetch.All(ctx, db, source.Query{
		Path:   []string{source.KindSearch},
		Text:   noteID,
		Fields: source.IDFields,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.ID != noteID {
			out = append(out, r.ID)
		}
	}
	return out, nil
}
