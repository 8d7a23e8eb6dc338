package joplin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/fetch"
	"github.com/starford/notegraph/internal/source"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL+"/"), WithToken("secret"), WithRateLimit(0))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestQueryPage_EncodesQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notes" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"token":     "secret",
			"fields":    "id,parent_id,title,body",
			"order_by":  "updated_time",
			"order_dir": "DESC",
			"limit":     "100",
			"page":      "2",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("%s = %q, want %q", k, q.Get(k), v)
			}
		}
		writeJSON(w, map[string]any{
			"items":    []map[string]any{{"id": "n1", "parent_id": "f1", "title": "One", "body": "b", "updated_time": 1700000000000}},
			"has_more": true,
		})
	})

	p, err := c.QueryPage(context.Background(), source.Query{
		Path:     []string{source.KindNotes},
		Fields:   source.NoteFields,
		OrderBy:  source.FieldUpdatedTime,
		OrderDir: "desc",
		Limit:    500,
		Page:     2,
	})
	if err != nil {
		t.Fatalf("QueryPage: %v", err)
	}
	if !p.HasMore || len(p.Items) != 1 {
		t.Fatalf("page = %+v", p)
	}
	if got := p.Items[0]; got.ParentID != "f1" || got.UpdatedTime != 1700000000000 {
		t.Errorf("record = %+v", got)
	}
}

func TestQueryPage_SubResourceAndSearch(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tags/t1/notes":
			writeJSON(w, map[string]any{"items": []map[string]any{{"id": "n1"}}})
		case "/search":
			if r.URL.Query().Get("query") != "abc" {
				t.Errorf("query = %q", r.URL.Query().Get("query"))
			}
			writeJSON(w, map[string]any{"items": nil, "has_more": false})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	p, err := c.QueryPage(ctx, source.Query{Path: []string{source.KindTags, "t1", source.KindNotes}})
	if err != nil || len(p.Items) != 1 {
		t.Fatalf("tag notes = %+v, %v", p, err)
	}
	p, err = c.QueryPage(ctx, source.Query{Path: []string{source.KindSearch}, Text: "abc"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if p.Items == nil || len(p.Items) != 0 {
		t.Errorf("items = %#v, want empty non-nil", p.Items)
	}
}

func TestQueryByID_NotFoundIsDistinct(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/folders/f1":
			writeJSON(w, map[string]any{"id": "f1", "title": "Work", "parent_id": ""})
		case "/folders/boom":
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]string{"error": "database exploded"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	rec, err := c.QueryByID(ctx, source.KindFolders, "f1", source.NotebookFields)
	if err != nil || rec.Title != "Work" {
		t.Fatalf("QueryByID = %+v, %v", rec, err)
	}

	_, err = c.QueryByID(ctx, source.KindFolders, "missing", nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing error = %v, want ErrNotFound", err)
	}

	_, err = c.QueryByID(ctx, source.KindFolders, "boom", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 || apiErr.Message != "database exploded" {
		t.Errorf("server error = %v", err)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		t.Error("transport failure must not look like not-found")
	}
}

func TestQueryByID_EmptyReplyIsNotFound(t *testing.T) {
	var gotFields atomic.Value
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotFields.Store(r.URL.Query().Get("fields"))
		switch r.URL.Path {
		case "/folders/null":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("null"))
		case "/folders/empty":
			writeJSON(w, map[string]any{})
		default:
			writeJSON(w, map[string]any{"id": "f1", "title": "Work"})
		}
	})
	ctx := context.Background()

	for _, id := range []string{"null", "empty"} {
		rec, err := c.QueryByID(ctx, source.KindFolders, id, source.NotebookFields)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("%s: QueryByID = %+v, %v; want ErrNotFound", id, rec, err)
		}
	}

	// The id is always requested so that a found record is recognisable.
	rec, err := c.QueryByID(ctx, source.KindFolders, "f1", []string{source.FieldTitle})
	if err != nil || rec.ID != "f1" {
		t.Fatalf("QueryByID = %+v, %v", rec, err)
	}
	if got := gotFields.Load(); got != "id,title" {
		t.Errorf("fields = %v, want id,title", got)
	}
}

func TestAuthError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := c.QueryPage(context.Background(), source.Query{Path: []string{source.KindFolders}})
	if !errors.Is(err, ErrAuthError) {
		t.Errorf("error = %v, want ErrAuthError", err)
	}
}

func TestBacklinks_PagesSearch(t *testing.T) {
	var calls atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if r.URL.Query().Get("fields") != "id" {
			t.Errorf("fields = %q", r.URL.Query().Get("fields"))
		}
		switch page {
		case 1:
			writeJSON(w, map[string]any{"items": []map[string]any{{"id": "a"}, {"id": "target"}}, "has_more": true})
		default:
			writeJSON(w, map[string]any{"items": []map[string]any{{"id": "b"}}, "has_more": false})
		}
	})

	ids, err := c.Backlinks(context.Background(), "target")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want [a b]", ids)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchAll_ThroughClient(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeJSON(w, map[string]any{
			"items":    []map[string]any{{"id": "f" + strconv.Itoa(page)}},
			"has_more": page < 3,
		})
	})
	recs, err := fetch.All(context.Background(), c, source.Query{Path: []string{source.KindFolders}}, nil)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("len = %d, want 3", len(recs))
	}
}

func TestPing(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			_, _ = w.Write([]byte("JoplinClipperServer"))
			return
		}
		http.NotFound(w, r)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"), WithRateLimit(0.001))
	// Drain the single burst token.
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.QueryPage(ctx, source.Query{Path: []string{source.KindNotes}})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
