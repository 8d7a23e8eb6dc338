package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/graphservice"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/source"
	"github.com/starford/notegraph/internal/testutil"
)

func corpus() *testutil.Source {
	return testutil.NewSource().
		AddFolder("work", "Work", "").
		AddFolder("proj", "Projects", "work").
		AddNote("note-a", "work", "A", "[b](:/note-b)").
		AddNote("note-b", "proj", "B", "[c](:/note-c#top)").
		AddNote("note-c", "", "C", "").
		AddTag("t-todo", "todo", "note-b")
}

// testEnv builds a router over src. An empty token means auth is disabled.
func testEnv(t *testing.T, src source.Source, token string) (*graphservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, src, token != "", token, nil)
}

func testEnvWithSSE(t *testing.T, src source.Source, authEnabled bool, token string, sseHandler http.Handler) (*graphservice.Service, http.Handler) {
	t.Helper()
	graphs := graphservice.New(graph.NewBuilder(src), graphservice.DefaultSettings())
	router := NewRouter(graphs, noteservice.NewService(src), authEnabled, token, sseHandler)
	return graphs, router
}

func do(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func nodeIDs(g *graph.Graph) map[string]bool {
	out := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.ID] = true
	}
	return out
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	w := do(router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	snap := decode[SnapshotResponse](t, w)
	if len(snap.Graph.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3", len(snap.Graph.Nodes))
	}
	if len(snap.Graph.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(snap.Graph.Edges))
	}
	if snap.NodeFontSize != 20 || snap.NodeDistanceRatio != 1 || snap.ShowLinkDirection {
		t.Errorf("rendering hints = %d/%v/%v", snap.NodeFontSize, snap.NodeDistanceRatio, snap.ShowLinkDirection)
	}
}

func TestBuildGraph(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	w := do(router, http.MethodPost, "/graph", map[string]any{"note_id": "note-a", "max_degree": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	g := decode[GraphResponse](t, w)
	ids := nodeIDs(&g)
	if len(ids) != 2 || !ids["note-a"] || !ids["note-b"] {
		t.Errorf("nodes = %v, want note-a and note-b", ids)
	}
	for _, n := range g.Nodes {
		if n.Distance == nil {
			t.Errorf("node %s has no distance in degree mode", n.ID)
		}
	}
}

func TestBuildGraph_Filters(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	w := do(router, http.MethodPost, "/graph", map[string]any{
		"notebook_filter":   "Work",
		"filter_children":   true,
		"notebook_polarity": "include",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	g := decode[GraphResponse](t, w)
	ids := nodeIDs(&g)
	if len(ids) != 2 || ids["note-c"] {
		t.Errorf("nodes = %v, want the two notes under Work", ids)
	}
}

func TestBuildGraph_Validation(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	cases := []map[string]any{
		{"max_degree": -1},
		{"max_notes": -5},
		{"tag_polarity": "sideways"},
	}
	for _, body := range cases {
		w := do(router, http.MethodPost, "/graph", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", body, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/graph", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestBuildGraph_SourceFailure(t *testing.T) {
	_, router := testEnv(t, corpus().FailResource("notes"), "")

	w := do(router, http.MethodPost, "/graph", map[string]any{})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got := decode[errResponse](t, w); got.Error != "internal error" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestSelect(t *testing.T) {
	graphs, router := testEnv(t, corpus(), "")
	settings := graphs.Settings()
	settings.MaxDegree = 1
	if err := graphs.UpdateSettings(context.Background(), settings); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	w := do(router, http.MethodPut, "/selection", SelectionRequest{NoteID: "note-b"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	snap := decode[SnapshotResponse](t, w)
	if snap.CurrentNoteID != "note-b" {
		t.Errorf("current = %q", snap.CurrentNoteID)
	}
	ids := nodeIDs(snap.Graph)
	if len(ids) != 2 || !ids["note-b"] || !ids["note-c"] {
		t.Errorf("nodes = %v", ids)
	}

	w = do(router, http.MethodPut, "/selection", SelectionRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty selection = %d, want 400", w.Code)
	}
}

func TestSettings(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	w := do(router, http.MethodPut, "/settings", map[string]any{"max_notes": 2, "include_backlinks": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[SettingsResponse](t, w)
	if got.MaxNotes != 2 || !got.IncludeBacklinks {
		t.Errorf("settings = %+v", got)
	}
	if got.NotebookPolarity != graphservice.PolarityExclude {
		t.Errorf("omitted field lost its value: %+v", got)
	}

	w = do(router, http.MethodGet, "/settings", nil)
	if decode[SettingsResponse](t, w).MaxNotes != 2 {
		t.Error("settings not persisted")
	}

	w = do(router, http.MethodPut, "/settings", map[string]any{"notebook_polarity": "both"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid settings = %d, want 400", w.Code)
	}
}

func TestNoteLinks(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	w := do(router, http.MethodGet, "/notes/note-b/links", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[NoteLinksResponse](t, w)
	if len(got.Links) != 1 || got.Links[0] != "note-c#top" {
		t.Errorf("links = %v", got.Links)
	}
	if len(got.Targets) != 1 || got.Targets[0] != "note-c" {
		t.Errorf("targets = %v", got.Targets)
	}
	if len(got.Backlinks) != 1 || got.Backlinks[0] != "note-a" {
		t.Errorf("backlinks = %v", got.Backlinks)
	}
	if len(got.Tags) != 1 || got.Tags[0].Title != "todo" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestNoteLinks_NotFound(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	w := do(router, http.MethodGet, "/notes/missing/links", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestNotebookFilter(t *testing.T) {
	_, router := testEnv(t, corpus(), "")

	w := do(router, http.MethodGet, "/notebooks/filter?filter=Work&children=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[NotebookFilterResponse](t, w)
	if !got.Active || len(got.Dropped) != 2 || len(got.Kept) != 0 {
		t.Errorf("resolution = %+v", got)
	}

	w = do(router, http.MethodGet, "/notebooks/filter?filter=Work&include=maybe", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad bool = %d, want 400", w.Code)
	}
}

// The same endpoints over a synced Markdown vault.
func TestNoteLinks_Vault(t *testing.T) {
	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	write := func(rel, content string) {
		t.Helper()
		p := filepath.Join(vaultDir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	idB := index.NoteID("topics/b.md")
	write("a.md", "# Alpha\n\nsee [b](:/"+idB+") #draft\n")
	write("topics/b.md", "# Beta\n")

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := index.Sync(context.Background(), db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	_, router := testEnv(t, db, "")

	w := do(router, http.MethodGet, "/notes/"+idB+"/links", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[NoteLinksResponse](t, w)
	if got.Title != "Beta" || got.ParentID != index.FolderID("topics") {
		t.Errorf("note = %+v", got)
	}
	if len(got.Backlinks) != 1 || got.Backlinks[0] != index.NoteID("a.md") {
		t.Errorf("backlinks = %v", got.Backlinks)
	}

	w = do(router, http.MethodGet, "/graph", nil)
	snap := decode[SnapshotResponse](t, w)
	if len(snap.Graph.Nodes) != 2 || len(snap.Graph.Edges) != 1 {
		t.Errorf("graph = %+v", snap.Graph)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, corpus(), "secret123")

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, corpus(), "secret123")

	w := do(router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, corpus(), "secret123")

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	// Writes headers and blocks until the request context is done.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, corpus(), true, "secret", sseStub())

	w := do(router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, router := testEnvWithSSE(t, corpus(), false, "", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, corpus(), true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	_, router := testEnvWithSSE(t, corpus(), true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with access_token should not 401")
	}

	w = do(router, http.MethodGet, "/events?access_token=nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE with wrong access_token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_HeaderWithoutBearer(t *testing.T) {
	_, router := testEnv(t, corpus(), "secret123")

	// A malformed header is not rescued by a valid query token.
	req := httptest.NewRequest(http.MethodGet, "/settings?access_token=secret123", nil)
	req.Header.Set("Authorization", "secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("malformed header = %d, want 401", w.Code)
	}
}
