// Package testutil provides shared test helpers: an in-memory record source,
// temporary vaults and temporary SQLite indexes.
package testutil

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/fetch"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/source"
	"github.com/starford/notegraph/internal/storage"
)

// ErrTransport is returned for injected failures.
var ErrTransport = errors.New("testutil: injected transport failure")

// Source is an in-memory source.Source. The zero value is not usable; call NewSource.
type Source struct {
	mu sync.Mutex

	notes    []source.Record
	folders  []source.Record
	tags     []source.Record
	tagNotes map[string][]string

	// PageSize caps every page regardless of the requested limit.
	PageSize int

	failIDs       map[string]bool
	failResources map[string]bool
	calls         map[string]int
	clock         int64
}

var _ source.Source = (*Source)(nil)

// NewSource returns an empty in-memory source.
func NewSource() *Source {
	return &Source{
		tagNotes:      make(map[string][]string),
		failIDs:       make(map[string]bool),
		failResources: make(map[string]bool),
		calls:         make(map[string]int),
	}
}

// AddNote adds a note. Each added note is more recently updated than the last.
func (s *Source) AddNote(id, parentID, title, body string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	s.notes = append(s.notes, source.Record{ID: id, ParentID: parentID, Title: title, Body: body, UpdatedTime: s.clock})
	return s
}

// AddFolder adds a notebook.
func (s *Source) AddFolder(id, title, parentID string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = append(s.folders, source.Record{ID: id, Title: title, ParentID: parentID})
	return s
}

// AddTag adds a tag carried by noteIDs.
func (s *Source) AddTag(id, title string, noteIDs ...string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, source.Record{ID: id, Title: title})
	s.tagNotes[id] = append(s.tagNotes[id], noteIDs...)
	return s
}

// FailID makes every QueryByID for id fail with ErrTransport.
func (s *Source) FailID(id string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failIDs[id] = true
	return s
}

// FailResource makes QueryPage for the slash-joined resource fail.
func (s *Source) FailResource(resource string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failResources[resource] = true
	return s
}

// Calls returns how many requests hit key ("notes", "notes/<id>", "search", ...).
func (s *Source) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// QueryPage implements source.Source.
func (s *Source) QueryPage(_ context.Context, q source.Query) (*source.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := q.Resource()
	s.calls[res]++
	if s.failResources[res] {
		return nil, ErrTransport
	}

	var items []source.Record
	switch {
	case res == source.KindNotes:
		items = append(items, s.notes...)
	case res == source.KindFolders:
		items = append(items, s.folders...)
	case res == source.KindTags:
		items = append(items, s.tags...)
	case res == source.KindSearch:
		for _, n := range s.notes {
			if q.Text != "" && (strings.Contains(n.Body, q.Text) || strings.Contains(n.Title, q.Text)) {
				items = append(items, n)
			}
		}
	case len(q.Path) == 3 && q.Path[0] == source.KindTags && q.Path[2] == source.KindNotes:
		for _, id := range s.tagNotes[q.Path[1]] {
			if n, ok := s.find(s.notes, id); ok {
				items = append(items, n)
			}
		}
	case len(q.Path) == 3 && q.Path[0] == source.KindNotes && q.Path[2] == source.KindTags:
		for _, t := range s.tags {
			for _, id := range s.tagNotes[t.ID] {
				if id == q.Path[1] {
					items = append(items, t)
					break
				}
			}
		}
	default:
		return nil, apperr.ErrInvalidQuery
	}

	if q.OrderBy == source.FieldUpdatedTime {
		desc := q.OrderDir == source.OrderDesc
		sort.SliceStable(items, func(i, j int) bool {
			if desc {
				return items[i].UpdatedTime > items[j].UpdatedTime
			}
			return items[i].UpdatedTime < items[j].UpdatedTime
		})
	}

	limit := q.Limit
	if limit <= 0 || limit > source.MaxPageSize {
		limit = source.MaxPageSize
	}
	if s.PageSize > 0 && s.PageSize < limit {
		limit = s.PageSize
	}
	page := max(q.Page, 1)

	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := min(start+limit, len(items))
	return &source.Page{Items: items[start:end], HasMore: end < len(items)}, nil
}

// QueryByID implements source.Source.
func (s *Source) QueryByID(_ context.Context, kind, id string, _ []string) (*source.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[kind+"/"+id]++
	if s.failIDs[id] {
		return nil, ErrTransport
	}
	var set []source.Record
	switch kind {
	case source.KindNotes:
		set = s.notes
	case source.KindFolders:
		set = s.folders
	case source.KindTags:
		set = s.tags
	default:
		return nil, apperr.ErrInvalidQuery
	}
	rec, ok := s.find(set, id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &rec, nil
}

// Backlinks implements source.Source on top of the search resource.
func (s *Source) Backlinks(ctx context.Context, noteID string) ([]string, error) {
	recs, err := fetch.All(ctx, s, source.Query{
		Path:   []string{source.KindSearch},
		Text:   noteID,
		Fields: source.IDFields,
	}, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *Source) find(set []source.Record, id string) (source.Record, bool) {
	for _, r := range set {
		if r.ID == id {
			return r, true
		}
	}
	return source.Record{}, false
}

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notegraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}
