package notebook_test

import (
	"context"
	"sort"
	"testing"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/testutil"
)

// tree:
//
//	archive (Archive)
//	└── old (Old)
//	    └── older (Older)
//	work (Work)
//	└── proj (Projects)
//	personal (Personal)
//	dup1 (Shared), dup2 (Shared)
func treeSource() *testutil.Source {
	return testutil.NewSource().
		AddFolder("archive", "Archive", "").
		AddFolder("old", "Old", "archive").
		AddFolder("older", "Older", "old").
		AddFolder("work", "Work", "").
		AddFolder("proj", "Projects", "work").
		AddFolder("personal", "Personal", "").
		AddFolder("dup1", "Shared", "").
		AddFolder("dup2", "Shared", "personal")
}

func ids(s notebook.Set) []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func resolve(t *testing.T, spec notebook.Spec) []string {
	t.Helper()
	set, _, err := notebook.ResolveFilter(context.Background(), treeSource(), spec)
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	return ids(set)
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestResolve_EmptyFilterIsNoop(t *testing.T) {
	for _, include := range []bool{false, true} {
		got := resolve(t, notebook.Spec{Filter: " , ", Children: true, Include: include})
		if len(got) != 0 {
			t.Errorf("include=%v: ids = %v, want none", include, got)
		}
	}
	if (notebook.Spec{Filter: ""}).Active() {
		t.Error("empty spec should be inactive")
	}
}

func TestResolve_ByTitle(t *testing.T) {
	assertIDs(t, resolve(t, notebook.Spec{Filter: "Archive"}), "archive")
}

func TestResolve_ByID(t *testing.T) {
	assertIDs(t, resolve(t, notebook.Spec{Filter: "proj"}), "proj")
}

func TestResolve_MixedAndDuplicateTitles(t *testing.T) {
	assertIDs(t, resolve(t, notebook.Spec{Filter: "work, Shared"}), "work", "dup1", "dup2")
}

func TestResolve_UnknownNameMatchesNothing(t *testing.T) {
	assertIDs(t, resolve(t, notebook.Spec{Filter: "Nope"}))
}

func TestResolve_Children(t *testing.T) {
	assertIDs(t, resolve(t, notebook.Spec{Filter: "Archive", Children: true}), "archive", "old", "older")
}

func TestResolve_IncludeInverts(t *testing.T) {
	assertIDs(t, resolve(t, notebook.Spec{Filter: "Work", Children: true, Include: true}),
		"archive", "old", "older", "personal", "dup1", "dup2")
}

func TestResolve_IDLookupFailureFallsBackToTitle(t *testing.T) {
	src := treeSource().FailID("Work")
	set, _, err := notebook.ResolveFilter(context.Background(), src, notebook.Spec{Filter: "Work"})
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	assertIDs(t, ids(set), "work")
}

func TestResolve_ListFailure(t *testing.T) {
	src := treeSource().FailResource("folders")
	if _, _, err := notebook.ResolveFilter(context.Background(), src, notebook.Spec{Filter: "Work"}); err == nil {
		t.Fatal("expected error when notebooks cannot be listed")
	}
}

func TestDescendants_CycleTerminates(t *testing.T) {
	cat := notebook.New([]models.Notebook{
		{ID: "a", Title: "A", ParentID: "c"},
		{ID: "b", Title: "B", ParentID: "a"},
		{ID: "c", Title: "C", ParentID: "b"},
	})
	got := cat.Descendants(notebook.Set{"a": {}})
	assertIDs(t, ids(got), "a", "b", "c")
}

func TestCatalog_Lookups(t *testing.T) {
	cat, err := notebook.Load(context.Background(), treeSource())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.All()) != 8 {
		t.Errorf("len(All) = %d, want 8", len(cat.All()))
	}
	if cat.Parent("older") != "old" {
		t.Errorf("Parent(older) = %q", cat.Parent("older"))
	}
	if cat.Parent("unknown") != "" {
		t.Errorf("Parent(unknown) = %q, want empty", cat.Parent("unknown"))
	}
}
