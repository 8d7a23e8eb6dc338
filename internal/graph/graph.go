// Package graph builds note-link graphs: it collects notes either in bulk or
// by breadth-first expansion around a selected note, filters them, and
// assembles the node and edge lists handed to viewers.
package graph

// Node is one note of the output graph.
type Node struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Focused bool   `json:"focused"`
	// Distance is the minimal hop count from the selection. Nil in bulk mode.
	Distance *int `json:"distance,omitempty"`
}

// Edge is a link between two retained notes.
type Edge struct {
	Source         string `json:"source"`
	Target         string `json:"target"`
	Focused        bool   `json:"focused"`
	SourceDistance *int   `json:"source_distance,omitempty"`
	TargetDistance *int   `json:"target_distance,omitempty"`
}

// Graph is the result of a build.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty returns a graph with no nodes and no edges.
func Empty() *Graph {
	return &Graph{Nodes: []Node{}, Edges: []Edge{}}
}

// Request describes one build.
type Request struct {
	// SelectedID is the note at the centre of a degree-bounded build and the
	// reference for focus and distance.
	SelectedID string `json:"note_id"`
	// MaxNotes caps a bulk build.
	MaxNotes int `json:"max_notes"`
	// MaxDegree selects degree-bounded mode when positive.
	MaxDegree int `json:"max_degree"`

	NotebookFilter  string `json:"notebook_filter"`
	FilterChildren  bool   `json:"filter_children"`
	NotebookInclude bool   `json:"notebook_include"`

	TagFilter  string `json:"tag_filter"`
	TagInclude bool   `json:"tag_include"`

	IncludeBacklinks bool `json:"include_backlinks"`
}

// Mode returns the traversal mode the request selects.
func (r Request) Mode() string {
	if r.MaxDegree > 0 {
		return ModeDegree
	}
	return ModeBulk
}

// Traversal modes.
const (
	ModeBulk   = "bulk"
	ModeDegree = "degree"
)
