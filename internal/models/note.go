// Package models defines the domain types for notegraph.
package models

// Note is a node candidate built from a fetched note record. The body is
// dropped as soon as its links have been extracted.
type Note struct {
	ID       string              `json:"id"`
	ParentID string              `json:"parent_id"`
	Title    string              `json:"title"`
	Links    map[string]struct{} `json:"-"`

	// LinkedToCurrentNote is set during graph assembly.
	LinkedToCurrentNote bool `json:"linked_to_current_note"`

	// DistanceToCurrentNote is the minimal number of link hops from the
	// selected note (0 = the selection itself). Nil when not computed.
	DistanceToCurrentNote *int `json:"distance_to_current_note,omitempty"`
}

// SetDistance stamps the traversal layer at which the note was reached.
func (n *Note) SetDistance(d int) {
	n.DistanceToCurrentNote = &d
}

// Notebook is a folder in the notebook forest.
type Notebook struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parent_id"`
}

// IsRoot reports whether the notebook has no parent.
func (nb Notebook) IsRoot() bool {
	return nb.ParentID == ""
}

// Tag is a label attached to notes through the tag membership resource.
type Tag struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
