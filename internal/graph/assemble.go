package graph

import (
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

type edgeKey struct{ source, target string }

// Assemble turns a retained note map into nodes and edges. Links are compared
// with their anchor fragment stripped; a link whose target is not in notes is
// dropped. A note is focused when it is selectedID or linked to it in either
// direction. The LinkedToCurrentNote flag of every note is rewritten.
func Assemble(notes *models.NoteMap, selectedID string) *Graph {
	g := Empty()
	seen := make(map[edgeKey]struct{})

	for p := notes.Oldest(); p != nil; p = p.Next() {
		p.Value.LinkedToCurrentNote = false
	}

	for p := notes.Oldest(); p != nil; p = p.Next() {
		src := p.Value
		for _, link := range parser.SortedLinks(src.Links) {
			targetID := parser.StripFragment(link)
			dst, ok := notes.Get(targetID)
			if !ok {
				continue
			}
			key := edgeKey{src.ID, dst.ID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			focused := selectedID != "" && (src.ID == selectedID || dst.ID == selectedID)
			if selectedID != "" {
				if src.ID == selectedID {
					dst.LinkedToCurrentNote = true
				}
				if dst.ID == selectedID {
					src.LinkedToCurrentNote = true
				}
			}
			g.Edges = append(g.Edges, Edge{
				Source:         src.ID,
				Target:         dst.ID,
				Focused:        focused,
				SourceDistance: src.DistanceToCurrentNote,
				TargetDistance: dst.DistanceToCurrentNote,
			})
		}
	}

	for p := notes.Oldest(); p != nil; p = p.Next() {
		n := p.Value
		g.Nodes = append(g.Nodes, Node{
			ID:       n.ID,
			Title:    n.Title,
			Focused:  (selectedID != "" && n.ID == selectedID) || n.LinkedToCurrentNote,
			Distance: n.DistanceToCurrentNote,
		})
	}
	return g
}
