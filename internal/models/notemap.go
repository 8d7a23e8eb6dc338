package models

import orderedmap "github.com/wk8/go-ordered-map/v2"

// NoteMap maps note ids to notes in insertion order.
type NoteMap = orderedmap.OrderedMap[string, *Note]

// NewNoteMap returns an empty NoteMap.
func NewNoteMap() *NoteMap {
	return orderedmap.New[string, *Note]()
}
