package index

import "context"

// NoteIndex is the write side of the store used by vault sync and the
// watcher. Readers go through source.Source instead.
type NoteIndex interface {
	UpsertFolder(ctx context.Context, f FolderRow) error
	DeleteFolder(ctx context.Context, id string) error
	FolderPaths(ctx context.Context) (map[string]string, error)
	UpsertNote(ctx context.Context, n NoteRow) error
	DeleteNoteByPath(ctx context.Context, path string) (string, error)
	NoteChecksums(ctx context.Context) (map[string]string, error)
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
