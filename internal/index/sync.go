package index

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/storage"
)

// Event kinds reported to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event describes one index change driven by the vault.
type Event struct {
	Kind   string `json:"kind"`
	NoteID string `json:"note_id"`
	Path   string `json:"path"`
}

// EventCallback is called after a vault-driven index change.
type EventCallback func(Event)

// SyncResult summarises one sync pass.
type SyncResult struct {
	Folders int `json:"folders"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Removed int `json:"removed"`
}

// Sync walks the vault and brings the index up to date:
//   - every directory becomes a notebook, stale notebooks are removed
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(ctx context.Context, idx NoteIndex, store storage.Provider, logger *slog.Logger) (SyncResult, error) {
	return syncVault(ctx, idx, store, logger, nil)
}

func syncVault(ctx context.Context, idx NoteIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) (SyncResult, error) {
	var res SyncResult

	dirs, err := store.Dirs("")
	if err != nil {
		return res, err
	}
	known, err := idx.FolderPaths(ctx)
	if err != nil {
		return res, err
	}
	onDisk := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		onDisk[dir] = struct{}{}
		if err := idx.UpsertFolder(ctx, folderRow(dir)); err != nil {
			logger.Warn("sync: folder failed", slog.String("path", dir), slog.String("error", err.Error()))
			continue
		}
		res.Folders++
	}
	for p, id := range known {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := idx.DeleteFolder(ctx, id); err != nil {
			logger.Warn("sync: folder delete failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}

	metas, err := store.List("")
	if err != nil {
		return res, err
	}
	checksums, err := idx.NoteChecksums(ctx)
	if err != nil {
		return res, err
	}

	files := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		files[m.Path] = struct{}{}

		stored, indexed := checksums[m.Path]
		if stored == m.Checksum {
			res.Skipped++
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		id, err := indexFile(ctx, idx, m.Path, data, m.UpdatedAt)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path), slog.String("id", id))
		if cb != nil {
			kind := EventUpdated
			if !indexed {
				kind = EventCreated
			}
			cb(Event{Kind: kind, NoteID: id, Path: m.Path})
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := files[p]; ok {
			continue
		}
		id, err := idx.DeleteNoteByPath(ctx, p)
		if err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		res.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
		if cb != nil && id != "" {
			cb(Event{Kind: EventDeleted, NoteID: id, Path: p})
		}
	}

	return res, nil
}

// folderRow maps a vault directory to its notebook.
func folderRow(dir string) FolderRow {
	return FolderRow{
		ID:       FolderID(dir),
		Title:    path.Base(dir),
		ParentID: FolderID(path.Dir(dir)),
		Path:     dir,
	}
}

// indexFile parses data and upserts it, returning the note id. The
// frontmatter id wins over the path-derived one; the title falls back to the
// file stem.
func indexFile(ctx context.Context, idx NoteIndex, rel string, data []byte, modified time.Time) (string, error) {
	doc := parser.ParseDocument(data)

	id := doc.ID
	if id == "" {
		id = NoteID(rel)
	}
	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(rel), ".md")
	}

	row := NoteRow{
		ID:          id,
		ParentID:    FolderID(path.Dir(rel)),
		Title:       title,
		Body:        doc.Body,
		Path:        rel,
		Checksum:    storage.Checksum(data),
		UpdatedTime: modified.UnixMilli(),
		Tags:        doc.Tags,
	}
	return id, idx.UpsertNote(ctx, row)
}
