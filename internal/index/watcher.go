package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notegraph/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the vault root and keeps the index in
// step with file changes until ctx is cancelled. cb (if non-nil) is called
// after each index mutation.
//
// New directories are added to the watch list and become notebooks. Renames
// and directory removals trigger a debounced reconciliation pass over the
// whole vault.
func Watch(ctx context.Context, idx NoteIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	vaultRoot := store.Root()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	emit := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if _, err := syncVault(ctx, idx, store, logger, cb); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil || hiddenPath(rel) {
				continue
			}
			rel = filepath.ToSlash(rel)

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					indexNewDir(ctx, idx, store, absPath, logger, emit)
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				// A removed or renamed directory takes its notes with it.
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					scheduleReconcile()
				}
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				modified := time.Now()
				if info, statErr := os.Stat(absPath); statErr == nil {
					modified = info.ModTime()
				}
				id, idxErr := indexFile(ctx, idx, rel, data, modified)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				emit(Event{Kind: kind, NoteID: id, Path: rel})

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify reports a rename on the old path only; the new path
				// arrives as a separate Create when it stays inside the vault.
				id, delErr := idx.DeleteNoteByPath(ctx, rel)
				if delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else if id != "" {
					logger.Debug("watcher: deleted", slog.String("path", rel))
					emit(Event{Kind: EventDeleted, NoteID: id, Path: rel})
				}
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexNewDir registers a freshly created directory tree as notebooks and
// indexes the .md files already inside it.
func indexNewDir(ctx context.Context, idx NoteIndex, store storage.Provider, dirPath string, logger *slog.Logger, emit func(Event)) {
	root := store.Root()
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if hiddenPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if upErr := idx.UpsertFolder(ctx, folderRow(rel)); upErr != nil {
				logger.Warn("watcher: folder failed", slog.String("path", rel), slog.String("error", upErr.Error()))
			}
			return nil
		}
		if !strings.HasSuffix(p, ".md") {
			return nil
		}
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		modified := time.Now()
		if info, infoErr := d.Info(); infoErr == nil {
			modified = info.ModTime()
		}
		if id, idxErr := indexFile(ctx, idx, rel, data, modified); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			emit(Event{Kind: EventCreated, NoteID: id, Path: rel})
		}
		return nil
	})
}

// hiddenPath reports whether any segment of a vault-relative path starts with
// a dot (editor swap files, our own temp files, VCS directories).
func hiddenPath(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
