package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FolderRow represents a row in the folders table.
type FolderRow struct {
	ID       string
	Title    string
	ParentID string
	Path     string
}

// NoteRow represents a row in the notes table together with its tag titles.
type NoteRow struct {
	ID          string
	ParentID    string
	Title       string
	Body        string
	Path        string
	Checksum    string
	UpdatedTime int64
	Tags        []string
}

// UpsertFolder inserts or replaces a notebook.
func (db *DB) UpsertFolder(ctx context.Context, f FolderRow) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO folders (id, title, parent_id, path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title     = excluded.title,
			parent_id = excluded.parent_id,
			path      = excluded.path
	`, f.ID, f.Title, f.ParentID, f.Path)
	if err != nil {
		return fmt.Errorf("index: upsert folder: %w", err)
	}
	return nil
}

// DeleteFolder removes a notebook. Notes are not touched.
func (db *DB) DeleteFolder(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete folder: %w", err)
	}
	return nil
}

// FolderPaths returns vault directory path -> folder id for every notebook.
func (db *DB) FolderPaths(ctx context.Context) (map[string]string, error) {
	return db.pathMap(ctx, `SELECT path, id FROM folders`)
}

// NoteChecksums returns vault file path -> checksum for every note.
func (db *DB) NoteChecksums(ctx context.Context) (map[string]string, error) {
	return db.pathMap(ctx, `SELECT path, checksum FROM notes`)
}

func (db *DB) pathMap(ctx context.Context, query string) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: path map: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// UpsertNote inserts or replaces a note, its FTS entry and its tags within a
// transaction. A different note previously stored at the same path is
// replaced.
func (db *DB) UpsertNote(ctx context.Context, n NoteRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	rows, err := tx.QueryContext(ctx, `SELECT id FROM notes WHERE path = ? AND id <> ?`, n.Path, n.ID)
	if err != nil {
		return fmt.Errorf("index: find previous note: %w", err)
	}
	var previous []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		previous = append(previous, id)
	}
	rows.Close()
	for _, id := range previous {
		if err := deleteNoteTx(ctx, tx, id); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, parent_id, title, body, path, checksum, updated_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id    = excluded.parent_id,
			title        = excluded.title,
			body         = excluded.body,
			path         = excluded.path,
			checksum     = excluded.checksum,
			updated_time = excluded.updated_time
	`, n.ID, n.ParentID, n.Title, n.Body, n.Path, n.Checksum, n.UpdatedTime)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when the sqlite_fts5 tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Title, n.Body); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear note tags: %w", err)
	}
	for _, title := range n.Tags {
		tagID := TagID(title)
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tags (id, title) VALUES (?, ?)`, tagID, title); err != nil {
			return fmt.Errorf("index: insert tag: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO note_tags (note_id, tag_id) VALUES (?, ?)`, n.ID, tagID); err != nil {
			return fmt.Errorf("index: insert note tag: %w", err)
		}
	}
	if err := pruneTags(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNoteByPath removes the note stored at path and returns its id.
// An unknown path yields an empty id and no error.
func (db *DB) DeleteNoteByPath(ctx context.Context, path string) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: find note: %w", err)
	}
	if err := deleteNoteTx(ctx, tx, id); err != nil {
		return "", err
	}
	if err := pruneTags(ctx, tx); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

func deleteNoteTx(ctx context.Context, tx *sql.Tx, id string) error {
	ftsDelete(tx, id)
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

// pruneTags drops tags no note carries any more.
func pruneTags(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id NOT IN (SELECT tag_id FROM note_tags)`)
	if err != nil {
		return fmt.Errorf("index: prune tags: %w", err)
	}
	return nil
}

// Stats counts the rows of the store.
type Stats struct {
	Notes   int `json:"notes"`
	Folders int `json:"folders"`
	Tags    int `json:"tags"`
}

// Stats returns row counts.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM notes),
		       (SELECT count(*) FROM folders),
		       (SELECT count(*) FROM tags)
	`).Scan(&s.Notes, &s.Folders, &s.Tags)
	if err != nil {
		return Stats{}, fmt.Errorf("index: stats: %w", err)
	}
	return s, nil
}
