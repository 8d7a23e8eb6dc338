//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on notes.title and notes.body.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error {
	// Body is already stored in the notes table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchClause matches notes whose title or body contains text.
func searchClause(text string) (string, []any) {
	like := "%" + likeEscaper.Replace(text) + "%"
	return `(t.title LIKE ? ESCAPE '\' OR t.body LIKE ? ESCAPE '\')`, []any{like, like}
}
