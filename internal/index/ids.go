package index

import (
	"strings"

	"github.com/google/uuid"
)

// namespace scopes every derived identifier to this application.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/starford/notegraph"))

func derive(kind, name string) string {
	return strings.ReplaceAll(uuid.NewSHA1(namespace, []byte(kind+":"+name)).String(), "-", "")
}

// NoteID returns the stable 32-hex identifier of the note at a vault path.
func NoteID(path string) string { return derive("note", path) }

// FolderID returns the stable identifier of the notebook for a vault
// directory. The vault root has no notebook.
func FolderID(dir string) string {
	if dir == "" || dir == "." {
		return ""
	}
	return derive("folder", dir)
}

// TagID returns the identifier of a tag title.
func TagID(title string) string { return derive("tag", title) }
