package mcpserver

// NoteFormatURI is the resource URI of NoteFormatContract.
const NoteFormatURI = "notegraph://note-format"

// NoteFormatContract describes how vault notes are read into the graph.
const NoteFormatContract = `# notegraph Note Format

A vault is a directory of Markdown files. Each ` + "`" + `.md` + "`" + ` file is a note and
each directory is a notebook whose parent is the containing directory. The
vault root itself is not a notebook; notes placed there have no notebook.

## Structure

` + "```" + `markdown
---
id: 3a1f0c2e9b8d4f6a8c7e5d4b3a291f0e   # OPTIONAL – 32 hex characters
title: Human-readable title            # OPTIONAL – falls back to the first "# " heading, then the file name
tags: [project-x, todo]                # OPTIONAL – list or comma-separated string
---

Body text. Link to another note with [its title](:/<note id>).
Anchors are allowed: [a section](:/<note id>#section).
` + "```" + `

## Identifiers

- Without a frontmatter ` + "`" + `id` + "`" + `, a note's id is derived from its vault-relative
  path, so moving a file changes its id. Pin the id in frontmatter to keep links
  stable across moves.
- Notebook ids are derived from the directory path; tag ids from the tag title.
- Use the ` + "`" + `build_graph` + "`" + ` tool to look up ids of existing notes.

## Links

- Only ` + "`" + `[text](:/id)` + "`" + ` links count. ` + "`" + `[](:/id)` + "`" + ` with empty text is ignored.
- The part after ` + "`" + `#` + "`" + ` is dropped when matching a link to a note.
- Links to ids that are not notes (attachments, deleted notes) are left out of
  the graph.

## Tags

- Frontmatter tags and inline ` + "`" + `#tags` + "`" + ` in the body are merged.
- Inline tags start with a letter: ` + "`" + `#todo` + "`" + `, ` + "`" + `#area/work` + "`" + `.

## Filters

- Notebook filters are comma-separated notebook ids or titles. A title matches
  every notebook carrying it.
- ` + "`" + `filter_children` + "`" + ` extends a filter to every notebook below a named one.
- Polarity ` + "`" + `exclude` + "`" + ` drops the named notebooks; ` + "`" + `include` + "`" + ` keeps only them.
- Tag filters work the same way on tag titles.
`
