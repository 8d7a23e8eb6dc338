// Package parser extracts internal note links from note bodies and parses
// vault Markdown documents (frontmatter, title, tags).
package parser

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// An empty link text "[]" is consumed without a capture so that the
	// scanner advances past it; only "[text](:/target)" yields a target.
	internalLinkRe = regexp.MustCompile(`\[\]|\[.*?\]\(:/(.*?)\)`)
	tagRe          = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// ExtractLinks returns the set of targets of internal links ("[text](:/id)")
// found in body. Targets are returned verbatim, anchors included; whether a
// target names an existing note is decided later against the note map.
func ExtractLinks(body string) map[string]struct{} {
	links := make(map[string]struct{})
	for _, m := range internalLinkRe.FindAllStringSubmatchIndex(body, -1) {
		// m[2] < 0 when the "[]" alternative matched.
		if m[2] < 0 {
			continue
		}
		links[body[m[2]:m[3]]] = struct{}{}
	}
	return links
}

// SortedLinks returns the members of a link set in lexical order.
func SortedLinks(links map[string]struct{}) []string {
	out := make([]string, 0, len(links))
	for l := range links {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// StripFragment removes an anchor suffix ("id#section" -> "id").
func StripFragment(target string) string {
	if i := strings.IndexByte(target, '#'); i >= 0 {
		return target[:i]
	}
	return target
}

// Document holds the output of parsing a vault Markdown file.
type Document struct {
	ID          string
	Title       string
	Body        string
	Tags        []string
	Frontmatter map[string]any
}

// ParseDocument extracts frontmatter, body, title and tags from raw Markdown
// bytes. A missing or invalid frontmatter block is not an error: the whole
// input is then treated as body.
func ParseDocument(data []byte) *Document {
	fm, body := splitFrontmatter(data)
	return &Document{
		ID:          frontmatterString(fm, "id"),
		Title:       deriveTitle(fm, body),
		Body:        body,
		Tags:        extractTags(body, fm),
		Frontmatter: fm,
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

func frontmatterString(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// extractTags collects tags from the frontmatter "tags" list and inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t := frontmatterString(fm, "title"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
