package graphservice

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/graph"
)

// Filter polarities as they appear in settings.
const (
	PolarityExclude = "exclude"
	PolarityInclude = "include"
)

// Settings are the user-facing graph options.
type Settings struct {
	MaxNotes         int    `json:"max_notes" yaml:"max_notes"`
	MaxDegree        int    `json:"max_degree" yaml:"max_degree"`
	IncludeBacklinks bool   `json:"include_backlinks" yaml:"include_backlinks"`
	NotebookFilter   string `json:"notebook_filter" yaml:"notebook_filter"`
	FilterChildren   bool   `json:"filter_children" yaml:"filter_children"`
	NotebookPolarity string `json:"notebook_polarity" yaml:"notebook_polarity"`
	TagFilter        string `json:"tag_filter" yaml:"tag_filter"`
	TagPolarity      string `json:"tag_polarity" yaml:"tag_polarity"`

	// Rendering hints passed through to viewers.
	ShowLinkDirection bool `json:"show_link_direction" yaml:"show_link_direction"`
	NodeFontSize      int  `json:"node_font_size" yaml:"node_font_size"`
	// NodeDistance is a percentage; 100 is the viewer's default spacing.
	NodeDistance int `json:"node_distance" yaml:"node_distance"`
}

// DefaultSettings returns the settings a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		MaxNotes:          700,
		FilterChildren:    true,
		NotebookPolarity:  PolarityExclude,
		TagPolarity:       PolarityExclude,
		NodeFontSize:      20,
		NodeDistance:      100,
	}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	polarity := validation.In(PolarityExclude, PolarityInclude)
	return validation.ValidateStruct(s,
		validation.Field(&s.MaxNotes, validation.Min(0)),
		validation.Field(&s.MaxDegree, validation.Min(0)),
		validation.Field(&s.NotebookPolarity, polarity),
		validation.Field(&s.TagPolarity, polarity),
		validation.Field(&s.NodeFontSize, validation.Min(0)),
		validation.Field(&s.NodeDistance, validation.Min(0)),
	)
}

// Request turns the settings into a build request around selectedID.
func (s Settings) Request(selectedID string) graph.Request {
	return graph.Request{
		SelectedID:       selectedID,
		MaxNotes:         s.MaxNotes,
		MaxDegree:        s.MaxDegree,
		NotebookFilter:   s.NotebookFilter,
		FilterChildren:   s.FilterChildren,
		NotebookInclude:  s.NotebookPolarity == PolarityInclude,
		TagFilter:        s.TagFilter,
		TagInclude:       s.TagPolarity == PolarityInclude,
		IncludeBacklinks: s.IncludeBacklinks,
	}
}
