// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes graph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/graphservice"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/parser"
)

// Server wraps the MCP server with graph tools.
type Server struct {
	mcp    *server.MCPServer
	graphs *graphservice.Service
	notes  *noteservice.Service
}

// New creates a new MCP server with all tools registered. Builds default to
// the settings of graphs.
func New(graphs *graphservice.Service, notes *noteservice.Service, version string) *Server {
	s := &Server{graphs: graphs, notes: notes}

	s.mcp = server.NewMCPServer(
		"notegraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("build_graph",
		mcp.WithDescription("Build the note-link graph. With max_degree > 0 the graph is the "+
			"neighbourhood of note_id up to that many link hops; otherwise it holds the "+
			"max_notes most recently updated notes. Omitted options use the configured settings."),
		mcp.WithString("note_id", mcp.Description("Selected note; centre of a degree-bounded graph")),
		mcp.WithNumber("max_degree", mcp.Description("Link hops from note_id; 0 builds the bulk graph")),
		mcp.WithNumber("max_notes", mcp.Description("Cap on notes in the bulk graph")),
		mcp.WithBoolean("include_backlinks", mcp.Description("Also follow links pointing at visited notes")),
		mcp.WithString("notebook_filter", mcp.Description("Comma-separated notebook titles or ids")),
		mcp.WithBoolean("filter_children", mcp.Description("Extend the notebook filter to sub-notebooks")),
		mcp.WithString("notebook_polarity", mcp.Enum(graphservice.PolarityExclude, graphservice.PolarityInclude)),
		mcp.WithString("tag_filter", mcp.Description("Comma-separated tag titles")),
		mcp.WithString("tag_polarity", mcp.Enum(graphservice.PolarityExclude, graphservice.PolarityInclude)),
	), s.buildGraph)

	s.mcp.AddTool(mcp.NewTool("extract_links",
		mcp.WithDescription("List the internal note links found in a note body."),
		mcp.WithString("body", mcp.Required(), mcp.Description("Note body text")),
	), s.extractLinks)

	s.mcp.AddTool(mcp.NewTool("resolve_notebook_filter",
		mcp.WithDescription("Show which notebooks a notebook filter drops and which it keeps."),
		mcp.WithString("filter", mcp.Required(), mcp.Description("Comma-separated notebook titles or ids")),
		mcp.WithBoolean("children", mcp.Description("Extend the filter to sub-notebooks")),
		mcp.WithBoolean("include", mcp.Description("Keep only the named notebooks instead of dropping them")),
	), s.resolveNotebookFilter)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Id of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_note_links",
		mcp.WithDescription("Outgoing links, backlinks and tags of one note."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
	), s.getNoteLinks)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("How vault Markdown notes, links, tags and filters are interpreted."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// decodeInto unmarshals the tool arguments onto target, keeping the fields
// the arguments leave out.
func decodeInto(req mcp.CallToolRequest, target any) error {
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

type buildArgs struct {
	NoteID string `json:"note_id"`
	graphservice.Settings
}

func (s *Server) buildGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := buildArgs{NoteID: s.graphs.Selected(), Settings: s.graphs.Settings()}
	if err := decodeInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := args.Settings.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.graphs.Build(ctx, args.Settings.Request(args.NoteID))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(g)
}

func (s *Server) extractLinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links := parser.SortedLinks(parser.ExtractLinks(body))
	return jsonResult(map[string][]string{
		"links":   links,
		"targets": noteservice.Targets(links),
	})
}

type filterArgs struct {
	Filter   string `json:"filter"`
	Children bool   `json:"children"`
	Include  bool   `json:"include"`
}

func (a *filterArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Filter, validation.Required),
	)
}

func (s *Server) resolveNotebookFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args filterArgs
	if err := decodeInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := args.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.notes.ResolveNotebooks(ctx, notebook.Spec{
		Filter:   args.Filter,
		Children: args.Children,
		Include:  args.Include,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := s.notes.Backlinks(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(ids)
}

func (s *Server) getNoteLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.notes.Links(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(links)
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
