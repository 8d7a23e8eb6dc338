package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notegraph/internal"
	"github.com/starford/notegraph/internal/graphservice"
	pkgconfig "github.com/starford/notegraph/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func buildGraph(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	settings := cfg.Graph.Settings
	if cmd.IsSet("degree") {
		settings.MaxDegree = int(cmd.Int("degree"))
	}
	if cmd.IsSet("max-notes") {
		settings.MaxNotes = int(cmd.Int("max-notes"))
	}
	if cmd.IsSet("backlinks") {
		settings.IncludeBacklinks = cmd.Bool("backlinks")
	}
	if cmd.IsSet("notebooks") {
		settings.NotebookFilter = cmd.String("notebooks")
	}
	if cmd.IsSet("include-notebooks") {
		settings.NotebookPolarity = polarity(cmd.Bool("include-notebooks"))
	}
	if cmd.IsSet("tags") {
		settings.TagFilter = cmd.String("tags")
	}
	if cmd.IsSet("include-tags") {
		settings.TagPolarity = polarity(cmd.Bool("include-tags"))
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid graph options: %w", err)
	}

	// Logs go to stderr so that stdout carries only the graph.
	g, err := internal.BuildGraph(ctx, settings.Request(cmd.String("note")),
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
	)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

func polarity(include bool) string {
	if include {
		return graphservice.PolarityInclude
	}
	return graphservice.PolarityExclude
}

func syncVault(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	res, err := internal.SyncVault(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}

	fmt.Printf("folders: %d, indexed: %d, skipped: %d, removed: %d\n",
		res.Folders, res.Indexed, res.Skipped, res.Removed)
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:    "notegraph",
		Usage:   "Interactive graph of the links between notes",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the graph API, live updates and metrics over HTTP",
				Action: serve,
			},
			{
				Name:   "graph",
				Usage:  "Build one graph and print it as JSON",
				Action: buildGraph,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "Selected note id"},
					&cli.IntFlag{Name: "degree", Aliases: []string{"d"}, Usage: "Link hops from --note; 0 builds the bulk graph"},
					&cli.IntFlag{Name: "max-notes", Usage: "Cap on notes in the bulk graph"},
					&cli.BoolFlag{Name: "backlinks", Usage: "Also follow links pointing at visited notes"},
					&cli.StringFlag{Name: "notebooks", Usage: "Comma-separated notebook titles or ids to filter"},
					&cli.BoolFlag{Name: "include-notebooks", Usage: "Keep only the filtered notebooks"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tag titles to filter"},
					&cli.BoolFlag{Name: "include-tags", Usage: "Keep only notes with the filtered tags"},
				},
			},
			{
				Name:   "sync",
				Usage:  "Index the vault into SQLite once and exit",
				Action: syncVault,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the graph tools over MCP stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
