package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/semindex/internal/embedder"
	"github.com/dshills/semindex/internal/indexer"
	"github.com/dshills/semindex/internal/mcp"
	"github.com/dshills/semindex/internal/searcher"
	"github.com/dshills/semindex/internal/storage"
	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("semindex %s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\nVector Extension: %v\n",
		version, buildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "semindex",
		Short:        "Semantic code index with an MCP server",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(versionString())
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML)")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newIndexCmd(&configPath),
		newSearchCmd(&configPath),
		newStatusCmd(&configPath),
		newProjectCmd(&configPath),
		newEmbedCmd(&configPath),
	)
	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configPath: *configPath, exclusive: true, watch: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			mcp.ServerVersion = version
			a.logger.Info("MCP server ready, listening on stdio",
				"version", version,
				"build_mode", storage.BuildMode,
				"vector_extension", storage.VectorExtensionAvailable)

			err = mcp.NewServer(a.db, a.indexer, a.searcher, a.logger).Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("server error: %w", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
}

func newIndexCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index <project-id>",
		Short: "Run a full index of a registered project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configPath: *configPath, exclusive: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			result, err := a.indexer.IndexProjectByID(ctx, args[0])
			if err != nil {
				return err
			}
			return printIndexResult(cmd.OutOrStdout(), result)
		},
	}
}

func newSearchCmd(configPath *string) *cobra.Command {
	var (
		k          int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <project-id> <query>...",
		Short: "Search an indexed project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configPath: *configPath})
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			if _, err := a.db.GetProject(ctx, args[0]); errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", indexer.ErrProjectNotFound, args[0])
			}

			hits, err := a.searcher.Search(ctx, args[0], strings.Join(args[1:], " "), k)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), hits)
			}
			return printHits(cmd.OutOrStdout(), hits)
		},
	}
	cmd.Flags().IntVarP(&k, "limit", "k", searcher.DefaultLimit, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [project-id]...",
		Short: "Show stored chunk counts for registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configPath: *configPath})
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			projects, err := selectProjects(ctx, a.db, args)
			if err != nil {
				return err
			}
			return printStatus(ctx, cmd.OutOrStdout(), a.vectors, projects)
		},
	}
}

func newProjectCmd(configPath *string) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage registered projects",
	}

	var (
		name   string
		ignore []string
	)
	addCmd := &cobra.Command{
		Use:   "add <project-id> <root-path>",
		Short: "Register or update a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configPath: *configPath, exclusive: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			root, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			info, err := os.Stat(root)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", root)
			}

			project := &types.Project{ID: args[0], Name: name, RootPath: root, IgnorePatterns: ignore}
			if err := project.Validate(); err != nil {
				return err
			}
			err = a.db.CreateProject(ctx, project)
			if errors.Is(err, storage.ErrAlreadyExists) {
				err = a.db.UpdateProject(ctx, project)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s at %s\n", project.ID, project.RootPath)
			return err
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Display name")
	addCmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Extra ignore pattern (repeatable)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configPath: *configPath})
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			projects, err := a.db.ListProjects(ctx)
			if err != nil {
				return err
			}
			return printProjects(cmd.OutOrStdout(), projects)
		},
	}

	projectCmd.AddCommand(addCmd, listCmd)
	return projectCmd
}

func newEmbedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>...",
		Short: "Embed text with the configured provider and print a summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configPath: *configPath})
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			emb, err := a.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			return printEmbedding(cmd.OutOrStdout(), emb)
		},
	}
}

// selectProjects returns the named projects, or every project when ids is empty
func selectProjects(ctx context.Context, db storage.Storage, ids []string) ([]*types.Project, error) {
	if len(ids) == 0 {
		return db.ListProjects(ctx)
	}
	projects := make([]*types.Project, 0, len(ids))
	for _, id := range ids {
		p, err := db.GetProject(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", indexer.ErrProjectNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func printIndexResult(w io.Writer, r *types.IndexResult) error {
	_, err := fmt.Fprintf(w, "Indexed %d chunks from %d files in %s (%d stale chunks removed)\n",
		r.ChunksIndexed, r.FilesIndexed, r.ProjectID, r.ChunksPruned)
	return err
}

func printHits(w io.Writer, hits []types.SearchHit) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for i, h := range hits {
		if _, err := fmt.Fprintf(w, "[%d] %s:%d-%d (score %.3f)\n%s\n\n",
			i+1, h.Metadata.SourceFile, h.Metadata.StartLine, h.Metadata.EndLine, h.Score, h.Text); err != nil {
			return err
		}
	}
	return nil
}

func printProjects(w io.Writer, projects []*types.Project) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tROOT\tIGNORE")
	for _, p := range projects {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.DisplayName(), p.RootPath, strings.Join(p.IgnorePatterns, ","))
	}
	return tw.Flush()
}

func printStatus(ctx context.Context, w io.Writer, vectors vectorstore.Store, projects []*types.Project) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tROOT\tCHUNKS")
	for _, p := range projects {
		chunks := "not indexed"
		coll, err := vectors.GetCollection(ctx, indexer.CollectionName(p.ID))
		switch {
		case errors.Is(err, vectorstore.ErrCollectionNotFound):
		case err != nil:
			return err
		default:
			n, err := coll.Count(ctx)
			if err != nil {
				return err
			}
			chunks = fmt.Sprint(n)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.RootPath, chunks)
	}
	return tw.Flush()
}

func printEmbedding(w io.Writer, emb *embedder.Embedding) error {
	var norm float64
	for _, v := range emb.Vector {
		norm += float64(v) * float64(v)
	}
	head := emb.Vector
	if len(head) > 8 {
		head = head[:8]
	}
	_, err := fmt.Fprintf(w, "Provider: %s\nModel: %s\nDimension: %d\nNorm: %.4f\nHead: %v\n",
		emb.Provider, emb.Model, emb.Dimension, math.Sqrt(norm), head)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
