package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"codeatlas/internal/config"
	"codeatlas/internal/embedder"
	"codeatlas/internal/embedsync"
	"codeatlas/internal/graph"
	"codeatlas/internal/ignore"
	"codeatlas/internal/indexer"
	"codeatlas/internal/mcp"
	"codeatlas/internal/parser"
	"codeatlas/internal/storage"
	"codeatlas/internal/summarizer"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	cfgFile string
	rootDir string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "codeatlas",
	Short: "CodeAtlas - incremental source-tree indexing",
	Long: `CodeAtlas indexes a source tree into a queryable knowledge base:
an entity catalog, an embedding store, and a relationship graph, all
kept consistent and cheap to refresh as the tree changes.`,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the project tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		stream, _ := cmd.Flags().GetBool("stream")
		return runIndex(cmd.Context(), full, stream)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the project tree and update the index on change",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context())
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Query the relationship graph",
}

var graphDepsCmd = &cobra.Command{
	Use:   "deps <id>",
	Short: "List dependencies of a file or symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		reverse, _ := cmd.Flags().GetBool("reverse")
		return runGraphDeps(cmd.Context(), args[0], depth, reverse)
	},
}

var graphPathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Find the shortest relationship path between two nodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraphPath(cmd.Context(), args[0], args[1])
	},
}

var graphStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraphStats(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index over the Model Context Protocol on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CodeAtlas %s\n", version)
		fmt.Printf("Build time: %s\n", buildTime)
		fmt.Printf("Build mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite driver: %s\n", storage.DriverName)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "atlas.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "index database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	indexCmd.Flags().Bool("full", false, "reprocess every file regardless of stored fingerprints")
	indexCmd.Flags().Bool("stream", false, "use the checkpointed streaming mode")

	graphDepsCmd.Flags().Int("depth", 1, "traversal depth; 0 for full reachability")
	graphDepsCmd.Flags().Bool("reverse", false, "list reverse dependencies instead")
	graphCmd.AddCommand(graphDepsCmd, graphPathCmd, graphStatsCmd)

	rootCmd.AddCommand(indexCmd, watchCmd, graphCmd, mcpCmd, versionCmd)
}

func main() {
	// Local development secrets; absence is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// pipeline bundles the wired components behind one Close.
type pipeline struct {
	cfg    *config.Config
	store  storage.Storage
	idx    *indexer.Indexer
	eng    *graph.Engine
	sync   *embedsync.Synchronizer
	logger *slog.Logger
}

func (p *pipeline) Close() {
	_ = p.store.Close()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.Project.Root = rootDir
	}
	if dbPath != "" {
		cfg.SQLite.Path = dbPath
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.App.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func buildPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	provider, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	eng := graph.NewEngine()
	if err := eng.Load(ctx, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	idx := indexer.New(root, store, parser.New(), summarizer.NewHeuristic(), eng, &indexer.Config{
		Workers:   cfg.Indexing.Workers,
		BatchSize: cfg.Indexing.BatchSize,
		Ignore: ignore.Options{
			ExtraExclude:  cfg.Project.ExtraExclude,
			UseGitIgnore:  cfg.Project.UseGitIgnore,
			UseToolIgnore: cfg.Project.UseToolIgnore,
		},
	}, logger)

	sync := embedsync.New(store, provider, embedsync.Options{
		BatchSize: cfg.Embedding.BatchSize,
	}, logger)

	return &pipeline{cfg: cfg, store: store, idx: idx, eng: eng, sync: sync, logger: logger}, nil
}

func runIndex(ctx context.Context, full, stream bool) error {
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if stream {
		if err := runStreamIndex(ctx, p); err != nil {
			return err
		}
	} else {
		var result *indexer.Result
		if full {
			result, err = p.idx.IndexAll(ctx)
		} else {
			result, err = p.idx.UpdateIndex(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Indexed in %s: %d added, %d modified, %d deleted, %d unchanged, %d errors\n",
			result.Duration.Round(time.Millisecond), len(result.Added), len(result.Modified),
			len(result.Deleted), len(result.Unchanged), len(result.Errors))
		for _, fe := range result.Errors {
			fmt.Printf("  error: %s: %s\n", fe.Path, fe.Message)
		}
	}

	return syncDerived(ctx, p)
}

func runStreamIndex(ctx context.Context, p *pipeline) error {
	stream := indexer.NewStream(p.idx, &indexer.StreamConfig{
		BatchSize:          p.cfg.Indexing.BatchSize,
		CheckpointEvery:    p.cfg.Indexing.CheckpointEvery,
		MaxFileSize:        p.cfg.Indexing.MaxFileSize,
		MaxEntitiesPerFile: p.cfg.Indexing.MaxEntitiesPerFile,
	})
	if stream.HasCheckpoint() {
		fmt.Println("Resuming from checkpoint")
	}

	seq, err := stream.ProcessFiles(ctx)
	if err != nil {
		return err
	}
	for {
		batch, ok := seq.Next()
		if !ok {
			break
		}
		fmt.Printf("Batch %d: %d files, %d failed, %d skipped\n",
			batch.Number, len(batch.Files), len(batch.Failed), len(batch.Skipped))
	}
	return seq.Err()
}

// syncDerived brings the embedding store and persisted graph in line
// with the freshly written entity catalog.
func syncDerived(ctx context.Context, p *pipeline) error {
	entities, err := p.store.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}

	result, err := p.sync.EmbedIncremental(ctx, entities, func(completed, total int) {
		fmt.Printf("\rEmbedding %d/%d", completed, total)
	})
	if err != nil {
		return fmt.Errorf("embedding sync failed: %w", err)
	}
	if result.Embedded > 0 {
		fmt.Println()
	}

	validIDs := make([]string, len(entities))
	for i, e := range entities {
		validIDs[i] = e.ID
	}
	removed, err := p.sync.CleanupOrphaned(ctx, validIDs)
	if err != nil {
		return fmt.Errorf("orphan cleanup failed: %w", err)
	}

	if err := p.eng.Save(ctx, p.store); err != nil {
		return fmt.Errorf("failed to persist graph: %w", err)
	}

	fmt.Printf("Embeddings: %d created, %d skipped, %d orphans removed\n",
		result.Embedded, result.Skipped, removed)
	return nil
}

func runWatch(ctx context.Context) error {
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	// Catch up before watching.
	if _, err := p.idx.UpdateIndex(ctx); err != nil {
		return err
	}
	if err := syncDerived(ctx, p); err != nil {
		return err
	}

	w := indexer.NewWatcher(p.idx, p.cfg.Indexing.WatchDebounce())
	w.OnUpdate = func(result *indexer.Result) {
		if err := syncDerived(ctx, p); err != nil {
			p.logger.Error("derived sync failed", slog.String("error", err.Error()))
		}
	}

	fmt.Println("Watching for changes (Ctrl-C to stop)")
	if err := w.Watch(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runGraphDeps(ctx context.Context, id string, depth int, reverse bool) error {
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if p.eng.Node(id) == nil {
		return fmt.Errorf("node %q not found", id)
	}

	var ids []string
	if reverse {
		ids = p.eng.Dependents(id, depth)
	} else {
		ids = p.eng.Dependencies(id, depth)
	}
	for _, dep := range ids {
		fmt.Println(dep)
	}
	return nil
}

func runGraphPath(ctx context.Context, from, to string) error {
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	path := p.eng.FindPath(from, to)
	if path == nil {
		return fmt.Errorf("no path from %q to %q", from, to)
	}
	for i, id := range path {
		if i > 0 {
			fmt.Print(" -> ")
		}
		fmt.Print(id)
	}
	fmt.Println()
	return nil
}

func runGraphStats(ctx context.Context) error {
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	stats := p.eng.GetStats()
	fmt.Printf("Nodes: %d\nEdges: %d\nRoots: %d\nLeaves: %d\n",
		stats.NodeCount, stats.EdgeCount, len(stats.RootNodes), len(stats.LeafNodes))
	if len(stats.HubNodes) > 0 {
		fmt.Println("Hubs:")
		for _, hub := range stats.HubNodes {
			fmt.Printf("  %s (degree %d)\n", hub.ID, hub.Degree)
		}
	}
	if len(stats.EdgesByType) > 0 {
		fmt.Println("Edges by type:")
		for relType, count := range stats.EdgesByType {
			fmt.Printf("  %s: %d\n", relType, count)
		}
	}
	return nil
}

func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Stdout carries the protocol; logs go to stderr.
	logger := newLogger(cfg)

	server, err := mcp.NewServer(mcp.Options{
		Root:   cfg.Project.Root,
		DBPath: cfg.SQLite.Path,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	logger.Info("MCP server ready, listening on stdio",
		slog.String("version", version),
		slog.String("build_mode", storage.BuildMode),
		slog.String("driver", storage.DriverName))
	return server.Serve(context.Background())
}
