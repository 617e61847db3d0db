package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"codeatlas/internal/embedder"
	"codeatlas/internal/embedsync"
	"codeatlas/internal/graph"
	"codeatlas/internal/indexer"
	"codeatlas/internal/parser"
	"codeatlas/internal/storage"
	"codeatlas/internal/summarizer"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeatlas"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with one project's indexing pipeline.
type Server struct {
	mcp     *server.MCPServer
	root    string
	storage storage.Storage
	indexer *indexer.Indexer
	graph   *graph.Engine
	sync    *embedsync.Synchronizer
	logger  *slog.Logger
}

// Options configures a Server.
type Options struct {
	Root   string // project root to index
	DBPath string // index database; defaults to .atlas/index.db under the root
	Logger *slog.Logger
}

// NewServer wires the pipeline for one project and registers the MCP
// tools. Stdout is reserved for the protocol, so the logger must write
// elsewhere; nil discards log output.
func NewServer(opts Options) (*Server, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(root, ".atlas", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	eng := graph.NewEngine()
	if err := eng.Load(context.Background(), store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	idx := indexer.New(root, store, parser.New(), summarizer.NewHeuristic(), eng, nil, opts.Logger)
	sync := embedsync.New(store, provider, embedsync.Options{}, opts.Logger)

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		root:    root,
		storage: store,
		indexer: idx,
		graph:   eng,
		sync:    sync,
		logger:  opts.Logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(updateIndexTool(), s.handleUpdateIndex)
	s.mcp.AddTool(graphDependenciesTool(), s.handleGraphDependencies)
	s.mcp.AddTool(graphPathTool(), s.handleGraphPath)
	s.mcp.AddTool(graphStatsTool(), s.handleGraphStats)
	s.mcp.AddTool(embeddingStatsTool(), s.handleEmbeddingStats)
}
