package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"codeatlas/internal/graph"
	"codeatlas/internal/ignore"
	"codeatlas/internal/storage"
	"codeatlas/pkg/types"
)

// Parser is the source-language collaborator. The orchestrator only
// needs support detection and per-file parsing.
type Parser interface {
	Supports(path string) bool
	ParseFile(path string) (*types.ParseResult, error)
}

// Summarizer produces a natural-language summary from a parse result.
type Summarizer interface {
	SummarizeFile(result *types.ParseResult) (*types.FileSummary, error)
}

// Config contains configuration for the indexer.
type Config struct {
	Workers   int            // concurrent workers per batch (default: runtime.NumCPU())
	BatchSize int            // files per batch (default: 20)
	Ignore    ignore.Options // extra exclusion sources merged into the matcher
}

// DefaultBatchSize is how many files each sequential batch holds.
const DefaultBatchSize = 20

// FileError records a per-file failure. Failures never abort the run;
// they are surfaced here for the caller.
type FileError struct {
	Path    string
	Message string
}

// Stats counts what a run produced.
type Stats struct {
	FilesProcessed int
	Entities       int
	Symbols        int
}

// Result classifies every discovered path relative to the persisted
// index map and reports per-file failures.
type Result struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
	Errors    []FileError
	Duration  time.Duration
	Stats     Stats
}

// Indexer coordinates the indexing pipeline for one project root:
// discover -> diff against the index map -> parse -> summarize -> store,
// feeding parse results to the relationship graph as a side effect.
type Indexer struct {
	root       string
	store      storage.Storage
	parser     Parser
	summarizer Summarizer
	matcher    *ignore.Matcher
	graph      *graph.Engine
	logger     *slog.Logger

	workers   int
	batchSize int
	lock      IndexLock
}

// New creates an Indexer for the given project root. The graph engine is
// optional; a nil logger discards log output.
func New(root string, store storage.Storage, parser Parser, summarizer Summarizer, eng *graph.Engine, config *Config, logger *slog.Logger) *Indexer {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Indexer{
		root:       root,
		store:      store,
		parser:     parser,
		summarizer: summarizer,
		matcher:    ignore.NewMatcher(root, config.Ignore),
		graph:      eng,
		logger:     logger,
		workers:    config.Workers,
		batchSize:  config.BatchSize,
	}
}

// IndexAll reprocesses every discovered file regardless of its stored
// fingerprint. Paths are still classified added or modified against the
// index map so the caller sees what was new.
func (idx *Indexer) IndexAll(ctx context.Context) (*Result, error) {
	return idx.run(ctx, true)
}

// UpdateIndex processes only files whose content fingerprint differs
// from the stored one. Unchanged files are not reparsed.
func (idx *Indexer) UpdateIndex(ctx context.Context) (*Result, error) {
	return idx.run(ctx, false)
}

func (idx *Indexer) run(ctx context.Context, force bool) (*Result, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	result := &Result{}

	prior, err := idx.loadIndexMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index map: %w", err)
	}

	files, err := DiscoverFiles(idx.root, idx.matcher, idx.parser)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	discovered := make(map[string]struct{}, len(files))
	for _, f := range files {
		discovered[f] = struct{}{}
	}

	// A full reindex rebuilds the graph from scratch; edges from removed
	// imports or deleted files must not survive it.
	if force && idx.graph != nil {
		idx.graph.Clear()
	}

	for batchStart := 0; batchStart < len(files); batchStart += idx.batchSize {
		batchEnd := batchStart + idx.batchSize
		if batchEnd > len(files) {
			batchEnd = len(files)
		}
		if err := idx.processBatch(ctx, files[batchStart:batchEnd], prior, force, result); err != nil {
			return nil, err
		}
	}

	// Paths in the prior map that were not rediscovered are gone.
	for path := range prior {
		if _, ok := discovered[path]; ok {
			continue
		}
		if err := idx.removeFile(ctx, path); err != nil {
			return nil, err
		}
		result.Deleted = append(result.Deleted, path)
	}
	sort.Strings(result.Deleted)

	result.Duration = time.Since(start)
	idx.logger.Info("index run complete",
		slog.Int("added", len(result.Added)),
		slog.Int("modified", len(result.Modified)),
		slog.Int("deleted", len(result.Deleted)),
		slog.Int("unchanged", len(result.Unchanged)),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// fileOutcome is what one worker produces for one file. Workers never
// touch the store or the result; the owner commits after the batch joins.
type fileOutcome struct {
	path      string
	unchanged bool
	wasKnown  bool
	err       error

	entry    *storage.IndexEntry
	entities []*types.Entity
	parsed   *types.ParseResult
	symbols  int
}

// processBatch runs one fixed-size batch with bounded concurrency, then
// commits the outcomes in discovery order.
func (idx *Indexer) processBatch(ctx context.Context, batch []string, prior map[string]*storage.IndexEntry, force bool, result *Result) error {
	outcomes := make([]*fileOutcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, path := range batch {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			outcomes[i] = idx.processFile(path, prior[path], force, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outcomes {
		if err := idx.commit(ctx, out, result); err != nil {
			return err
		}
	}
	return nil
}

// processFile reads, diffs, parses, and summarizes one file. It has no
// side effects; all errors are captured in the outcome. maxEntities <= 0
// means unlimited.
func (idx *Indexer) processFile(relPath string, prior *storage.IndexEntry, force bool, maxEntities int) *fileOutcome {
	out := &fileOutcome{path: relPath, wasKnown: prior != nil}

	absPath := filepath.Join(idx.root, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		out.err = fmt.Errorf("failed to read file: %w", err)
		return out
	}

	sum := sha256.Sum256(content)
	fingerprint := hex.EncodeToString(sum[:])

	if !force && prior != nil && prior.Fingerprint == fingerprint {
		out.unchanged = true
		return out
	}

	parsed, err := idx.parser.ParseFile(absPath)
	if err != nil {
		out.err = fmt.Errorf("failed to parse: %w", err)
		return out
	}

	summary, err := idx.summarizer.SummarizeFile(parsed)
	if err != nil {
		out.err = fmt.Errorf("failed to summarize: %w", err)
		return out
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		out.err = fmt.Errorf("failed to encode summary: %w", err)
		return out
	}

	info, err := os.Stat(absPath)
	if err != nil {
		out.err = fmt.Errorf("failed to stat file: %w", err)
		return out
	}

	out.parsed = parsed
	out.symbols = len(parsed.Symbols)
	out.entities = buildEntities(relPath, string(content), parsed, summary, maxEntities)
	out.entry = &storage.IndexEntry{
		Path:        relPath,
		Fingerprint: fingerprint,
		ModTime:     info.ModTime(),
		Language:    parsed.Language,
		SummaryJSON: string(summaryJSON),
		UpdatedAt:   time.Now(),
	}
	return out
}

// commit applies one outcome to the store, the graph, and the result.
// Only the batch owner calls this, so no locking is needed.
func (idx *Indexer) commit(ctx context.Context, out *fileOutcome, result *Result) error {
	switch {
	case out.err != nil:
		result.Errors = append(result.Errors, FileError{Path: out.path, Message: out.err.Error()})
		idx.logger.Warn("file failed", slog.String("path", out.path), slog.String("error", out.err.Error()))
		return nil
	case out.unchanged:
		result.Unchanged = append(result.Unchanged, out.path)
		return nil
	}

	// Replace, not append: stale entities from the previous version of
	// the file must not survive.
	if err := idx.store.DeleteEntitiesByFile(ctx, out.path); err != nil {
		return fmt.Errorf("failed to clear entities for %s: %w", out.path, err)
	}
	for _, entity := range out.entities {
		if err := idx.store.UpsertEntity(ctx, entity); err != nil {
			return fmt.Errorf("failed to store entity %s: %w", entity.Name, err)
		}
	}
	if err := idx.store.UpsertIndexEntry(ctx, out.entry); err != nil {
		return fmt.Errorf("failed to store index entry for %s: %w", out.path, err)
	}
	if idx.graph != nil {
		idx.graph.Extract(out.path, out.parsed)
	}

	if out.wasKnown {
		result.Modified = append(result.Modified, out.path)
	} else {
		result.Added = append(result.Added, out.path)
	}
	result.Stats.FilesProcessed++
	result.Stats.Entities += len(out.entities)
	result.Stats.Symbols += out.symbols
	return nil
}

// removeFile drops all derived state for a path that left the tree.
func (idx *Indexer) removeFile(ctx context.Context, relPath string) error {
	if err := idx.store.DeleteEntitiesByFile(ctx, relPath); err != nil {
		return fmt.Errorf("failed to delete entities for %s: %w", relPath, err)
	}
	if err := idx.store.DeleteIndexEntry(ctx, relPath); err != nil {
		return fmt.Errorf("failed to delete index entry for %s: %w", relPath, err)
	}
	return nil
}

// loadIndexMap reads the persisted path -> IndexEntry map.
func (idx *Indexer) loadIndexMap(ctx context.Context) (map[string]*storage.IndexEntry, error) {
	entries, err := idx.store.ListIndexEntries(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*storage.IndexEntry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m, nil
}

// DiscoverFiles walks the project root and returns the relative paths of
// every supported, non-ignored file, sorted so discovery order is stable
// across runs. Unreadable directories are skipped, not fatal.
func DiscoverFiles(root string, matcher *ignore.Matcher, parser Parser) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && matcher.Match(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if matcher.Match(rel) || !parser.Supports(path) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// buildEntities converts one parsed file into its entity set: a file
// entity followed by one entity per symbol. maxEntities > 0 truncates
// the set, file entity included in the count.
func buildEntities(relPath, content string, parsed *types.ParseResult, summary *types.FileSummary, maxEntities int) []*types.Entity {
	entities := make([]*types.Entity, 0, len(parsed.Symbols)+1)

	var description string
	if summary != nil {
		description = summary.Description
	}
	entities = append(entities, &types.Entity{
		ID:       entityID(relPath),
		Type:     types.EntityFile,
		Name:     relPath,
		FilePath: relPath,
		Content:  content,
		Summary:  description,
		Metadata: types.EntityMetadata{Language: parsed.Language},
	})

	for _, sym := range parsed.Symbols {
		if maxEntities > 0 && len(entities) >= maxEntities {
			break
		}
		name := graph.SymbolID(relPath, sym.QualifiedName())
		entities = append(entities, &types.Entity{
			ID:        entityID(name),
			Type:      entityTypeFor(sym.Kind),
			Name:      name,
			FilePath:  relPath,
			StartLine: sym.Start.Line,
			EndLine:   sym.End.Line,
			Content:   symbolContent(content, sym),
			Summary:   sym.Doc,
			Metadata: types.EntityMetadata{
				Language:  parsed.Language,
				Signature: sym.Signature,
				Exported:  sym.Exported,
			},
		})
	}
	return entities
}

// entityID derives a stable identifier from the qualified name, so
// reindexing the same file yields the same ids and downstream
// replace-by-id writes stay idempotent.
func entityID(qualifiedName string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("codeatlas:"+qualifiedName)).String()
}

func entityTypeFor(kind types.SymbolKind) types.EntityType {
	switch kind {
	case types.KindFunction:
		return types.EntityFunction
	case types.KindMethod:
		return types.EntityMethod
	case types.KindType:
		return types.EntityTypeDecl
	case types.KindConst:
		return types.EntityConst
	case types.KindVar:
		return types.EntityVar
	default:
		return types.EntitySection
	}
}

// symbolContent slices the symbol's lines out of the file content.
func symbolContent(content string, sym types.Symbol) string {
	if sym.Start.Line <= 0 || sym.End.Line < sym.Start.Line {
		return ""
	}
	line := 1
	start := 0
	for i := 0; i < len(content); i++ {
		if line == sym.Start.Line {
			start = i
			break
		}
		if content[i] == '\n' {
			line++
		}
	}
	if line < sym.Start.Line {
		return ""
	}
	end := len(content)
	for i := start; i < len(content); i++ {
		if content[i] == '\n' {
			if line == sym.End.Line {
				end = i
				break
			}
			line++
		}
	}
	return content[start:end]
}
