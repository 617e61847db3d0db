package embedsync

import (
	"context"
	"fmt"
	"log/slog"

	"codeatlas/internal/embedder"
	"codeatlas/internal/storage"
	"codeatlas/pkg/types"
)

// DefaultBatchSize is how many entities are embedded per provider batch.
const DefaultBatchSize = 20

// Options configures a Synchronizer.
type Options struct {
	BatchSize int
	Chunking  ChunkOptions
}

// Result reports the outcome of an incremental embedding pass.
type Result struct {
	Embedded int
	Skipped  int
	Total    int
}

// DetailedStats separates fingerprint-verified embeddings from legacy
// rows stored without a fingerprint.
type DetailedStats struct {
	Count      int
	StaleCount int
}

// ProgressFunc receives (completed, total) after each embedded batch,
// counted in entities.
type ProgressFunc func(completed, total int)

// Synchronizer keeps the embedding store consistent with the current
// entity set: it embeds only missing or stale entities, splits oversized
// content into overlapping chunks, and removes orphaned vectors.
type Synchronizer struct {
	store    storage.Storage
	provider embedder.Provider
	opts     Options
	logger   *slog.Logger
}

// New creates a Synchronizer. A nil logger discards log output.
func New(store storage.Storage, provider embedder.Provider, opts Options, logger *slog.Logger) *Synchronizer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{
		store:    store,
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// NeedsEmbedding reports whether an entity is missing from the embedding
// store or stored under a different fingerprint.
func (s *Synchronizer) NeedsEmbedding(ctx context.Context, entity *types.Entity) (bool, error) {
	stored, err := s.store.ListEmbeddingsByEntity(ctx, entity.ID)
	if err != nil {
		return false, fmt.Errorf("failed to read stored embeddings: %w", err)
	}
	if len(stored) == 0 {
		return true, nil
	}
	return stored[0].Fingerprint != Fingerprint(entity), nil
}

// EmbedIncremental embeds every entity that is missing or stale and
// skips the rest. Embeddings are replaced by entity id, so reruns after
// a crash are idempotent.
func (s *Synchronizer) EmbedIncremental(ctx context.Context, entities []*types.Entity, onProgress ProgressFunc) (*Result, error) {
	result := &Result{Total: len(entities)}

	stored, err := s.storedFingerprints(ctx)
	if err != nil {
		return nil, err
	}

	var pending []*types.Entity
	for _, entity := range entities {
		fp, ok := stored[entity.ID]
		if ok && fp == Fingerprint(entity) {
			result.Skipped++
			continue
		}
		pending = append(pending, entity)
	}

	for start := 0; start < len(pending); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := s.embedBatch(ctx, pending[start:end]); err != nil {
			return nil, err
		}
		result.Embedded = end
		if onProgress != nil {
			onProgress(end, len(pending))
		}
	}

	s.logger.Debug("embedding sync complete",
		slog.Int("embedded", result.Embedded),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

// embedBatch embeds one batch of entities. A provider batch failure
// degrades to individual calls; an item that still fails is stored as a
// zero-vector placeholder rather than aborting the batch.
func (s *Synchronizer) embedBatch(ctx context.Context, batch []*types.Entity) error {
	type pieceRef struct {
		entity int
		chunk  int
	}

	var texts []string
	var refs []pieceRef
	chunksPerEntity := make([][]Chunk, len(batch))

	for i, entity := range batch {
		chunks := SplitContent(embeddingText(entity), s.opts.Chunking)
		chunksPerEntity[i] = chunks
		for j, chunk := range chunks {
			texts = append(texts, chunk.Content)
			refs = append(refs, pieceRef{entity: i, chunk: j})
		}
	}

	vectors, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Warn("batch embedding failed, degrading to individual calls",
			slog.String("error", err.Error()))
		vectors = s.embedIndividually(ctx, texts)
	}

	rows := make([][]*storage.StoredEmbedding, len(batch))
	for k, vector := range vectors {
		ref := refs[k]
		entity := batch[ref.entity]
		rows[ref.entity] = append(rows[ref.entity], &storage.StoredEmbedding{
			ID:          fmt.Sprintf("%s:%d", entity.ID, ref.chunk),
			EntityID:    entity.ID,
			Model:       s.provider.Model(),
			Vector:      vector,
			Fingerprint: Fingerprint(entity),
		})
	}

	for i, entity := range batch {
		if err := s.store.ReplaceEmbeddings(ctx, entity.ID, rows[i]); err != nil {
			return fmt.Errorf("failed to store embeddings for %s: %w", entity.ID, err)
		}
	}
	return nil
}

// embedIndividually retries each text alone, substituting a zero-vector
// placeholder for items that still fail.
func (s *Synchronizer) embedIndividually(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.provider.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("individual embedding failed, storing placeholder",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			v = make([]float32, s.provider.Dimension())
		}
		vectors[i] = v
	}
	return vectors
}

// CleanupOrphaned deletes every stored embedding whose entity id is not
// in validIDs and returns the number of rows removed.
func (s *Synchronizer) CleanupOrphaned(ctx context.Context, validIDs []string) (int, error) {
	valid := make(map[string]struct{}, len(validIDs))
	for _, id := range validIDs {
		valid[id] = struct{}{}
	}

	refs, err := s.store.ListEmbeddingRefs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list embeddings: %w", err)
	}

	orphans := make(map[string]struct{})
	for _, ref := range refs {
		if _, ok := valid[ref.EntityID]; !ok {
			orphans[ref.EntityID] = struct{}{}
		}
	}

	removed := 0
	for entityID := range orphans {
		n, err := s.store.DeleteEmbeddingsByEntity(ctx, entityID)
		if err != nil {
			return removed, fmt.Errorf("failed to delete orphaned embeddings for %s: %w", entityID, err)
		}
		removed += n
	}

	if removed > 0 {
		s.logger.Debug("removed orphaned embeddings", slog.Int("count", removed))
	}
	return removed, nil
}

// GetDetailedStats counts stored embeddings, reporting rows without a
// fingerprint separately as stale.
func (s *Synchronizer) GetDetailedStats(ctx context.Context) (*DetailedStats, error) {
	refs, err := s.store.ListEmbeddingRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}

	stats := &DetailedStats{Count: len(refs)}
	for _, ref := range refs {
		if ref.Fingerprint == "" {
			stats.StaleCount++
		}
	}
	return stats, nil
}

// storedFingerprints maps entity id to its stored fingerprint.
func (s *Synchronizer) storedFingerprints(ctx context.Context) (map[string]string, error) {
	refs, err := s.store.ListEmbeddingRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	stored := make(map[string]string, len(refs))
	for _, ref := range refs {
		stored[ref.EntityID] = ref.Fingerprint
	}
	return stored, nil
}

// embeddingText is the text sent to the provider: the summary gives the
// vector semantic context the raw content alone may lack.
func embeddingText(entity *types.Entity) string {
	if entity.Summary == "" {
		return entity.Content
	}
	if entity.Content == "" {
		return entity.Summary
	}
	return entity.Summary + "\n\n" + entity.Content
}
