package storage

import (
	"context"
	"errors"
	"time"

	"codeatlas/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// Storage persists the three derived views of an indexed project: the
// entity catalog, the embedding store, and the relationship graph, plus
// the per-file index entries that drive incremental updates.
type Storage interface {
	// Entity operations
	UpsertEntity(ctx context.Context, entity *types.Entity) error
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	ListEntities(ctx context.Context) ([]*types.Entity, error)
	ListEntitiesByFile(ctx context.Context, filePath string) ([]*types.Entity, error)
	DeleteEntitiesByFile(ctx context.Context, filePath string) error

	// Index entry operations
	UpsertIndexEntry(ctx context.Context, entry *IndexEntry) error
	GetIndexEntry(ctx context.Context, path string) (*IndexEntry, error)
	ListIndexEntries(ctx context.Context) ([]*IndexEntry, error)
	DeleteIndexEntry(ctx context.Context, path string) error

	// Embedding operations. ReplaceEmbeddings atomically swaps all stored
	// embeddings for an entity, keeping downstream writes idempotent.
	ReplaceEmbeddings(ctx context.Context, entityID string, embeddings []*StoredEmbedding) error
	ListEmbeddingsByEntity(ctx context.Context, entityID string) ([]*StoredEmbedding, error)
	ListEmbeddingRefs(ctx context.Context) ([]EmbeddingRef, error)
	DeleteEmbeddingsByEntity(ctx context.Context, entityID string) (int, error)

	// Graph persistence
	SaveGraph(ctx context.Context, nodes []*types.GraphNode, edges []*types.Relationship) error
	LoadGraph(ctx context.Context) ([]*types.GraphNode, []*types.Relationship, error)

	Close() error
}

// IndexEntry is the per-file bookkeeping record: one entry per indexed
// file, replaced on modification, removed when the file disappears.
type IndexEntry struct {
	Path        string // relative to the project root
	Fingerprint string // hex SHA-256 of raw file bytes
	ModTime     time.Time
	Language    string
	SummaryJSON string
	UpdatedAt   time.Time
}

// StoredEmbedding is one persisted vector. Oversized entities store one
// row per chunk, all owned by the same entity id.
type StoredEmbedding struct {
	ID          string
	EntityID    string
	Model       string
	Vector      []float32
	Fingerprint string // entity fingerprint that produced this vector
	CreatedAt   time.Time
}

// EmbeddingRef is the identity-only projection of a stored embedding,
// used for orphan scans and staleness statistics without loading vectors.
type EmbeddingRef struct {
	ID          string
	EntityID    string
	Fingerprint string
}
