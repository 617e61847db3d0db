package embedsync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeatlas/internal/storage"
	"codeatlas/pkg/types"
)

// mockProvider returns deterministic short vectors and can be made to
// fail batch calls or specific texts.
type mockProvider struct {
	dimension  int
	failBatch  bool
	failTexts  map[string]bool
	batchCalls int
}

func newMockProvider() *mockProvider {
	return &mockProvider{dimension: 4, failTexts: make(map[string]bool)}
}

func (m *mockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.failTexts[text] {
		return nil, errors.New("mock: text rejected")
	}
	v := make([]float32, m.dimension)
	for i, r := range text {
		v[i%m.dimension] += float32(r)
	}
	return v, nil
}

func (m *mockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls++
	if m.failBatch {
		return nil, errors.New("mock: batch failed")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *mockProvider) IsAvailable(ctx context.Context) bool { return true }
func (m *mockProvider) Dimension() int                       { return m.dimension }
func (m *mockProvider) Model() string                        { return "mock/test-v1" }
func (m *mockProvider) Close() error                         { return nil }

func newTestSync(t *testing.T, provider *mockProvider) (*Synchronizer, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, provider, Options{BatchSize: 2}, nil), store
}

func makeEntity(id, content string) *types.Entity {
	return &types.Entity{
		ID:      id,
		Type:    types.EntityFunction,
		Name:    "pkg." + id,
		Content: content,
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	e := makeEntity("e1", "func A() {}")
	assert.Equal(t, Fingerprint(e), Fingerprint(e))

	changed := makeEntity("e1", "func A() { return }")
	assert.NotEqual(t, Fingerprint(e), Fingerprint(changed))

	// Summary changes also change the fingerprint.
	summarized := makeEntity("e1", "func A() {}")
	summarized.Summary = "does A"
	assert.NotEqual(t, Fingerprint(e), Fingerprint(summarized))
}

func TestEmbedIncremental_Idempotent(t *testing.T) {
	sync, _ := newTestSync(t, newMockProvider())
	ctx := context.Background()

	entities := []*types.Entity{
		makeEntity("e1", "alpha"),
		makeEntity("e2", "beta"),
		makeEntity("e3", "gamma"),
	}

	first, err := sync.EmbedIncremental(ctx, entities, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Embedded)
	assert.Equal(t, 0, first.Skipped)
	assert.Equal(t, 3, first.Total)

	second, err := sync.EmbedIncremental(ctx, entities, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Embedded)
	assert.Equal(t, 3, second.Skipped)
}

func TestEmbedIncremental_ChangeDetection(t *testing.T) {
	sync, _ := newTestSync(t, newMockProvider())
	ctx := context.Background()

	entities := []*types.Entity{
		makeEntity("e1", "alpha"),
		makeEntity("e2", "beta"),
		makeEntity("e3", "gamma"),
	}
	_, err := sync.EmbedIncremental(ctx, entities, nil)
	require.NoError(t, err)

	// Modify exactly one entity.
	entities[1].Content = "beta v2"

	result, err := sync.EmbedIncremental(ctx, entities, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, 2, result.Skipped)
}

func TestNeedsEmbedding(t *testing.T) {
	sync, _ := newTestSync(t, newMockProvider())
	ctx := context.Background()

	entity := makeEntity("e1", "alpha")

	needs, err := sync.NeedsEmbedding(ctx, entity)
	require.NoError(t, err)
	assert.True(t, needs)

	_, err = sync.EmbedIncremental(ctx, []*types.Entity{entity}, nil)
	require.NoError(t, err)

	needs, err = sync.NeedsEmbedding(ctx, entity)
	require.NoError(t, err)
	assert.False(t, needs)

	entity.Content = "alpha v2"
	needs, err = sync.NeedsEmbedding(ctx, entity)
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestEmbedIncremental_Progress(t *testing.T) {
	provider := newMockProvider()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	sync := New(store, provider, Options{BatchSize: 1}, nil)

	entities := []*types.Entity{
		makeEntity("e1", "alpha"),
		makeEntity("e2", "beta"),
		makeEntity("e3", "gamma"),
	}

	var progress [][2]int
	_, err = sync.EmbedIncremental(context.Background(), entities, func(completed, total int) {
		progress = append(progress, [2]int{completed, total})
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestEmbedIncremental_BatchFailureDegrades(t *testing.T) {
	provider := newMockProvider()
	provider.failBatch = true
	sync, store := newTestSync(t, provider)
	ctx := context.Background()

	entity := makeEntity("e1", "alpha")
	result, err := sync.EmbedIncremental(ctx, []*types.Entity{entity}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Embedded)

	stored, err := store.ListEmbeddingsByEntity(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, make([]float32, provider.dimension), stored[0].Vector)
}

func TestEmbedIncremental_ItemFailureStoresPlaceholder(t *testing.T) {
	provider := newMockProvider()
	provider.failBatch = true
	provider.failTexts["bad"] = true
	sync, store := newTestSync(t, provider)
	ctx := context.Background()

	entities := []*types.Entity{
		makeEntity("e1", "bad"),
		makeEntity("e2", "good"),
	}
	result, err := sync.EmbedIncremental(ctx, entities, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Embedded)

	bad, err := store.ListEmbeddingsByEntity(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, make([]float32, provider.dimension), bad[0].Vector)

	good, err := store.ListEmbeddingsByEntity(ctx, "e2")
	require.NoError(t, err)
	require.Len(t, good, 1)
	assert.NotEqual(t, make([]float32, provider.dimension), good[0].Vector)
}

func TestEmbedIncremental_OversizedEntityChunks(t *testing.T) {
	provider := newMockProvider()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	sync := New(store, provider, Options{
		BatchSize: 2,
		Chunking:  ChunkOptions{MaxChars: 100, Overlap: 10, MinChunk: 10},
	}, nil)

	big := makeEntity("e1", string(make([]byte, 0)))
	for i := 0; i < 350; i++ {
		big.Content += "a"
	}

	_, err = sync.EmbedIncremental(context.Background(), []*types.Entity{big}, nil)
	require.NoError(t, err)

	stored, err := store.ListEmbeddingsByEntity(context.Background(), "e1")
	require.NoError(t, err)
	assert.Greater(t, len(stored), 1)
	for _, emb := range stored {
		assert.Equal(t, "e1", emb.EntityID)
		assert.Equal(t, Fingerprint(big), emb.Fingerprint)
	}
}

func TestCleanupOrphaned(t *testing.T) {
	sync, store := newTestSync(t, newMockProvider())
	ctx := context.Background()

	entities := []*types.Entity{
		makeEntity("e1", "alpha"),
		makeEntity("e2", "beta"),
	}
	_, err := sync.EmbedIncremental(ctx, entities, nil)
	require.NoError(t, err)

	// e1 is no longer valid.
	removed, err := sync.CleanupOrphaned(ctx, []string{"e2"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, err := store.ListEmbeddingsByEntity(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := store.ListEmbeddingsByEntity(ctx, "e2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	// Nothing left to remove.
	removed, err = sync.CleanupOrphaned(ctx, []string{"e2"})
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestGetDetailedStats_CountsLegacyAsStale(t *testing.T) {
	sync, store := newTestSync(t, newMockProvider())
	ctx := context.Background()

	_, err := sync.EmbedIncremental(ctx, []*types.Entity{makeEntity("e1", "alpha")}, nil)
	require.NoError(t, err)

	// Legacy row stored without a fingerprint.
	require.NoError(t, store.ReplaceEmbeddings(ctx, "legacy", []*storage.StoredEmbedding{
		{ID: "legacy:0", EntityID: "legacy", Model: "old", Vector: []float32{1, 2}},
	}))

	stats, err := sync.GetDetailedStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.StaleCount)
}
