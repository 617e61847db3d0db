package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeatlas/internal/graph"
	"codeatlas/internal/ignore"
	"codeatlas/internal/parser"
	"codeatlas/internal/storage"
	"codeatlas/internal/summarizer"
	"codeatlas/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestIndexer(t *testing.T, root string) (*Indexer, storage.Storage, *graph.Engine) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng := graph.NewEngine()
	idx := New(root, store, parser.New(), summarizer.NewHeuristic(), eng, &Config{Workers: 2, BatchSize: 2}, nil)
	return idx, store, eng
}

func TestUpdateIndex_AddedUnchangedModified(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f1.go", "package main\n\nfunc F1() {}\n")
	writeFile(t, root, "f2.go", "package main\n\nfunc F2() {}\n")
	writeFile(t, root, "f3.go", "package main\n\nfunc F3() {}\n")

	idx, _, _ := newTestIndexer(t, root)
	ctx := context.Background()

	first, err := idx.UpdateIndex(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f1.go", "f2.go", "f3.go"}, first.Added)
	assert.Empty(t, first.Modified)
	assert.Empty(t, first.Unchanged)

	second, err := idx.UpdateIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.ElementsMatch(t, []string{"f1.go", "f2.go", "f3.go"}, second.Unchanged)

	writeFile(t, root, "f2.go", "package main\n\nfunc F2() {}\n\nfunc F2b() {}\n")

	third, err := idx.UpdateIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2.go"}, third.Modified)
	assert.ElementsMatch(t, []string{"f1.go", "f3.go"}, third.Unchanged)
}

func TestUpdateIndex_DeletedFileRemovesDerivedState(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package main\n\nfunc Keep() {}\n")
	writeFile(t, root, "gone.go", "package main\n\nfunc Gone() {}\n")

	idx, store, _ := newTestIndexer(t, root)
	ctx := context.Background()

	_, err := idx.UpdateIndex(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.go")))

	result, err := idx.UpdateIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone.go"}, result.Deleted)

	entities, err := store.ListEntitiesByFile(ctx, "gone.go")
	require.NoError(t, err)
	assert.Empty(t, entities)

	_, err = store.GetIndexEntry(ctx, "gone.go")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	kept, err := store.ListEntitiesByFile(ctx, "keep.go")
	require.NoError(t, err)
	assert.NotEmpty(t, kept)
}

func TestIndexAll_ReprocessesUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f1.go", "package main\n\nfunc F1() {}\n")

	idx, _, _ := newTestIndexer(t, root)
	ctx := context.Background()

	_, err := idx.UpdateIndex(ctx)
	require.NoError(t, err)

	result, err := idx.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1.go"}, result.Modified)
	assert.Empty(t, result.Unchanged)
}

func TestUpdateIndex_StoresEntitiesAndGraph(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "m.go", "package main\n\nimport \"fmt\"\n\nfunc Hello() { fmt.Println(\"hi\") }\n")

	idx, store, eng := newTestIndexer(t, root)
	ctx := context.Background()

	result, err := idx.UpdateIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.FilesProcessed)

	entities, err := store.ListEntitiesByFile(ctx, "m.go")
	require.NoError(t, err)
	require.Len(t, entities, 2) // file entity + Hello

	names := []string{entities[0].Name, entities[1].Name}
	assert.Contains(t, names, "m.go")
	assert.Contains(t, names, "m.go::Hello")

	for _, e := range entities {
		if e.Type == types.EntityFile {
			assert.NotEmpty(t, e.Summary)
		}
	}

	assert.Greater(t, eng.EdgeCount(), 0)
	assert.NotNil(t, eng.Node("fmt"))
}

func TestUpdateIndex_SameMethodNameOnDifferentReceivers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "m.go", `package main

type A struct{}

func (a A) String() string { return "a" }

type B struct{}

func (b B) String() string { return "b" }
`)

	idx, store, _ := newTestIndexer(t, root)

	_, err := idx.UpdateIndex(context.Background())
	require.NoError(t, err)

	entities, err := store.ListEntitiesByFile(context.Background(), "m.go")
	require.NoError(t, err)

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{
		"m.go", "m.go::A", "m.go::B", "m.go::A.String", "m.go::B.String",
	}, names)
}

func TestIndexAll_RebuildsGraphWithoutStaleEdges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "m.go", "package main\n\nimport \"fmt\"\n\nfunc Hello() { fmt.Println(\"hi\") }\n")

	idx, _, eng := newTestIndexer(t, root)
	ctx := context.Background()

	_, err := idx.IndexAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, eng.Dependencies("m.go", 1), "fmt")

	// Drop the import; a full reindex must not keep the old edge.
	writeFile(t, root, "m.go", "package main\n\nfunc Hello() {}\n")
	_, err = idx.IndexAll(ctx)
	require.NoError(t, err)
	assert.NotContains(t, eng.Dependencies("m.go", 1), "fmt")
	assert.Nil(t, eng.Node("fmt"))

	// Delete the file; a full reindex must drop its node entirely.
	require.NoError(t, os.Remove(filepath.Join(root, "m.go")))
	_, err = idx.IndexAll(ctx)
	require.NoError(t, err)
	assert.Nil(t, eng.Node("m.go"))
}

type failingParser struct {
	real     *parser.Parser
	failName string
}

func (p *failingParser) Supports(path string) bool { return p.real.Supports(path) }

func (p *failingParser) ParseFile(path string) (*types.ParseResult, error) {
	if filepath.Base(path) == p.failName {
		return nil, errors.New("simulated parse failure")
	}
	return p.real.ParseFile(path)
}

func TestUpdateIndex_FileErrorDoesNotAbortRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.go", "package main\n")
	writeFile(t, root, "good.go", "package main\n\nfunc Good() {}\n")

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	p := &failingParser{real: parser.New(), failName: "bad.go"}
	idx := New(root, store, p, summarizer.NewHeuristic(), nil, nil, nil)

	result, err := idx.UpdateIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"good.go"}, result.Added)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad.go", result.Errors[0].Path)
}

func TestUpdateIndex_ConcurrentRunRejected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f1.go", "package main\n")

	idx, _, _ := newTestIndexer(t, root)

	require.True(t, idx.lock.TryAcquire())
	_, err := idx.UpdateIndex(context.Background())
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	idx.lock.Release()
	_, err = idx.UpdateIndex(context.Background())
	assert.NoError(t, err)
}

func TestDiscoverFiles_SortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.go", "package b\n")
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "dist/generated.go", "package dist\n")
	writeFile(t, root, "readme.md", "# readme\n")

	files, err := DiscoverFiles(root, ignore.NewMatcher(root, ignore.Options{}), parser.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, files)
}

func TestEntityID_Deterministic(t *testing.T) {
	assert.Equal(t, entityID("f.go::A"), entityID("f.go::A"))
	assert.NotEqual(t, entityID("f.go::A"), entityID("f.go::B"))
}
