package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeatlas/internal/storage"
	"codeatlas/pkg/types"
)

func importEdge(source, target string) *types.Relationship {
	return &types.Relationship{Type: types.RelImports, Source: source, Target: target}
}

// chainEngine builds A -> B -> C -> D over imports edges.
func chainEngine() *Engine {
	e := NewEngine()
	e.AddRelationship(importEdge("a", "b"))
	e.AddRelationship(importEdge("b", "c"))
	e.AddRelationship(importEdge("c", "d"))
	return e
}

func TestAddRelationship_Deduplicates(t *testing.T) {
	e := NewEngine()

	assert.True(t, e.AddRelationship(importEdge("a", "b")))
	assert.False(t, e.AddRelationship(importEdge("a", "b")))

	// Same endpoints, different type is a distinct edge.
	assert.True(t, e.AddRelationship(&types.Relationship{
		Type: types.RelUses, Source: "a", Target: "b",
	}))

	assert.Equal(t, 2, e.EdgeCount())
	assert.Equal(t, 2, e.NodeCount())
	assert.Equal(t, 2, e.Node("a").OutDegree)
	assert.Equal(t, 2, e.Node("b").InDegree)
}

func TestAddRelationship_RejectsEmptyEndpoints(t *testing.T) {
	e := NewEngine()
	assert.False(t, e.AddRelationship(&types.Relationship{Type: types.RelImports, Source: "", Target: "b"}))
	assert.False(t, e.AddRelationship(nil))
	assert.Equal(t, 0, e.EdgeCount())
}

func TestKindInference(t *testing.T) {
	e := NewEngine()
	e.AddRelationship(importEdge("internal/svc/svc.go", "fmt"))
	e.AddRelationship(&types.Relationship{
		Type:   types.RelDefines,
		Source: "internal/svc/svc.go",
		Target: "internal/svc/svc.go::Greet",
	})

	assert.Equal(t, types.NodeFile, e.Node("internal/svc/svc.go").Kind)
	assert.Equal(t, types.NodeModule, e.Node("fmt").Kind)

	sym := e.Node("internal/svc/svc.go::Greet")
	require.NotNil(t, sym)
	assert.Equal(t, types.NodeSymbol, sym.Kind)
	assert.Equal(t, "Greet", sym.Name)
	assert.Equal(t, "internal/svc/svc.go", sym.FilePath)
}

func TestDependencies_DepthBounded(t *testing.T) {
	e := chainEngine()

	assert.Equal(t, []string{"b"}, e.Dependencies("a", 1))
	assert.Equal(t, []string{"b", "c"}, e.Dependencies("a", 2))
	assert.Equal(t, []string{"b", "c", "d"}, e.Dependencies("a", 0))
	assert.Empty(t, e.Dependencies("d", 0))
	assert.Nil(t, e.Dependencies("missing", 0))
}

func TestDependents_ReverseTraversal(t *testing.T) {
	e := chainEngine()

	assert.Equal(t, []string{"c"}, e.Dependents("d", 1))
	assert.Equal(t, []string{"c", "b", "a"}, e.Dependents("d", 0))
	assert.Empty(t, e.Dependents("a", 0))
}

func TestDependencies_OnlyDependencyEdges(t *testing.T) {
	e := NewEngine()
	e.AddRelationship(importEdge("a", "b"))
	e.AddRelationship(&types.Relationship{Type: types.RelDefines, Source: "a", Target: "a::X"})

	// defines edges are not followed by dependency traversal
	assert.Equal(t, []string{"b"}, e.Dependencies("a", 0))
}

func TestDependencies_CycleTerminates(t *testing.T) {
	e := NewEngine()
	e.AddRelationship(importEdge("a", "b"))
	e.AddRelationship(importEdge("b", "a"))

	assert.Equal(t, []string{"b"}, e.Dependencies("a", 0))
}

func TestFindPath(t *testing.T) {
	e := chainEngine()

	assert.Equal(t, []string{"a", "b", "c", "d"}, e.FindPath("a", "d"))
	assert.Equal(t, []string{"a"}, e.FindPath("a", "a"))
	assert.Nil(t, e.FindPath("d", "a"))
	assert.Nil(t, e.FindPath("a", "missing"))
}

func TestFindPath_PrefersShortest(t *testing.T) {
	e := chainEngine()
	// Shortcut a -> d
	e.AddRelationship(&types.Relationship{Type: types.RelUses, Source: "a", Target: "d"})

	assert.Equal(t, []string{"a", "d"}, e.FindPath("a", "d"))
}

func TestGetStats(t *testing.T) {
	e := chainEngine()
	e.AddRelationship(&types.Relationship{Type: types.RelDefines, Source: "a", Target: "a::X"})

	stats := e.GetStats()
	assert.Equal(t, 5, stats.NodeCount)
	assert.Equal(t, 4, stats.EdgeCount)
	assert.Equal(t, []string{"a"}, stats.RootNodes)
	assert.ElementsMatch(t, []string{"d", "a::X"}, stats.LeafNodes)
	assert.Equal(t, 3, stats.EdgesByType[types.RelImports])
	assert.Equal(t, 1, stats.EdgesByType[types.RelDefines])

	// a, b, c all have degree 2; discovery order breaks the tie.
	require.Len(t, stats.HubNodes, 5)
	assert.Equal(t, Hub{ID: "a", Degree: 2}, stats.HubNodes[0])
	assert.Equal(t, Hub{ID: "b", Degree: 2}, stats.HubNodes[1])
	assert.Equal(t, Hub{ID: "c", Degree: 2}, stats.HubNodes[2])
}

func TestExtract_Idempotent(t *testing.T) {
	result := &types.ParseResult{
		PackageName: "svc",
		Imports: []types.Import{
			{Path: "fmt", Line: 3},
			{Path: "github.com/google/uuid", Line: 4, Alias: "uuid"},
		},
		Symbols: []types.Symbol{
			{Name: "Greet", Kind: types.KindFunction, Start: types.Position{Line: 6}, References: []string{"fmt.Sprintf"}},
			{Name: "String", Kind: types.KindMethod, Receiver: "Svc", Start: types.Position{Line: 10}},
		},
		Exports: []string{"Greet"},
	}

	e := NewEngine()
	e.Extract("internal/svc/svc.go", result)
	require.NotNil(t, e.Node("internal/svc/svc.go::Svc.String"))
	edges := e.EdgeCount()
	nodes := e.NodeCount()
	inDegree := e.Node("fmt").InDegree

	// Re-extracting must not duplicate edges or double-count degrees.
	e.Extract("internal/svc/svc.go", result)
	assert.Equal(t, edges, e.EdgeCount())
	assert.Equal(t, nodes, e.NodeCount())
	assert.Equal(t, inDegree, e.Node("fmt").InDegree)

	// Externality inferred from the import path shape.
	var uuidEdge *types.Relationship
	for _, rel := range e.outgoing["internal/svc/svc.go"] {
		if rel.Target == "github.com/google/uuid" {
			uuidEdge = rel
		}
	}
	require.NotNil(t, uuidEdge)
	assert.True(t, uuidEdge.Metadata.IsExternal)
	assert.Equal(t, []string{"uuid"}, uuidEdge.Metadata.Specifiers)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	e := chainEngine()
	require.NoError(t, e.Save(ctx, store))

	loaded := NewEngine()
	require.NoError(t, loaded.Load(ctx, store))

	assert.Equal(t, e.NodeCount(), loaded.NodeCount())
	assert.Equal(t, e.EdgeCount(), loaded.EdgeCount())
	assert.Equal(t, []string{"b", "c", "d"}, loaded.Dependencies("a", 0))
	assert.Equal(t, 1, loaded.Node("b").InDegree)
	assert.Equal(t, 1, loaded.Node("b").OutDegree)
}
