package graph

import (
	"context"
	"path"
	"strings"
	"sync"

	"codeatlas/internal/storage"
	"codeatlas/pkg/types"
)

// QualifierSeparator joins a file path and a symbol name into a symbol
// node identifier, e.g. "internal/svc/svc.go::Greet".
const QualifierSeparator = "::"

// fileExtensions are the extensions recognized when inferring that a
// node identifier names a file.
var fileExtensions = map[string]struct{}{
	".go": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {},
	".py": {}, ".rs": {}, ".java": {}, ".rb": {}, ".c": {}, ".h": {},
	".cpp": {}, ".md": {}, ".json": {}, ".yaml": {}, ".yml": {},
}

// dependencyEdges are the edge types followed by dependency traversal.
var dependencyEdges = map[types.RelationType]struct{}{
	types.RelImports:   {},
	types.RelDependsOn: {},
	types.RelUses:      {},
}

// Engine accumulates typed directed edges and answers graph queries.
// Insertion is idempotent: duplicate (type, source, target) edges are
// rejected so re-extraction never double-counts degrees.
type Engine struct {
	mu        sync.RWMutex
	nodes     map[string]*types.GraphNode
	nodeOrder []string
	edges     []*types.Relationship
	edgeKeys  map[edgeKey]struct{}
	outgoing  map[string][]*types.Relationship
	incoming  map[string][]*types.Relationship
}

type edgeKey struct {
	typ    types.RelationType
	source string
	target string
}

// NewEngine creates an empty relationship graph.
func NewEngine() *Engine {
	e := &Engine{}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.nodes = make(map[string]*types.GraphNode)
	e.nodeOrder = nil
	e.edges = nil
	e.edgeKeys = make(map[edgeKey]struct{})
	e.outgoing = make(map[string][]*types.Relationship)
	e.incoming = make(map[string][]*types.Relationship)
}

// AddRelationship inserts an edge unless it is a duplicate. Endpoint
// nodes are created lazily and their degrees updated on insert. Returns
// true if the edge was inserted.
func (e *Engine) AddRelationship(rel *types.Relationship) bool {
	if rel == nil || rel.Source == "" || rel.Target == "" {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := edgeKey{typ: rel.Type, source: rel.Source, target: rel.Target}
	if _, dup := e.edgeKeys[key]; dup {
		return false
	}
	e.edgeKeys[key] = struct{}{}
	e.edges = append(e.edges, rel)

	src := e.ensureNode(rel.Source)
	dst := e.ensureNode(rel.Target)
	src.OutDegree++
	dst.InDegree++

	e.outgoing[rel.Source] = append(e.outgoing[rel.Source], rel)
	e.incoming[rel.Target] = append(e.incoming[rel.Target], rel)
	return true
}

// ensureNode returns the node for id, creating it on first sight.
// Caller holds the write lock.
func (e *Engine) ensureNode(id string) *types.GraphNode {
	if node, ok := e.nodes[id]; ok {
		return node
	}
	node := &types.GraphNode{
		ID:   id,
		Name: displayName(id),
		Kind: inferKind(id),
	}
	if node.Kind == types.NodeFile {
		node.FilePath = id
	} else if i := strings.Index(id, QualifierSeparator); i >= 0 {
		node.FilePath = id[:i]
	}
	e.nodes[id] = node
	e.nodeOrder = append(e.nodeOrder, id)
	return node
}

// Node returns the node for id, or nil if it has never appeared as an
// edge endpoint.
func (e *Engine) Node(id string) *types.GraphNode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nodes[id]
}

// NodeCount returns the number of nodes.
func (e *Engine) NodeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.nodes)
}

// EdgeCount returns the number of edges.
func (e *Engine) EdgeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.edges)
}

// Clear removes all nodes and edges.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

// Save persists the current graph through the store, replacing any
// previously saved graph.
func (e *Engine) Save(ctx context.Context, store storage.Storage) error {
	e.mu.RLock()
	nodes := make([]*types.GraphNode, 0, len(e.nodeOrder))
	for _, id := range e.nodeOrder {
		nodes = append(nodes, e.nodes[id])
	}
	edges := make([]*types.Relationship, len(e.edges))
	copy(edges, e.edges)
	e.mu.RUnlock()

	return store.SaveGraph(ctx, nodes, edges)
}

// Load replaces the engine contents with the graph persisted in store.
// Degrees are recomputed from the loaded edges.
func (e *Engine) Load(ctx context.Context, store storage.Storage) error {
	nodes, edges, err := store.LoadGraph(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.reset()
	for _, n := range nodes {
		fresh := *n
		fresh.InDegree = 0
		fresh.OutDegree = 0
		e.nodes[n.ID] = &fresh
		e.nodeOrder = append(e.nodeOrder, n.ID)
	}
	e.mu.Unlock()

	for _, rel := range edges {
		e.AddRelationship(rel)
	}
	return nil
}

// inferKind classifies a node identifier: a qualifier separator implies
// a symbol, a recognized file extension implies a file, anything else is
// a module.
func inferKind(id string) types.NodeKind {
	if strings.Contains(id, QualifierSeparator) {
		return types.NodeSymbol
	}
	if _, ok := fileExtensions[path.Ext(id)]; ok {
		return types.NodeFile
	}
	return types.NodeModule
}

// displayName derives a short human-readable name from an identifier.
func displayName(id string) string {
	if i := strings.LastIndex(id, QualifierSeparator); i >= 0 {
		return id[i+len(QualifierSeparator):]
	}
	return path.Base(id)
}
