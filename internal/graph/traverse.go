package graph

import (
	"sort"

	"codeatlas/pkg/types"
)

// Dependencies returns the identifiers reachable from id within depth
// hops over imports/depends_on/uses edges. Depth 1 returns only direct
// neighbors; depth < 1 performs full reachability. The start node is not
// included.
func (e *Engine) Dependencies(id string, depth int) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.traverse(id, depth, e.outgoing, func(rel *types.Relationship) string {
		return rel.Target
	})
}

// Dependents is the reverse traversal: identifiers that reach id over
// dependency edges within depth hops.
func (e *Engine) Dependents(id string, depth int) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.traverse(id, depth, e.incoming, func(rel *types.Relationship) string {
		return rel.Source
	})
}

// traverse is a depth-bounded breadth-first walk over dependency edges,
// visiting each node at most once. Caller holds a read lock.
func (e *Engine) traverse(start string, depth int, adjacency map[string][]*types.Relationship, next func(*types.Relationship) string) []string {
	if _, ok := e.nodes[start]; !ok {
		return nil
	}

	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	var result []string

	for level := 0; len(frontier) > 0 && (depth < 1 || level < depth); level++ {
		var nextFrontier []string
		for _, id := range frontier {
			for _, rel := range adjacency[id] {
				if _, dep := dependencyEdges[rel.Type]; !dep {
					continue
				}
				neighbor := next(rel)
				if _, seen := visited[neighbor]; seen {
					continue
				}
				visited[neighbor] = struct{}{}
				result = append(result, neighbor)
				nextFrontier = append(nextFrontier, neighbor)
			}
		}
		frontier = nextFrontier
	}
	return result
}

// FindPath returns the shortest path (by edge count) from one node to
// another over outgoing edges of any type, or nil if unreachable. The
// path includes both endpoints.
func (e *Engine) FindPath(from, to string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.nodes[from]; !ok {
		return nil
	}
	if _, ok := e.nodes[to]; !ok {
		return nil
	}
	if from == to {
		return []string{from}
	}

	parent := map[string]string{from: ""}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, rel := range e.outgoing[current] {
			neighbor := rel.Target
			if _, seen := parent[neighbor]; seen {
				continue
			}
			parent[neighbor] = current
			if neighbor == to {
				return rebuildPath(parent, from, to)
			}
			queue = append(queue, neighbor)
		}
	}
	return nil
}

func rebuildPath(parent map[string]string, from, to string) []string {
	var reversed []string
	for id := to; id != ""; id = parent[id] {
		reversed = append(reversed, id)
		if id == from {
			break
		}
	}
	path := make([]string, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}

// Stats summarizes the graph structure.
type Stats struct {
	NodeCount     int
	EdgeCount     int
	RootNodes     []string                   // in-degree zero
	LeafNodes     []string                   // out-degree zero
	HubNodes      []Hub                      // top nodes by combined degree
	EdgesByType   map[types.RelationType]int // relationship counts per type
}

// Hub is a high-degree node in the stats report.
type Hub struct {
	ID     string
	Degree int
}

// DefaultHubCount is how many hub nodes Stats reports.
const DefaultHubCount = 10

// GetStats computes structural statistics. Hubs are ranked by combined
// in/out degree descending; ties keep discovery order.
func (e *Engine) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := &Stats{
		NodeCount:   len(e.nodes),
		EdgeCount:   len(e.edges),
		EdgesByType: make(map[types.RelationType]int),
	}

	for _, rel := range e.edges {
		stats.EdgesByType[rel.Type]++
	}

	hubs := make([]Hub, 0, len(e.nodeOrder))
	for _, id := range e.nodeOrder {
		node := e.nodes[id]
		if node.InDegree == 0 {
			stats.RootNodes = append(stats.RootNodes, id)
		}
		if node.OutDegree == 0 {
			stats.LeafNodes = append(stats.LeafNodes, id)
		}
		hubs = append(hubs, Hub{ID: id, Degree: node.Degree()})
	}

	// Stable sort keeps discovery order for equal degrees.
	sort.SliceStable(hubs, func(i, j int) bool {
		return hubs[i].Degree > hubs[j].Degree
	})
	if len(hubs) > DefaultHubCount {
		hubs = hubs[:DefaultHubCount]
	}
	stats.HubNodes = hubs
	return stats
}
