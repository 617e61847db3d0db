package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Fully reindex the project: parse all files, rebuild entities, sync embeddings, and persist the relationship graph",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// updateIndexTool returns the tool definition for update_index
func updateIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_index",
		Description: "Incrementally update the index: only files whose content changed are reparsed and re-embedded",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// graphDependenciesTool returns the tool definition for graph_dependencies
func graphDependenciesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_dependencies",
		Description: "List what a file or symbol depends on (or, with reverse=true, what depends on it), up to a given depth",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Node identifier: a relative file path or a qualified symbol id (path::Name, path::Recv.Name for methods)",
				},
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "Traversal depth; 1 returns direct neighbors, 0 or less returns full reachability",
					"default":     1,
				},
				"reverse": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, traverse incoming edges (reverse dependencies)",
					"default":     false,
				},
			},
			Required: []string{"id"},
		},
	}
}

// graphPathTool returns the tool definition for graph_path
func graphPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_path",
		Description: "Find the shortest relationship path between two graph nodes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"from": map[string]interface{}{
					"type":        "string",
					"description": "Source node identifier",
				},
				"to": map[string]interface{}{
					"type":        "string",
					"description": "Target node identifier",
				},
			},
			Required: []string{"from", "to"},
		},
	}
}

// graphStatsTool returns the tool definition for graph_stats
func graphStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_stats",
		Description: "Report relationship graph statistics: node/edge counts, roots, leaves, hub nodes, and per-type edge counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// embeddingStatsTool returns the tool definition for embedding_stats
func embeddingStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "embedding_stats",
		Description: "Report embedding store statistics, separating fingerprint-verified embeddings from stale ones",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
