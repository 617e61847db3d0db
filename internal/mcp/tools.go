package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"codeatlas/internal/indexer"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNodeNotFound       = -32001 // Graph node does not exist
	ErrorCodeIndexingInProgress = -32002 // Another indexing run is already active
)

// maxReportedErrors caps per-file error lists in tool responses.
const maxReportedErrors = 5

// handleIndexProject handles the index_project tool invocation: a full
// reindex followed by embedding sync and graph persistence.
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runIndex(ctx, true)
}

// handleUpdateIndex handles the update_index tool invocation: an
// incremental pass that reprocesses only changed files.
func (s *Server) handleUpdateIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runIndex(ctx, false)
}

func (s *Server) runIndex(ctx context.Context, force bool) (*mcp.CallToolResult, error) {
	var result *indexer.Result
	var err error
	if force {
		result, err = s.indexer.IndexAll(ctx)
	} else {
		result, err = s.indexer.UpdateIndex(ctx)
	}
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	entities, err := s.storage.ListEntities(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list entities", map[string]interface{}{
			"error": err.Error(),
		})
	}

	syncResult, err := s.sync.EmbedIncremental(ctx, entities, nil)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "embedding sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	validIDs := make([]string, len(entities))
	for i, e := range entities {
		validIDs[i] = e.ID
	}
	orphansRemoved, err := s.sync.CleanupOrphaned(ctx, validIDs)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "orphan cleanup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := s.graph.Save(ctx, s.storage); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to persist graph", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"added":              len(result.Added),
		"modified":           len(result.Modified),
		"deleted":            len(result.Deleted),
		"unchanged":          len(result.Unchanged),
		"entities":           result.Stats.Entities,
		"symbols":            result.Stats.Symbols,
		"embeddings_created": syncResult.Embedded,
		"embeddings_skipped": syncResult.Skipped,
		"orphans_removed":    orphansRemoved,
		"duration_ms":        result.Duration.Milliseconds(),
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, maxReportedErrors)
		for _, fe := range result.Errors {
			if len(msgs) == maxReportedErrors {
				break
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Path, fe.Message))
		}
		response["errors"] = msgs
		response["error_count"] = len(result.Errors)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGraphDependencies handles the graph_dependencies tool invocation.
func (s *Server) handleGraphDependencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}
	if s.graph.Node(id) == nil {
		return nil, newMCPError(ErrorCodeNodeNotFound, "node not found", map[string]interface{}{
			"id": id,
		})
	}

	depth := getIntDefault(args, "depth", 1)
	reverse := getBoolDefault(args, "reverse", false)

	var ids []string
	if reverse {
		ids = s.graph.Dependents(id, depth)
	} else {
		ids = s.graph.Dependencies(id, depth)
	}

	response := map[string]interface{}{
		"id":      id,
		"depth":   depth,
		"reverse": reverse,
		"count":   len(ids),
		"nodes":   ids,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGraphPath handles the graph_path tool invocation.
func (s *Server) handleGraphPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	from, ok := args["from"].(string)
	if !ok || from == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "from parameter is required", map[string]interface{}{
			"param":  "from",
			"reason": "missing or empty",
		})
	}
	to, ok := args["to"].(string)
	if !ok || to == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "to parameter is required", map[string]interface{}{
			"param":  "to",
			"reason": "missing or empty",
		})
	}

	path := s.graph.FindPath(from, to)
	response := map[string]interface{}{
		"from":  from,
		"to":    to,
		"found": path != nil,
	}
	if path != nil {
		response["path"] = path
		response["length"] = len(path) - 1
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGraphStats handles the graph_stats tool invocation.
func (s *Server) handleGraphStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.graph.GetStats()

	hubs := make([]map[string]interface{}, len(stats.HubNodes))
	for i, hub := range stats.HubNodes {
		hubs[i] = map[string]interface{}{
			"id":     hub.ID,
			"degree": hub.Degree,
		}
	}
	edgesByType := make(map[string]interface{}, len(stats.EdgesByType))
	for relType, count := range stats.EdgesByType {
		edgesByType[string(relType)] = count
	}

	response := map[string]interface{}{
		"nodes":         stats.NodeCount,
		"edges":         stats.EdgeCount,
		"roots":         len(stats.RootNodes),
		"leaves":        len(stats.LeafNodes),
		"hubs":          hubs,
		"edges_by_type": edgesByType,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEmbeddingStats handles the embedding_stats tool invocation.
func (s *Server) handleEmbeddingStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.sync.GetDetailedStats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read embedding stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"count":       stats.Count,
		"stale_count": stats.StaleCount,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
