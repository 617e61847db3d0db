package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeatlas/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv(embedder.EnvProvider, embedder.ProviderLocal)

	root := t.TempDir()
	src := "package demo\n\nimport \"fmt\"\n\nfunc Greet() { fmt.Println(\"hello\") }\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "demo.go"), []byte(src), 0o644))

	s, err := NewServer(Options{Root: root, DBPath: filepath.Join(t.TempDir(), "index.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.storage.Close() })
	return s
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) map[string]interface{} {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func TestHandleUpdateIndex_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	first := callTool(t, s.handleUpdateIndex, map[string]interface{}{})
	assert.Equal(t, float64(1), first["added"])
	assert.Greater(t, first["embeddings_created"], float64(0))

	second := callTool(t, s.handleUpdateIndex, map[string]interface{}{})
	assert.Equal(t, float64(0), second["added"])
	assert.Equal(t, float64(1), second["unchanged"])
	assert.Equal(t, float64(0), second["embeddings_created"])
}

func TestHandleGraphDependencies(t *testing.T) {
	s := newTestServer(t)
	callTool(t, s.handleUpdateIndex, map[string]interface{}{})

	deps := callTool(t, s.handleGraphDependencies, map[string]interface{}{
		"id":    "demo.go",
		"depth": float64(1),
	})
	assert.Equal(t, "demo.go", deps["id"])
	assert.Contains(t, deps["nodes"], "fmt")

	_, err := s.handleGraphDependencies(context.Background(), requestWith(map[string]interface{}{
		"id": "missing.go",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeNodeNotFound, mcpErr.Code)
}

func TestHandleGraphDependencies_RequiresID(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleGraphDependencies(context.Background(), requestWith(map[string]interface{}{}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleGraphPath(t *testing.T) {
	s := newTestServer(t)
	callTool(t, s.handleUpdateIndex, map[string]interface{}{})

	found := callTool(t, s.handleGraphPath, map[string]interface{}{
		"from": "demo.go",
		"to":   "fmt",
	})
	assert.Equal(t, true, found["found"])
	assert.Equal(t, []interface{}{"demo.go", "fmt"}, found["path"])

	missing := callTool(t, s.handleGraphPath, map[string]interface{}{
		"from": "fmt",
		"to":   "demo.go",
	})
	assert.Equal(t, false, missing["found"])
}

func TestHandleGraphStats(t *testing.T) {
	s := newTestServer(t)
	callTool(t, s.handleUpdateIndex, map[string]interface{}{})

	stats := callTool(t, s.handleGraphStats, map[string]interface{}{})
	assert.Greater(t, stats["nodes"], float64(0))
	assert.Greater(t, stats["edges"], float64(0))
}

func TestHandleEmbeddingStats(t *testing.T) {
	s := newTestServer(t)
	callTool(t, s.handleUpdateIndex, map[string]interface{}{})

	stats := callTool(t, s.handleEmbeddingStats, map[string]interface{}{})
	assert.Greater(t, stats["count"], float64(0))
	assert.Equal(t, float64(0), stats["stale_count"])
}

func requestWith(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}
