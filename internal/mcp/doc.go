// Package mcp exposes the indexing pipeline over the Model Context
// Protocol: indexing triggers, graph queries, and embedding statistics
// as MCP tools served on stdio.
package mcp
