// Package embedder implements the embedding Provider collaborator: hosted
// Jina and OpenAI backends over an OpenAI-compatible HTTP API with
// exponential-backoff retry, an LRU result cache keyed by content hash,
// and a deterministic local fallback for offline use.
package embedder
