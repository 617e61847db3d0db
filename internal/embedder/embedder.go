package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrInvalidInput      = errors.New("invalid input")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Provider computes vector embeddings for text. Implementations are
// network-backed except for the local fallback.
type Provider interface {
	// Embed computes a single embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embeddings for multiple texts in one call.
	// The result has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// IsAvailable reports whether the provider can currently serve
	// requests (credentials present, endpoint reachable).
	IsAvailable(ctx context.Context) bool

	// Dimension returns the vector dimension this provider produces.
	Dimension() int

	// Model returns the model identifier recorded with stored embeddings.
	Model() string

	// Close releases any resources held by the provider.
	Close() error
}

// Cache provides in-memory LRU caching of vectors keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	c, err := lru.New[string, []float32](maxLen)
	if err != nil {
		c, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: c}
}

// Get returns a copy of the cached vector so callers cannot mutate the
// cached value in place.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector under the given content hash.
func (c *Cache) Set(hash string, vector []float32) {
	c.cache.Add(hash, vector)
}

// Len returns the current number of cached vectors.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ComputeHash returns the hex SHA-256 of text, the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
