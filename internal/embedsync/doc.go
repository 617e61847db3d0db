// Package embedsync keeps the embedding store consistent with the
// entity catalog. It fingerprints entities, embeds only what is missing
// or stale, splits oversized content into overlapping chunks, degrades
// failed provider batches to individual calls, and removes vectors whose
// owning entity no longer exists.
package embedsync
