// Package indexer walks a project tree and keeps the stored index
// consistent with it. It classifies each discovered file as added,
// modified, unchanged, or deleted against the persisted index map, using
// a content hash of the raw bytes as the sole change signal.
//
// Two modes share the classification logic: an in-memory mode
// (IndexAll/UpdateIndex) for ordinary trees, and a checkpointed
// streaming mode (StreamIndexer) for trees too large to process in one
// sitting, which resumes after a crash from the last saved cursor.
package indexer
