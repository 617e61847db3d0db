package indexer

import (
	"errors"
	"sync/atomic"
)

// ErrIndexingInProgress is returned when a run starts while another run
// holds the same Indexer's lock.
var ErrIndexingInProgress = errors.New("indexing already in progress")

// IndexLock provides non-blocking single-writer semantics for one
// Indexer: the index map and checkpoint have exactly one logical owner,
// so a second concurrent run fails fast instead of interleaving writes.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}
