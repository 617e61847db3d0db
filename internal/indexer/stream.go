package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Streaming defaults.
const (
	DefaultStreamBatchSize    = 50
	DefaultCheckpointEvery    = 10
	DefaultMaxFileSize        = 1 << 20 // 1 MiB
	DefaultMaxEntitiesPerFile = 200
)

// StreamConfig controls the checkpointed streaming mode.
type StreamConfig struct {
	BatchSize          int    // files per batch
	CheckpointEvery    int    // checkpoint after this many processed files
	MaxFileSize        int64  // files above this size are skipped, not parsed
	MaxEntitiesPerFile int    // entities beyond this per file are truncated
	CheckpointPath     string // defaults to DefaultCheckpointFile under the root
}

func (c StreamConfig) withDefaults(root string) StreamConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultStreamBatchSize
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = DefaultCheckpointEvery
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.MaxEntitiesPerFile <= 0 {
		c.MaxEntitiesPerFile = DefaultMaxEntitiesPerFile
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = filepath.Join(root, DefaultCheckpointFile)
	}
	return c
}

// Batch reports one completed batch of a streaming run.
type Batch struct {
	Number   int
	Files    []string // successfully processed in this batch
	Failed   []string
	Skipped  []string
	Entities int
}

// BatchSeq is a lazy, finite, not-restartable sequence of batches. The
// producer holds at most one batch in memory; the consumer pulls with
// Next until the second return value is false, then checks Err. A
// consumer that stops pulling early must call Close (or cancel the
// context) or the producer keeps the run lock forever.
type BatchSeq struct {
	ch   chan *Batch
	done chan struct{}
	once sync.Once
	err  error
}

// Next blocks until the next batch is ready. It returns false when the
// sequence is exhausted.
func (s *BatchSeq) Next() (*Batch, bool) {
	b, ok := <-s.ch
	return b, ok
}

// Close abandons the sequence. The producer stops after the batch in
// flight, keeps the checkpoint for the files already committed, and
// releases the run lock. Safe to call more than once.
func (s *BatchSeq) Close() {
	s.once.Do(func() { close(s.done) })
}

// Err reports why the sequence ended early. It is only meaningful after
// Next has returned false.
func (s *BatchSeq) Err() error {
	return s.err
}

// StreamIndexer runs the checkpointed streaming mode over an Indexer's
// project: deterministic sorted discovery, fixed-size batches, periodic
// checkpoint writes, and resume from the last cursor after a crash.
type StreamIndexer struct {
	idx    *Indexer
	config StreamConfig
}

// NewStream wraps an Indexer for streaming use.
func NewStream(idx *Indexer, config *StreamConfig) *StreamIndexer {
	cfg := StreamConfig{}
	if config != nil {
		cfg = *config
	}
	return &StreamIndexer{idx: idx, config: cfg.withDefaults(idx.root)}
}

// HasCheckpoint reports whether a resumable checkpoint exists.
func (s *StreamIndexer) HasCheckpoint() bool {
	cp, err := LoadCheckpoint(s.config.CheckpointPath)
	return err == nil && cp != nil
}

// State returns the current checkpoint, or nil when none exists.
func (s *StreamIndexer) State() (*Checkpoint, error) {
	return LoadCheckpoint(s.config.CheckpointPath)
}

// ResetCheckpoint discards any saved progress so the next run starts
// from the first file.
func (s *StreamIndexer) ResetCheckpoint() error {
	return DeleteCheckpoint(s.config.CheckpointPath)
}

// ProcessFiles discovers the file set and returns a pull-based batch
// sequence. If a checkpoint exists, processing resumes at its
// ProcessedFiles offset into the re-discovered sorted list; already
// processed files are not reprocessed. The checkpoint is deleted when
// the sequence completes.
func (s *StreamIndexer) ProcessFiles(ctx context.Context) (*BatchSeq, error) {
	if !s.idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}

	files, err := DiscoverFiles(s.idx.root, s.idx.matcher, s.idx.parser)
	if err != nil {
		s.idx.lock.Release()
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	cp, err := LoadCheckpoint(s.config.CheckpointPath)
	if err != nil {
		s.idx.lock.Release()
		return nil, err
	}
	if cp == nil {
		cp = &Checkpoint{StartedAt: time.Now()}
		// A fresh streaming run is a full reindex; stale edges must not
		// survive it. A resumed run keeps what earlier batches extracted.
		if s.idx.graph != nil {
			s.idx.graph.Clear()
		}
	} else {
		s.idx.logger.Info("resuming from checkpoint",
			slog.Int("processed", cp.ProcessedFiles),
			slog.Int("total", len(files)))
	}
	cp.TotalFiles = len(files)
	if cp.ProcessedFiles > len(files) {
		cp.ProcessedFiles = len(files)
	}

	if err := SaveCheckpoint(s.config.CheckpointPath, cp); err != nil {
		s.idx.lock.Release()
		return nil, err
	}

	seq := &BatchSeq{ch: make(chan *Batch), done: make(chan struct{})}
	go s.produce(ctx, files, cp, seq)
	return seq, nil
}

// produce runs batches sequentially, checkpointing as it goes. Workers
// produce file outcomes; this goroutine is the single owner that commits
// them and advances the cursor.
func (s *StreamIndexer) produce(ctx context.Context, files []string, cp *Checkpoint, seq *BatchSeq) {
	defer s.idx.lock.Release()
	defer close(seq.ch)

	sinceCheckpoint := 0
	for cp.ProcessedFiles < len(files) {
		end := cp.ProcessedFiles + s.config.BatchSize
		if end > len(files) {
			end = len(files)
		}
		cp.BatchNumber++
		batch := &Batch{Number: cp.BatchNumber}

		paths := files[cp.ProcessedFiles:end]
		outcomes, err := s.processConcurrently(ctx, paths)
		if err != nil {
			seq.err = err
			return
		}

		for i, out := range outcomes {
			if err := s.commitOutcome(ctx, paths[i], out, batch, cp); err != nil {
				seq.err = err
				return
			}
			cp.ProcessedFiles++
			cp.LastProcessedFile = paths[i]
			sinceCheckpoint++
			if sinceCheckpoint >= s.config.CheckpointEvery {
				if err := SaveCheckpoint(s.config.CheckpointPath, cp); err != nil {
					seq.err = err
					return
				}
				sinceCheckpoint = 0
			}
		}

		// The batch is not delivered until its checkpoint is durable.
		if err := SaveCheckpoint(s.config.CheckpointPath, cp); err != nil {
			seq.err = err
			return
		}
		sinceCheckpoint = 0

		select {
		case seq.ch <- batch:
		case <-seq.done:
			return
		case <-ctx.Done():
			seq.err = ctx.Err()
			return
		}
	}

	if err := DeleteCheckpoint(s.config.CheckpointPath); err != nil {
		seq.err = err
	}
}

// processConcurrently produces outcomes for one batch with the Indexer's
// worker pool. A nil outcome marks a file skipped for size.
func (s *StreamIndexer) processConcurrently(ctx context.Context, paths []string) ([]*fileOutcome, error) {
	outcomes := make([]*fileOutcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.idx.workers)
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			absPath := filepath.Join(s.idx.root, filepath.FromSlash(path))
			if info, statErr := os.Stat(absPath); statErr == nil && info.Size() > s.config.MaxFileSize {
				return nil // skipped, outcome stays nil
			}
			outcomes[i] = s.idx.processFile(path, nil, true, s.config.MaxEntitiesPerFile)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// commitOutcome applies one streamed file outcome to the store and the
// running checkpoint.
func (s *StreamIndexer) commitOutcome(ctx context.Context, path string, out *fileOutcome, batch *Batch, cp *Checkpoint) error {
	switch {
	case out == nil:
		batch.Skipped = append(batch.Skipped, path)
		cp.SkippedFiles = append(cp.SkippedFiles, path)
		s.idx.logger.Debug("file skipped for size", slog.String("path", path))
		return nil
	case out.err != nil:
		batch.Failed = append(batch.Failed, path)
		cp.FailedFiles = append(cp.FailedFiles, path)
		s.idx.logger.Warn("file failed", slog.String("path", path), slog.String("error", out.err.Error()))
		return nil
	}

	if err := s.idx.store.DeleteEntitiesByFile(ctx, path); err != nil {
		return fmt.Errorf("failed to clear entities for %s: %w", path, err)
	}
	for _, entity := range out.entities {
		if err := s.idx.store.UpsertEntity(ctx, entity); err != nil {
			return fmt.Errorf("failed to store entity %s: %w", entity.Name, err)
		}
	}
	if err := s.idx.store.UpsertIndexEntry(ctx, out.entry); err != nil {
		return fmt.Errorf("failed to store index entry for %s: %w", path, err)
	}
	if s.idx.graph != nil {
		s.idx.graph.Extract(path, out.parsed)
	}

	batch.Files = append(batch.Files, path)
	batch.Entities += len(out.entities)
	return nil
}

