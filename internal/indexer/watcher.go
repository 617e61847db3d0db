package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event
// before triggering an incremental update. Editors fire bursts of
// writes; one update per burst is enough.
const DefaultDebounce = 500 * time.Millisecond

// Watcher triggers incremental index updates when files under the
// project root change.
type Watcher struct {
	idx      *Indexer
	debounce time.Duration
	logger   *slog.Logger

	// OnUpdate, when set, receives each update result.
	OnUpdate func(*Result)
}

// NewWatcher creates a Watcher over the Indexer's project root. A
// non-positive debounce uses DefaultDebounce.
func NewWatcher(idx *Indexer, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{idx: idx, debounce: debounce, logger: idx.logger}
}

// Watch blocks until ctx is cancelled, running UpdateIndex after each
// debounced burst of file-system events. Ignored directories are not
// watched.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.addDirs(fw); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(w.idx.root, event.Name)
			if err != nil || w.idx.matcher.Match(filepath.ToSlash(rel)) {
				continue
			}
			// New directories must be watched as they appear.
			if event.Op.Has(fsnotify.Create) {
				_ = fw.Add(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			result, err := w.idx.UpdateIndex(ctx)
			if err != nil {
				w.logger.Error("watch update failed", slog.String("error", err.Error()))
				continue
			}
			w.logger.Info("watch update",
				slog.Int("added", len(result.Added)),
				slog.Int("modified", len(result.Modified)),
				slog.Int("deleted", len(result.Deleted)))
			if w.OnUpdate != nil {
				w.OnUpdate(result)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// addDirs registers the root and every non-ignored subdirectory.
func (w *Watcher) addDirs(fw *fsnotify.Watcher) error {
	return filepath.WalkDir(w.idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.idx.root, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && w.idx.matcher.Match(filepath.ToSlash(rel)) {
			return fs.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
