package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultCheckpointFile is the checkpoint's file name under the project
// root.
const DefaultCheckpointFile = ".atlas-checkpoint.json"

// Checkpoint is the persisted state of a streaming run. ProcessedFiles
// is the sole resume cursor: it only grows within a run, and a restart
// continues from that offset into the re-discovered (sorted) file list.
type Checkpoint struct {
	TotalFiles        int       `json:"total_files"`
	ProcessedFiles    int       `json:"processed_files"`
	BatchNumber       int       `json:"batch_number"`
	FailedFiles       []string  `json:"failed_files,omitempty"`
	SkippedFiles      []string  `json:"skipped_files,omitempty"`
	LastProcessedFile string    `json:"last_processed_file,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	CheckpointAt      time.Time `json:"checkpoint_at"`
}

// LoadCheckpoint reads a checkpoint file. A missing or corrupt file
// yields (nil, nil): the run starts fresh rather than aborting.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, nil
	}
	return &cp, nil
}

// SaveCheckpoint writes the checkpoint atomically via a temp file rename
// so a crash mid-write never leaves a corrupt cursor behind.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	cp.CheckpointAt = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint file. A missing file is not
// an error.
func DeleteCheckpoint(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
