package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint marks how far a run has progressed. Saved at batch boundaries
// only, so a resumed run re-reads but never re-applies completed batches.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	RowsDone  int       `json:"rows_done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointStore persists checkpoints as one JSON file per run.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore creates the checkpoint directory if needed.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &CheckpointStore{dir: dir}, nil
}

func (cs *CheckpointStore) path(runID string) string {
	return filepath.Join(cs.dir, runID+".json")
}

// Load returns the checkpoint for a run, if one exists.
func (cs *CheckpointStore) Load(runID string) (*Checkpoint, bool, error) {
	data, err := os.ReadFile(cs.path(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false, fmt.Errorf("corrupt checkpoint for run %s: %w", runID, err)
	}
	return &cp, true, nil
}

// Save writes the checkpoint atomically via rename.
func (cs *CheckpointStore) Save(cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	tmp := cs.path(cp.RunID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, cs.path(cp.RunID))
}

// Clear removes the checkpoint after a run completes.
func (cs *CheckpointStore) Clear(runID string) error {
	err := os.Remove(cs.path(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
