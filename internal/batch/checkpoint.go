package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/himanishpuri/dolphain/pkg/models"
	"github.com/himanishpuri/dolphain/pkg/utils"
)

// CheckpointFile is the checkpoint's name inside the output directory.
const CheckpointFile = "checkpoint.json"

// ErrCheckpointMismatch means a checkpoint belongs to a run with a different
// seed or scoring mode.
var ErrCheckpointMismatch = errors.New("checkpoint does not match run settings")

// Checkpoint is the persisted progress of a run.
type Checkpoint struct {
	RunID          string              `json:"run_id"`
	Mode           string              `json:"mode"`
	Seed           uint64              `json:"seed"`
	StartedAt      time.Time           `json:"started_at"`
	ProcessedPaths []string            `json:"processed_paths"`
	Results        []models.FileResult `json:"results"`
	Timestamp      time.Time           `json:"timestamp"`
}

// EncodeCheckpoint serialises the run's progress. It does not modify s.
func EncodeCheckpoint(s *RunState, now time.Time) ([]byte, error) {
	cp := Checkpoint{
		RunID:          s.RunID,
		Mode:           s.Mode,
		Seed:           s.Seed,
		StartedAt:      s.StartedAt,
		ProcessedPaths: make([]string, 0, len(s.Results)),
		Results:        s.Results,
		Timestamp:      now,
	}
	for _, r := range s.Results {
		cp.ProcessedPaths = append(cp.ProcessedPaths, r.Path)
	}
	if cp.Results == nil {
		cp.Results = []models.FileResult{}
	}
	return json.MarshalIndent(cp, "", "  ")
}

// DecodeCheckpoint parses a checkpoint. Every processed path must have a
// result.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(cp.Results))
	for _, r := range cp.Results {
		have[r.Path] = struct{}{}
	}
	for _, p := range cp.ProcessedPaths {
		if _, ok := have[p]; !ok {
			return nil, fmt.Errorf("processed path %s has no result", p)
		}
	}
	return &cp, nil
}

// Restore copies the checkpoint's progress into s and returns the number of
// results restored. The seed and mode must match. When s already has a work
// list, results for files outside it are dropped.
func (c *Checkpoint) Restore(s *RunState) (int, error) {
	if c.Seed != s.Seed || c.Mode != s.Mode {
		return 0, fmt.Errorf("%w: checkpoint has seed=%d mode=%s, run has seed=%d mode=%s",
			ErrCheckpointMismatch, c.Seed, c.Mode, s.Seed, s.Mode)
	}
	if c.RunID != "" {
		s.RunID = c.RunID
	}
	if !c.StartedAt.IsZero() {
		s.StartedAt = c.StartedAt
	}

	var sampled map[string]struct{}
	if len(s.Files) > 0 {
		sampled = make(map[string]struct{}, len(s.Files))
		for _, f := range s.Files {
			sampled[f] = struct{}{}
		}
	}

	n := 0
	for _, r := range c.Results {
		if sampled != nil {
			if _, ok := sampled[r.Path]; !ok {
				continue
			}
		}
		if s.Record(r) {
			n++
		}
	}
	return n, nil
}

// CheckpointStore reads and writes one checkpoint file.
type CheckpointStore struct {
	Path string
}

// Save writes the checkpoint atomically.
func (c CheckpointStore) Save(s *RunState, now time.Time) error {
	data, err := EncodeCheckpoint(s, now)
	if err != nil {
		return &models.CheckpointError{Op: "encode", Path: c.Path, Err: err}
	}
	if err := utils.WriteFileAtomic(c.Path, data, 0o644); err != nil {
		return &models.CheckpointError{Op: "write", Path: c.Path, Err: err}
	}
	return nil
}

// Load reads the checkpoint. A missing file wraps os.ErrNotExist.
func (c CheckpointStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, &models.CheckpointError{Op: "read", Path: c.Path, Err: err}
	}
	cp, err := DecodeCheckpoint(data)
	if err != nil {
		return nil, &models.CheckpointError{Op: "decode", Path: c.Path, Err: err}
	}
	return cp, nil
}

// Delete removes the checkpoint. A missing file is not an error.
func (c CheckpointStore) Delete() error {
	if err := utils.DeleteFile(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &models.CheckpointError{Op: "delete", Path: c.Path, Err: err}
	}
	return nil
}
