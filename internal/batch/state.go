// Package batch drives the file analyzer over large file lists with seeded
// sampling, periodic checkpoints and resumable runs.
package batch

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/himanishpuri/dolphain/pkg/models"
)

// State is a phase of a batch run.
type State string

const (
	// StateIdle is a run that has not started.
	StateIdle State = "IDLE"
	// StateSampling selects the files to process and restores checkpoints.
	StateSampling State = "SAMPLING"
	// StateProcessing analyses files one at a time.
	StateProcessing State = "PROCESSING"
	// StateCheckpointing persists progress.
	StateCheckpointing State = "CHECKPOINTING"
	// StateCompleted means every sampled file was processed.
	StateCompleted State = "COMPLETED"
	// StateInterrupted means the run stopped early and left a checkpoint.
	StateInterrupted State = "INTERRUPTED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateIdle:          {StateSampling},
	StateSampling:      {StateProcessing, StateInterrupted},
	StateProcessing:    {StateCheckpointing, StateCompleted},
	StateCheckpointing: {StateProcessing, StateCompleted, StateInterrupted},
	StateCompleted:     {},
	StateInterrupted:   {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateInterrupted
}

// RunState is the mutable state of one run. It is owned by the orchestrator
// and passed by reference to checkpoint and output code.
type RunState struct {
	RunID     string
	Mode      string
	Seed      uint64
	StartedAt time.Time

	// Files is the sampled work list in processing order.
	Files     []string
	Processed map[string]struct{}
	Results   []models.FileResult

	state State
}

// NewRunState returns an idle run.
func NewRunState(runID, mode string, seed uint64, startedAt time.Time) *RunState {
	return &RunState{
		RunID:     runID,
		Mode:      mode,
		Seed:      seed,
		StartedAt: startedAt,
		Processed: make(map[string]struct{}),
		state:     StateIdle,
	}
}

// State returns the current phase.
func (s *RunState) State() State {
	return s.state
}

// TransitionTo moves the run to a new phase.
// Returns ErrInvalidTransition if the transition is not allowed.
func (s *RunState) TransitionTo(to State) error {
	if !canTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

// Record stores a file result. A path already recorded is ignored and
// false is returned.
func (s *RunState) Record(res models.FileResult) bool {
	if s.IsProcessed(res.Path) {
		return false
	}
	s.Processed[res.Path] = struct{}{}
	s.Results = append(s.Results, res)
	return true
}

// IsProcessed reports whether path already has a result.
func (s *RunState) IsProcessed(path string) bool {
	_, ok := s.Processed[path]
	return ok
}

// Pending lists the sampled files without a result, in processing order.
func (s *RunState) Pending() []string {
	var out []string
	for _, f := range s.Files {
		if !s.IsProcessed(f) {
			out = append(out, f)
		}
	}
	return out
}

// Errors counts failed results.
func (s *RunState) Errors() int {
	n := 0
	for _, r := range s.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Ranked returns the results by score descending, ties by path.
func (s *RunState) Ranked() []models.FileResult {
	out := make([]models.FileResult, len(s.Results))
	copy(out, s.Results)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out
}
