package dolphain

import (
	"github.com/himanishpuri/dolphain/internal/batch"
	"github.com/himanishpuri/dolphain/internal/scoring"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// Scoring modes.
const (
	ModeInterestingness = scoring.ModeInterestingness
	ModeUniqueness      = scoring.ModeUniqueness
)

type (
	// Report is what a batch run leaves behind.
	Report = batch.Report
	// Stats are the live counters of a run.
	Stats = batch.Stats
	// Summary aggregates a run's results.
	Summary = batch.Summary
	// Observer receives progress callbacks during a run.
	Observer = batch.Observer
	// State is a run's lifecycle state.
	State = batch.State

	FileResult  = models.FileResult
	IndexedFile = models.IndexedFile
	RunInfo     = models.RunInfo
)
