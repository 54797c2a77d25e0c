package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/himanishpuri/dolphain/pkg/models"
	"github.com/himanishpuri/dolphain/pkg/utils"
)

const (
	DefaultCheckpointEvery = 10
	DefaultTopN            = 20
)

// ErrNoFiles means there was nothing to process.
var ErrNoFiles = errors.New("no input files")

// Logger is the logging surface the orchestrator needs.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FileAnalyzer turns one path into a result. Analyze must not fail; errors
// are carried in the result.
type FileAnalyzer interface {
	Analyze(ctx context.Context, path string) models.FileResult
	Mode() string
}

// Indexer records finished runs, e.g. in the SQLite results index.
type Indexer interface {
	IndexRun(ctx context.Context, info models.RunInfo, results []models.FileResult) error
}

// Publisher ships output files somewhere after a run completes.
type Publisher interface {
	Publish(ctx context.Context, runID string, paths []string) ([]string, error)
}

// Config controls one run.
type Config struct {
	Files           []string
	NFiles          int // 0 processes every file
	Seed            uint64
	OutputDir       string
	Resume          bool
	CheckpointEvery int
	TopN            int
}

// Report is what a run leaves behind.
type Report struct {
	Run     *RunState
	Stats   Stats
	Summary Summary
	Outputs []string
	// Published holds the remote locations of published outputs.
	Published []string
}

// Interrupted reports whether the run stopped before processing every file.
func (r *Report) Interrupted() bool {
	return r.Run.State() == StateInterrupted
}

type Orchestrator struct {
	cfg       Config
	analyzer  FileAnalyzer
	store     CheckpointStore
	log       Logger
	observer  Observer
	indexer   Indexer
	publisher Publisher
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(l Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

func WithIndexer(idx Indexer) Option {
	return func(o *Orchestrator) {
		o.indexer = idx
	}
}

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New validates cfg and applies defaults.
func New(cfg Config, analyzer FileAnalyzer, opts ...Option) (*Orchestrator, error) {
	if len(cfg.Files) == 0 {
		return nil, ErrNoFiles
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = DefaultCheckpointEvery
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}

	o := &Orchestrator{
		cfg:      cfg,
		analyzer: analyzer,
		store:    CheckpointStore{Path: filepath.Join(cfg.OutputDir, CheckpointFile)},
		log:      nopLogger{},
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// CheckpointPath is where progress is saved.
func (o *Orchestrator) CheckpointPath() string {
	return o.store.Path
}

// Run processes the sampled files sequentially. Cancelling ctx stops the
// run between files: the current file finishes, progress is checkpointed,
// partial outputs are written and the report comes back Interrupted with a
// nil error.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	s := NewRunState(utils.NewRunID(), o.analyzer.Mode(), o.cfg.Seed, o.now())

	// Step 1: Sample the work list and restore earlier progress
	if err := s.TransitionTo(StateSampling); err != nil {
		return nil, err
	}
	if err := utils.MakeDir(o.cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	s.Files = SampleFiles(o.cfg.Files, o.cfg.NFiles, o.cfg.Seed)
	o.log.Infof("Selected %d of %d files (seed %d, mode %s)", len(s.Files), len(o.cfg.Files), s.Seed, s.Mode)

	if o.cfg.Resume {
		if err := o.resume(s); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(o.store.Path); err == nil {
		o.log.Warnf("Existing checkpoint %s will be overwritten, pass resume to continue it", o.store.Path)
	}

	stats := Stats{Total: len(s.Files), Started: time.Now()}
	for _, r := range s.Results {
		stats.Add(r)
	}
	stats.Resumed = stats.Processed
	o.observer.Started(stats)

	if ctx.Err() != nil {
		if err := s.TransitionTo(StateInterrupted); err != nil {
			return nil, err
		}
		o.observer.Finished(s.State(), stats)
		return &Report{Run: s, Stats: stats, Summary: Summarize(s.Results)}, nil
	}

	// Step 2: Analyse files one by one
	if err := s.TransitionTo(StateProcessing); err != nil {
		return nil, err
	}
	// the file in flight always finishes, cancellation is honoured between files
	fileCtx := context.WithoutCancel(ctx)
	for _, path := range s.Pending() {
		if ctx.Err() != nil {
			o.log.Warnf("Interrupted after %d of %d files", stats.Processed, stats.Total)
			return o.interrupt(s, stats)
		}

		start := time.Now()
		res := o.analyzer.Analyze(fileCtx, path)
		if !s.Record(res) {
			continue
		}
		stats.Add(res)
		stats.Elapsed = time.Since(stats.Started)
		o.observer.FileDone(res, stats, time.Since(start))

		if stats.Processed%o.cfg.CheckpointEvery == 0 {
			if err := o.checkpoint(s); err != nil {
				return nil, err
			}
		}
	}

	// Step 3: Write outputs, drop the checkpoint, index and publish
	return o.complete(ctx, s, stats)
}

func (o *Orchestrator) resume(s *RunState) error {
	cp, err := o.store.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			o.log.Infof("No checkpoint at %s, starting fresh", o.store.Path)
		} else {
			o.log.Warnf("Ignoring unreadable checkpoint, starting fresh: %v", err)
		}
		return nil
	}

	n, err := cp.Restore(s)
	if err != nil {
		return err
	}
	o.log.Infof("Resumed run %s: %d results restored from %s", s.RunID, n, cp.Timestamp.Format(time.RFC3339))
	return nil
}

// checkpoint saves progress from Processing and returns to it.
func (o *Orchestrator) checkpoint(s *RunState) error {
	if err := s.TransitionTo(StateCheckpointing); err != nil {
		return err
	}
	o.saveCheckpoint(s)
	return s.TransitionTo(StateProcessing)
}

// saveCheckpoint retries a failed write once. A second failure is logged and
// the run carries on.
func (o *Orchestrator) saveCheckpoint(s *RunState) {
	err := o.store.Save(s, o.now())
	if err == nil {
		o.log.Debugf("Checkpoint saved: %d results", len(s.Results))
		return
	}
	o.log.Warnf("Checkpoint write failed, retrying: %v", err)

	if err := o.store.Save(s, o.now()); err != nil {
		o.log.Warnf("Checkpoint write failed again, continuing without it: %v", err)
		return
	}
	o.log.Debugf("Checkpoint saved on retry: %d results", len(s.Results))
}

func (o *Orchestrator) interrupt(s *RunState, stats Stats) (*Report, error) {
	if err := s.TransitionTo(StateCheckpointing); err != nil {
		return nil, err
	}
	o.saveCheckpoint(s)

	outputs, err := WriteOutputs(o.cfg.OutputDir, s, o.cfg.TopN)
	if err != nil {
		o.log.Errorf("Writing partial outputs failed: %v", err)
	}

	if err := s.TransitionTo(StateInterrupted); err != nil {
		return nil, err
	}
	o.observer.Finished(s.State(), stats)
	o.log.Infof("Progress saved to %s, rerun with resume to continue", o.store.Path)

	return &Report{Run: s, Stats: stats, Summary: Summarize(s.Results), Outputs: outputs}, nil
}

func (o *Orchestrator) complete(ctx context.Context, s *RunState, stats Stats) (*Report, error) {
	outputs, err := WriteOutputs(o.cfg.OutputDir, s, o.cfg.TopN)
	if err != nil {
		// keep the checkpoint so the run can be resumed
		o.saveCheckpoint(s)
		return nil, fmt.Errorf("writing outputs: %w", err)
	}

	if err := o.store.Delete(); err != nil {
		o.log.Warnf("Could not remove checkpoint: %v", err)
	}

	report := &Report{Run: s, Stats: stats, Summary: Summarize(s.Results), Outputs: outputs}

	if o.indexer != nil {
		info := models.RunInfo{
			ID:         s.RunID,
			Mode:       s.Mode,
			Seed:       s.Seed,
			OutputDir:  o.cfg.OutputDir,
			NFiles:     len(s.Results),
			NErrors:    s.Errors(),
			StartedAt:  s.StartedAt,
			FinishedAt: o.now(),
		}
		if err := o.indexer.IndexRun(ctx, info, s.Results); err != nil {
			o.log.Warnf("Indexing run %s failed: %v", s.RunID, err)
		}
	}

	if o.publisher != nil {
		locations, err := o.publisher.Publish(ctx, s.RunID, outputs)
		if err != nil {
			o.log.Warnf("Publishing outputs failed: %v", err)
		}
		report.Published = locations
	}

	if err := s.TransitionTo(StateCompleted); err != nil {
		return nil, err
	}
	o.observer.Finished(s.State(), stats)
	return report, nil
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
