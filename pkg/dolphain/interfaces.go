package dolphain

import (
	"context"
)

// Service triages recordings: it runs resumable batches and queries the
// cross-run results index.
type Service interface {
	// Find samples files, scores them and writes the ranked outputs.
	Find(ctx context.Context, files []string, resume bool) (*Report, error)
	// AnalyzeFile scores a single file. Failures are carried in the result.
	AnalyzeFile(ctx context.Context, path string) FileResult
	TopFiles(ctx context.Context, limit int, mode string) ([]IndexedFile, error)
	ListRuns(ctx context.Context) ([]RunInfo, error)
	Close() error
}

// Index stores finished runs so their best files can be queried later.
type Index interface {
	IndexRun(ctx context.Context, info RunInfo, results []FileResult) error
	TopFiles(ctx context.Context, limit int, mode string) ([]IndexedFile, error)
	ListRuns(ctx context.Context) ([]RunInfo, error)
	GetRun(ctx context.Context, runID string) (RunInfo, error)
	RunFiles(ctx context.Context, runID string) ([]IndexedFile, error)
	DeleteRun(ctx context.Context, runID string) error
	Close() error
}

// Publisher ships output files somewhere after a run completes.
type Publisher interface {
	Publish(ctx context.Context, runID string, paths []string) ([]string, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
