package dolphain

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/dolphain/internal/analyzer"
	"github.com/himanishpuri/dolphain/internal/batch"
	"github.com/himanishpuri/dolphain/internal/publish"
	"github.com/himanishpuri/dolphain/pkg/logger"
)

// ErrIndexDisabled is returned by index queries when the service runs
// without a results index.
var ErrIndexDisabled = errors.New("results index is disabled")

// triageService is the default implementation of the Service interface.
type triageService struct {
	analyzer  *analyzer.Analyzer
	index     Index
	publisher Publisher
	log       Logger
	config    *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	a, err := analyzer.New(cfg.Mode,
		analyzer.WithLogger(cfg.Logger),
		analyzer.WithWavelet(cfg.Wavelet),
		analyzer.WithChirpParams(cfg.Chirp),
		analyzer.WithClickParams(cfg.Click),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	idx := cfg.Index
	if idx == nil && !cfg.DisableIndex {
		idx, err = NewSQLiteIndex(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open results index: %w", err)
		}
	}

	pub := cfg.Publisher
	if pub == nil && cfg.S3.Enabled() {
		pub, err = publish.NewS3Publisher(context.Background(), cfg.S3, publish.WithLogger(cfg.Logger))
		if err != nil {
			if idx != nil {
				idx.Close()
			}
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
	}

	return &triageService{
		analyzer:  a,
		index:     idx,
		publisher: pub,
		log:       cfg.Logger,
		config:    cfg,
	}, nil
}

// Find runs one resumable batch over files.
func (s *triageService) Find(ctx context.Context, files []string, resume bool) (*Report, error) {
	opts := []batch.Option{batch.WithLogger(s.log)}
	if s.config.Observer != nil {
		opts = append(opts, batch.WithObserver(s.config.Observer))
	}
	if s.index != nil {
		opts = append(opts, batch.WithIndexer(s.index))
	}
	if s.publisher != nil {
		opts = append(opts, batch.WithPublisher(s.publisher))
	}

	orch, err := batch.New(batch.Config{
		Files:           files,
		NFiles:          s.config.NFiles,
		Seed:            s.config.Seed,
		OutputDir:       s.config.OutputDir,
		Resume:          resume,
		CheckpointEvery: s.config.CheckpointEvery,
		TopN:            s.config.TopN,
	}, s.analyzer, opts...)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx)
}

func (s *triageService) AnalyzeFile(ctx context.Context, path string) FileResult {
	return s.analyzer.Analyze(ctx, path)
}

func (s *triageService) TopFiles(ctx context.Context, limit int, mode string) ([]IndexedFile, error) {
	if s.index == nil {
		return nil, ErrIndexDisabled
	}
	return s.index.TopFiles(ctx, limit, mode)
}

func (s *triageService) ListRuns(ctx context.Context) ([]RunInfo, error) {
	if s.index == nil {
		return nil, ErrIndexDisabled
	}
	return s.index.ListRuns(ctx)
}

func (s *triageService) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}
