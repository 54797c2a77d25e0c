// Package analyzer runs the per-file detection and scoring pipeline.
package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/himanishpuri/dolphain/internal/audio"
	"github.com/himanishpuri/dolphain/internal/denoise"
	"github.com/himanishpuri/dolphain/internal/detect"
	"github.com/himanishpuri/dolphain/internal/features"
	"github.com/himanishpuri/dolphain/internal/scoring"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// Logger is the logging surface the analyzer needs.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// ReadFunc loads a recording. audio.Read is the default.
type ReadFunc func(ctx context.Context, path string) (*audio.Signal, error)

type Analyzer struct {
	scorer  scoring.Scorer
	wavelet string
	chirp   detect.ChirpParams
	click   detect.ClickParams
	read    ReadFunc
	log     Logger
}

type Option func(*Analyzer)

func WithLogger(l Logger) Option {
	return func(a *Analyzer) {
		a.log = l
	}
}

func WithWavelet(name string) Option {
	return func(a *Analyzer) {
		a.wavelet = name
	}
}

func WithChirpParams(p detect.ChirpParams) Option {
	return func(a *Analyzer) {
		a.chirp = p
	}
}

func WithClickParams(p detect.ClickParams) Option {
	return func(a *Analyzer) {
		a.click = p
	}
}

// WithScorer replaces the scorer chosen by mode.
func WithScorer(s scoring.Scorer) Option {
	return func(a *Analyzer) {
		a.scorer = s
	}
}

func WithReader(fn ReadFunc) Option {
	return func(a *Analyzer) {
		a.read = fn
	}
}

// New builds an analyzer for a scoring mode ("" is interestingness).
func New(mode string, opts ...Option) (*Analyzer, error) {
	scorer, err := scoring.New(mode)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		scorer:  scorer,
		wavelet: denoise.DefaultWavelet,
		chirp:   detect.DefaultChirpParams(),
		click:   detect.DefaultClickParams(),
		read:    audio.Read,
		log:     nopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if _, err := denoise.Wavelet(a.wavelet); err != nil {
		return nil, err
	}
	if err := a.chirp.Validate(); err != nil {
		return nil, fmt.Errorf("chirp params: %w", err)
	}
	if err := a.click.Validate(); err != nil {
		return nil, fmt.Errorf("click params: %w", err)
	}
	return a, nil
}

// Mode returns the canonical name of the scoring mode.
func (a *Analyzer) Mode() string {
	return a.scorer.Name()
}

// Analyze never fails: read, detection and scoring errors, and panics, all
// come back as a result with Error set and a zero score.
func (a *Analyzer) Analyze(ctx context.Context, path string) (res models.FileResult) {
	start := time.Now()
	res = models.FileResult{
		Path:     path,
		Filename: filepath.Base(path),
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Errorf("panic analysing %s: %v\n%s", path, r, debug.Stack())
			res = failed(res, fmt.Errorf("internal error: %v", r))
		}
		res.ElapsedMS = time.Since(start).Milliseconds()
	}()

	// Step 1: Read the recording
	sig, err := a.read(ctx, path)
	if err != nil {
		a.log.Warnf("Skipping %s: %v", res.Filename, err)
		return failed(res, err)
	}
	res.Duration = sig.Duration
	res.SampleRate = sig.SampleRate

	// Steps 2-6
	feats, err := a.Features(sig)
	if err != nil {
		a.log.Warnf("Analysis failed for %s: %v", res.Filename, err)
		return failed(res, err)
	}

	// Step 7: Score
	res.Features = *feats
	res.Score = a.scorer.Score(feats)

	a.log.Debugf("%s: score=%.1f chirps=%d trains=%d snr=%.1f dB",
		res.Filename, res.Score, len(feats.Chirps), len(feats.ClickTrains), feats.SNRDB)
	return res
}

// Features runs denoising and every detector on an in-memory signal.
func (a *Analyzer) Features(sig *audio.Signal) (*models.FileFeatures, error) {
	// Step 2: Denoise
	clean, err := denoise.Denoise(sig.Samples, denoise.WithWavelet(a.wavelet))
	if err != nil {
		return nil, fmt.Errorf("denoising failed: %w", err)
	}

	// Step 3: Chirps on the denoised signal
	chirps, err := detect.DetectChirps(clean, sig.SampleRate, a.chirp)
	if err != nil {
		return nil, fmt.Errorf("chirp detection failed: %w", err)
	}

	// Step 4: Clicks on the denoised signal
	clicks, err := detect.DetectClicks(clean, sig.SampleRate, a.click)
	if err != nil {
		return nil, fmt.Errorf("click detection failed: %w", err)
	}

	// Step 5: Band SNR on the raw signal, denoising would flatten the
	// reference band
	feats := &models.FileFeatures{
		Chirps:      chirps,
		ClickTrains: clicks.Trains,
		SNRDB:       features.SNR(sig.Samples, sig.SampleRate),
	}

	// Step 6: Extra descriptors the scorer asks for
	needs := a.scorer.Needs()
	if needs.Spectral {
		spectral, err := features.Spectral(clean, sig.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("spectral metrics failed: %w", err)
		}
		feats.Spectral = spectral
	}
	if needs.ClickPatterns {
		feats.Clicks = features.ClickPatterns(clicks.Clicks)
	}

	return feats, nil
}

func failed(res models.FileResult, err error) models.FileResult {
	msg := err.Error()
	res.Error = &msg
	res.Score = 0
	res.Features = models.FileFeatures{}
	return res
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
