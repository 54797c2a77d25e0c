// Package export renders showcase artifacts for the best files of a run:
// a spectrogram PNG and a denoised WAV clip per file.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/dolphain/internal/audio"
	"github.com/himanishpuri/dolphain/internal/batch"
	"github.com/himanishpuri/dolphain/internal/denoise"
	"github.com/himanishpuri/dolphain/pkg/models"
	"github.com/himanishpuri/dolphain/pkg/utils"
)

const (
	DefaultWidth  = 2048
	DefaultHeight = 512
)

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// ReadFunc loads one recording.
type ReadFunc func(ctx context.Context, path string) (*audio.Signal, error)

// Artifact is what was written for one ranked file.
type Artifact struct {
	Rank  int
	Path  string
	Score float64
	PNG   string
	WAV   string
}

type Exporter struct {
	width   int
	height  int
	clips   bool
	wavelet string
	read    ReadFunc
	log     Logger
}

type Option func(*Exporter)

func WithSize(width, height int) Option {
	return func(e *Exporter) {
		e.width = width
		e.height = height
	}
}

// WithoutClips only renders spectrograms.
func WithoutClips() Option {
	return func(e *Exporter) {
		e.clips = false
	}
}

func WithWavelet(name string) Option {
	return func(e *Exporter) {
		e.wavelet = name
	}
}

func WithReader(fn ReadFunc) Option {
	return func(e *Exporter) {
		e.read = fn
	}
}

func WithLogger(l Logger) Option {
	return func(e *Exporter) {
		e.log = l
	}
}

func New(opts ...Option) (*Exporter, error) {
	e := &Exporter{
		width:   DefaultWidth,
		height:  DefaultHeight,
		clips:   true,
		wavelet: denoise.DefaultWavelet,
		read:    audio.Read,
		log:     nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.width <= 0 || e.height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", e.width, e.height)
	}
	if _, err := denoise.Wavelet(e.wavelet); err != nil {
		return nil, err
	}
	return e, nil
}

// ExportResults reads a results.json and exports its top n successful files
// into outDir. Files that fail to export are logged and skipped.
func (e *Exporter) ExportResults(ctx context.Context, resultsPath, outDir string, n int) ([]Artifact, error) {
	data, err := os.ReadFile(resultsPath)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	doc, err := batch.ReadResults(data)
	if err != nil {
		return nil, err
	}
	return e.Export(ctx, TopResults(doc.Results, n), outDir)
}

// Export writes artifacts for the given results in order, ranking them from 1.
func (e *Exporter) Export(ctx context.Context, results []models.FileResult, outDir string) ([]Artifact, error) {
	if err := utils.MakeDir(outDir); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	var (
		artifacts []Artifact
		errs      []error
	)
	for i, r := range results {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}
		a, err := e.exportOne(ctx, i+1, r, outDir)
		if err != nil {
			e.log.Warnf("Export of %s failed: %v", r.Path, err)
			errs = append(errs, err)
			continue
		}
		e.log.Infof("Exported #%d %s", a.Rank, a.PNG)
		artifacts = append(artifacts, a)
	}
	if len(artifacts) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return artifacts, nil
}

func (e *Exporter) exportOne(ctx context.Context, rank int, r models.FileResult, outDir string) (Artifact, error) {
	// Step 1: Load and clean the recording
	sig, err := e.read(ctx, r.Path)
	if err != nil {
		return Artifact{}, err
	}
	clean, err := denoise.Denoise(sig.Samples, denoise.WithWavelet(e.wavelet))
	if err != nil {
		return Artifact{}, err
	}

	a := Artifact{Rank: rank, Path: r.Path, Score: r.Score}
	base := fmt.Sprintf("%02d_%s", rank, sanitize(filepath.Base(r.Path)))

	// Step 2: Spectrogram of the denoised signal
	a.PNG = filepath.Join(outDir, base+".png")
	if err := RenderSpectrogram(a.PNG, clean, sig.SampleRate, e.width, e.height); err != nil {
		return Artifact{}, err
	}

	// Step 3: Listenable clip
	if e.clips {
		a.WAV = filepath.Join(outDir, base+".wav")
		if err := audio.WriteWAV(a.WAV, audio.Normalize(clean), int(sig.SampleRate)); err != nil {
			return Artifact{}, fmt.Errorf("writing clip: %w", err)
		}
	}
	return a, nil
}

// RenderSpectrogram draws a Hamming-windowed FFT magnitude spectrogram of
// samples onto a black width x height canvas and saves it as PNG.
func RenderSpectrogram(path string, samples []float64, sampleRate float64, width, height int) error {
	if len(samples) == 0 {
		return errors.New("no samples to render")
	}
	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	spectrogram.Drawfft(
		img,
		audio.Normalize(samples),
		uint32(sampleRate),
		uint32(height), // bins
		false,          // Hamming window
		false,          // FFT, not DFT
		true,           // magnitude
		false,          // linear scale
	)

	if err := spectrogram.SavePng(img, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// TopResults returns the n best successful results, score descending with
// ties broken by path. n <= 0 keeps them all.
func TopResults(results []models.FileResult, n int) []models.FileResult {
	var ok []models.FileResult
	for _, r := range results {
		if !r.Failed() {
			ok = append(ok, r)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool {
		if ok[i].Score != ok[j].Score {
			return ok[i].Score > ok[j].Score
		}
		return ok[i].Path < ok[j].Path
	})
	if n > 0 && len(ok) > n {
		ok = ok[:n]
	}
	return ok
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}
