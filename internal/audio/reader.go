package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/dolphain/pkg/models"
)

// Signal is a mono recording held in memory as float64 samples.
type Signal struct {
	Samples    []float64
	SampleRate float64
	Duration   float64
	// StartTime is the recorder clock at the first sample. Zero when the
	// format carries none.
	StartTime time.Time
}

// EndTime is StartTime plus the duration, or zero without a start time.
func (s *Signal) EndTime() time.Time {
	if s.StartTime.IsZero() {
		return time.Time{}
	}
	return s.StartTime.Add(time.Duration(s.Duration * float64(time.Second)))
}

// Format names the container a path will be read as.
func Format(path string) string {
	switch {
	case IsEARSPath(path):
		return "ears"
	case strings.EqualFold(filepath.Ext(path), ".wav"):
		return "wav"
	default:
		return "ffmpeg"
	}
}

// Read loads a recording as mono float64 samples. EARS files (numeric
// extensions) and PCM WAV are decoded natively, anything else is transcoded
// with ffmpeg first. All failures are *models.DecodeError.
func Read(ctx context.Context, path string) (*Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, decodeError(path, err)
	}

	var (
		sig *Signal
		err error
	)
	switch Format(path) {
	case "ears":
		sig, err = ReadEARS(path)
	case "wav":
		sig, err = ReadWAV(ctx, path)
	default:
		sig, err = readTranscoded(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	if len(sig.Samples) == 0 {
		return nil, decodeError(path, errors.New("no samples"))
	}
	return sig, nil
}

// readTranscoded converts path to a temporary mono WAV and decodes that.
func readTranscoded(ctx context.Context, path string) (*Signal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, decodeError(path, err)
	}

	tmpDir, err := os.MkdirTemp("", "dolphain-transcode-*")
	if err != nil {
		return nil, decodeError(path, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tmpDir)

	wavPath, err := ConvertToMonoWAV(ctx, path, tmpDir, ConvertWAVConfig{})
	if err != nil {
		return nil, decodeError(path, err)
	}

	sig, err := readPCM(wavPath)
	if err != nil {
		return nil, decodeError(path, err)
	}
	return sig, nil
}

func decodeError(path string, err error) error {
	var de *models.DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &models.DecodeError{Path: path, Err: err}
}
