package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-audio/wav"
)

// ErrFFprobeMissing is returned by Probe for non-native formats when
// ffprobe is not installed.
var ErrFFprobeMissing = errors.New("ffprobe not found in PATH")

// Metadata describes a recording without decoding its samples.
type Metadata struct {
	Filename    string
	Format      string
	SizeBytes   int64
	DurationSec float64
	SampleRate  int
	Channels    int
	BitDepth    int
	Samples     int64
	// Records is the number of complete EARS records.
	Records   int
	StartTime time.Time
	Title     string
	Encoder   string
}

// EndTime is StartTime plus the duration, or zero without a start time.
func (m *Metadata) EndTime() time.Time {
	if m.StartTime.IsZero() {
		return time.Time{}
	}
	return m.StartTime.Add(time.Duration(m.DurationSec * float64(time.Second)))
}

// Probe reads just enough of a file to describe it. EARS and WAV headers
// are parsed directly; anything else is handed to ffprobe.
func Probe(ctx context.Context, path string) (*Metadata, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, decodeError(path, err)
	}

	var meta *Metadata
	switch Format(path) {
	case "ears":
		meta, err = probeEARS(path, st.Size())
	case "wav":
		meta, err = probeWAV(path)
	default:
		meta, err = probeFFmpeg(ctx, path)
	}
	if err != nil {
		return nil, decodeError(path, err)
	}
	meta.Filename = filepath.Base(path)
	meta.SizeBytes = st.Size()
	return meta, nil
}

func probeEARS(path string, size int64) (*Metadata, error) {
	records := int(size / EARSRecordSize)
	if records == 0 {
		return nil, fmt.Errorf("ears: %w (%d bytes)", ErrEmptyRecording, size)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, EARSHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("reading first record header: %w", err)
	}

	samples := int64(records) * EARSSamplesPerRecord
	return &Metadata{
		Format:      "ears",
		DurationSec: float64(samples) / EARSSampleRate,
		SampleRate:  EARSSampleRate,
		Channels:    1,
		BitDepth:    16,
		Samples:     samples,
		Records:     records,
		StartTime:   earsTimestamp(filepath.Base(path), header),
	}, nil
}

func probeWAV(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	// the RIFF size covers every chunk, so count frames from the data chunk
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("locating PCM data: %w", err)
	}
	frameSize := int(d.NumChans) * int(d.BitDepth) / 8
	if frameSize == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("invalid WAV format: %d channels, %d bits, %d Hz", d.NumChans, d.BitDepth, d.SampleRate)
	}
	samples := int64(d.PCMSize / frameSize)

	return &Metadata{
		Format:      "wav",
		DurationSec: float64(samples) / float64(d.SampleRate),
		SampleRate:  int(d.SampleRate),
		Channels:    int(d.NumChans),
		BitDepth:    int(d.BitDepth),
		Samples:     samples,
	}, nil
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Format   string            `json:"format_name"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType     string `json:"codec_type"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	BitsPerSample int    `json:"bits_per_sample"`
}

func (p *ffprobeOutput) firstAudioStream() *ffprobeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

func probeFFmpeg(ctx context.Context, path string) (*Metadata, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, ErrFFprobeMissing
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseFFprobe(out)
}

func parseFFprobe(out []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("decoding ffprobe output: %w", err)
	}

	stream := probe.firstAudioStream()
	if stream == nil {
		return nil, errors.New("no audio stream found")
	}

	duration, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	sampleRate, _ := strconv.Atoi(stream.SampleRate)

	meta := &Metadata{
		Format:      probe.Format.Format,
		DurationSec: duration,
		SampleRate:  sampleRate,
		Channels:    stream.Channels,
		BitDepth:    stream.BitsPerSample,
		Samples:     int64(duration*float64(sampleRate) + 0.5),
	}
	if probe.Format.Tags != nil {
		meta.Title = probe.Format.Tags["title"]
		meta.Encoder = probe.Format.Tags["encoder"]
	}
	return meta, nil
}
