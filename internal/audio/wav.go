package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ReadWAV decodes a PCM WAV file, averaging channels to mono and scaling to
// [-1, 1). Non-PCM WAV (float, ADPCM) goes through ffmpeg.
func ReadWAV(ctx context.Context, path string) (*Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, decodeError(path, err)
	}
	d := wav.NewDecoder(f)
	valid := d.IsValidFile()
	format := d.WavAudioFormat
	f.Close()

	if !valid {
		return nil, decodeError(path, errors.New("not a valid WAV file"))
	}
	if format != wavFormatPCM {
		return readTranscoded(ctx, path)
	}

	sig, err := readPCM(path)
	if err != nil {
		return nil, decodeError(path, err)
	}
	return sig, nil
}

func readPCM(path string) (*Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if d.SampleRate == 0 {
		return nil, errors.New("sample rate is zero")
	}
	bitDepth := int(d.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	scale := math.Ldexp(1, bitDepth-1)
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = float64(sum) / float64(channels) / scale
	}

	fs := float64(d.SampleRate)
	return &Signal{
		Samples:    samples,
		SampleRate: fs,
		Duration:   float64(frames) / fs,
	}, nil
}

// WriteWAV writes mono samples in [-1, 1] as 16-bit PCM. Values outside the
// range are clipped.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	data := make([]int, len(samples))
	for i, v := range samples {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * math.MaxInt16))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}

// Normalize removes the mean and scales the peak to 1. A silent input comes
// back as zeros.
func Normalize(samples []float64) []float64 {
	out := make([]float64, len(samples))
	if len(samples) == 0 {
		return out
	}
	mean := 0.0
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))

	peak := 0.0
	for i, v := range samples {
		out[i] = v - mean
		peak = math.Max(peak, math.Abs(out[i]))
	}
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}
