package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/dolphain/pkg/models"
)

// earsBytes builds n EARS records whose samples count up from 0 and whose
// header carries the given tick counter bytes.
func earsBytes(n int, ticks [6]byte) []byte {
	data := make([]byte, n*EARSRecordSize)
	v := 0
	for r := 0; r < n; r++ {
		rec := data[r*EARSRecordSize:]
		copy(rec[6:12], ticks[:])
		for j := 0; j < EARSSamplesPerRecord; j++ {
			binary.BigEndian.PutUint16(rec[EARSHeaderSize+2*j:], uint16(int16(v-300)))
			v++
		}
	}
	return data
}

func TestIsEARSPath(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"71621DC7.190", true},
		{"/data/Buoy171/72146FB7.171", true},
		{"clip.wav", false},
		{"clip.19", false},
		{"clip.1a0", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsEARSPath(tt.path); got != tt.expected {
			t.Errorf("IsEARSPath(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestDecodeEARS(t *testing.T) {
	// 14 in the top byte cancels the offset, 32000 ticks is one second
	ticks := [6]byte{14, 0, 0, 0, 0x7D, 0x00}
	data := earsBytes(3, ticks)
	// trailing partial record is ignored
	data = append(data, make([]byte, 100)...)

	sig, err := DecodeEARS("71621DC7.190", data)
	if err != nil {
		t.Fatalf("DecodeEARS failed: %v", err)
	}

	if len(sig.Samples) != 3*EARSSamplesPerRecord {
		t.Fatalf("Expected %d samples, got %d", 3*EARSSamplesPerRecord, len(sig.Samples))
	}
	if sig.Samples[0] != -300 || sig.Samples[749] != 449 {
		t.Errorf("unexpected sample values %f, %f", sig.Samples[0], sig.Samples[749])
	}
	if sig.SampleRate != EARSSampleRate {
		t.Errorf("Expected sample rate %d, got %f", EARSSampleRate, sig.SampleRate)
	}
	if math.Abs(sig.Duration-750.0/192000) > 1e-12 {
		t.Errorf("unexpected duration %f", sig.Duration)
	}

	want := time.Date(2015, 10, 27, 0, 0, 1, 0, time.UTC)
	if !sig.StartTime.Equal(want) {
		t.Errorf("Expected start %v, got %v", want, sig.StartTime)
	}

	other, err := DecodeEARS("0A000001.130", data)
	if err != nil {
		t.Fatalf("DecodeEARS failed: %v", err)
	}
	want = time.Date(2000, 1, 1, 0, 0, 1, 0, time.UTC)
	if !other.StartTime.Equal(want) {
		t.Errorf("Expected start %v, got %v", want, other.StartTime)
	}
}

func TestDecodeEARSEmpty(t *testing.T) {
	if _, err := DecodeEARS("7.190", make([]byte, EARSRecordSize-1)); !errors.Is(err, ErrEmptyRecording) {
		t.Errorf("Expected ErrEmptyRecording, got %v", err)
	}
}

func TestReadEARSFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "71621DC7.190")
	if err := os.WriteFile(path, earsBytes(4, [6]byte{14}), 0o644); err != nil {
		t.Fatal(err)
	}

	sig, err := Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(sig.Samples) != 1000 {
		t.Errorf("Expected 1000 samples, got %d", len(sig.Samples))
	}
	if !sig.EndTime().After(sig.StartTime) {
		t.Error("end time should follow start time")
	}

	empty := filepath.Join(dir, "70000000.190")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = Read(context.Background(), empty)
	var de *models.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if de.Path != empty {
		t.Errorf("DecodeError path %q, expected %q", de.Path, empty)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")

	fs := 48000
	in := make([]float64, fs/10)
	for i := range in {
		in[i] = 0.5 * math.Sin(2*math.Pi*1000*float64(i)/float64(fs))
	}
	if err := WriteWAV(path, in, fs); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	sig, err := Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if sig.SampleRate != float64(fs) {
		t.Errorf("Expected sample rate %d, got %f", fs, sig.SampleRate)
	}
	if len(sig.Samples) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(sig.Samples))
	}
	for i := range in {
		if math.Abs(sig.Samples[i]-in[i]) > 2.0/32768 {
			t.Fatalf("sample %d: got %f, expected %f", i, sig.Samples[i], in[i])
		}
	}
	if !sig.StartTime.IsZero() {
		t.Error("WAV should carry no start time")
	}
}

func TestReadStereoWAVDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 8000},
		Data:           []int{1000, 3000, -2000, 0, 4096, 4096},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	sig, err := Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := []float64{2000.0 / 32768, -1000.0 / 32768, 4096.0 / 32768}
	if len(sig.Samples) != len(want) {
		t.Fatalf("Expected %d frames, got %d", len(want), len(sig.Samples))
	}
	for i := range want {
		if math.Abs(sig.Samples[i]-want[i]) > 1e-12 {
			t.Errorf("frame %d: got %f, expected %f", i, sig.Samples[i], want[i])
		}
	}
}

func TestReadInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("INVALID HEADER DATA"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths := []string{
		garbage,
		filepath.Join(dir, "missing.wav"),
		filepath.Join(dir, "missing.190"),
		filepath.Join(dir, "missing.mp3"),
	}
	for _, p := range paths {
		_, err := Read(context.Background(), p)
		var de *models.DecodeError
		if !errors.As(err, &de) {
			t.Errorf("Read(%s): expected DecodeError, got %v", filepath.Base(p), err)
		}
	}
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Read(ctx, "anything.wav")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	out := Normalize([]float64{1, 3, 5})
	want := []float64{-1, 0, 1}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("Normalize[%d] = %f, expected %f", i, out[i], want[i])
		}
	}
	for _, v := range Normalize([]float64{2, 2, 2}) {
		if v != 0 {
			t.Errorf("constant input should normalize to zeros, got %f", v)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := map[string]string{
		"a.190": "ears",
		"a.WAV": "wav",
		"a.mp3": "ffmpeg",
	}
	for path, expected := range tests {
		if got := Format(path); got != expected {
			t.Errorf("Format(%q) = %q, expected %q", path, got, expected)
		}
	}
}
