package denoise

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/himanishpuri/dolphain/pkg/models"
)

func TestWaveletDB2(t *testing.T) {
	h, err := Wavelet("db2")
	if err != nil {
		t.Fatalf("Wavelet(db2): %v", err)
	}
	expected := []float64{-0.12940952255092145, 0.22414386804185735, 0.836516303737469, 0.48296291314469025}
	if len(h) != len(expected) {
		t.Fatalf("Expected %d taps, got %d", len(expected), len(h))
	}
	for i := range expected {
		if math.Abs(h[i]-expected[i]) > 1e-9 {
			t.Errorf("tap %d: got %.12f, expected %.12f", i, h[i], expected[i])
		}
	}
}

func TestWaveletHaar(t *testing.T) {
	h, err := Wavelet("haar")
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 2 || math.Abs(h[0]-1/math.Sqrt2) > 1e-12 || math.Abs(h[1]-1/math.Sqrt2) > 1e-12 {
		t.Errorf("haar = %v", h)
	}
}

func TestWaveletOrthonormal(t *testing.T) {
	for order := 1; order <= MaxOrder; order++ {
		h, err := daubechies(order)
		if err != nil {
			t.Fatalf("db%d: %v", order, err)
		}
		if len(h) != 2*order {
			t.Fatalf("db%d: expected %d taps, got %d", order, 2*order, len(h))
		}
		// sum h[n] h[n+2k] = delta(k)
		for shift := 0; shift < len(h); shift += 2 {
			dot := 0.0
			for n := 0; n+shift < len(h); n++ {
				dot += h[n] * h[n+shift]
			}
			want := 0.0
			if shift == 0 {
				want = 1
			}
			if math.Abs(dot-want) > 1e-6 {
				t.Errorf("db%d shift %d: inner product %g, want %g", order, shift, dot, want)
			}
		}
	}
}

func TestWaveletUnsupported(t *testing.T) {
	for _, name := range []string{"sym4", "db0", "db21", "dbx", ""} {
		if _, err := Wavelet(name); err == nil {
			t.Errorf("Wavelet(%q) should fail", name)
		}
	}
}

func TestMaxLevel(t *testing.T) {
	tests := []struct {
		n, filterLen, expected int
	}{
		{1000, 40, 4},
		{1024, 2, 10},
		{10, 40, 0},
		{384000, 40, 13},
	}
	for _, tt := range tests {
		if got := MaxLevel(tt.n, tt.filterLen); got != tt.expected {
			t.Errorf("MaxLevel(%d, %d) = %d, expected %d", tt.n, tt.filterLen, got, tt.expected)
		}
	}
}

func TestPerfectReconstruction(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	x := make([]float64, 1001)
	for i := range x {
		x[i] = r.NormFloat64()
	}

	tests := []struct {
		wavelet string
		tol     float64
	}{
		{"db1", 1e-12},
		{"db4", 1e-9},
		{"db20", 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.wavelet, func(t *testing.T) {
			h, err := Wavelet(tt.wavelet)
			if err != nil {
				t.Fatal(err)
			}
			levels := MaxLevel(len(x), len(h))
			rec := Waverec(Wavedec(x, h, levels), h)
			if len(rec) < len(x) {
				t.Fatalf("reconstruction too short: %d", len(rec))
			}
			for i := range x {
				if math.Abs(rec[i]-x[i]) > tt.tol {
					t.Fatalf("sample %d: got %f, expected %f", i, rec[i], x[i])
				}
			}
		})
	}
}

func TestDenoiseZeroSignal(t *testing.T) {
	x := make([]float64, 4096)
	out, thr, err := DenoiseWithThreshold(x)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	if thr != 0 {
		t.Errorf("expected zero threshold, got %f", thr)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %g, expected 0", i, v)
		}
	}
}

func TestDenoiseShortSignalUnchanged(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	out, err := Denoise(x)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	if len(out) != len(x) {
		t.Fatalf("length changed: %d", len(out))
	}
	for i := range x {
		if out[i] != x[i] {
			t.Errorf("sample %d changed: %f", i, out[i])
		}
	}
	out[0] = 99
	if x[0] != 1 {
		t.Error("output aliases the input")
	}
}

func TestDenoiseNonFinite(t *testing.T) {
	x := make([]float64, 4096)
	x[10] = math.NaN()

	_, err := Denoise(x)
	var detErr *models.DetectionError
	if !errors.As(err, &detErr) {
		t.Fatalf("expected DetectionError, got %v", err)
	}
	if detErr.Stage != "denoise" {
		t.Errorf("unexpected stage %q", detErr.Stage)
	}
}

func TestDenoiseWhiteNoise(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	x := make([]float64, 16384)
	for i := range x {
		x[i] = r.NormFloat64()
	}

	out, thr, err := DenoiseWithThreshold(x)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	if len(out) != len(x) {
		t.Fatalf("length changed: %d", len(out))
	}
	// sigma ~1, so T ~ sqrt(2 ln 16384)
	want := math.Sqrt(2 * math.Log(16384))
	if math.Abs(thr-want)/want > 0.1 {
		t.Errorf("threshold %f, expected about %f", thr, want)
	}
	if got := rmsOf(out); got > 0.2 {
		t.Errorf("noise survived denoising: rms %f", got)
	}
}

func TestDenoiseHardKeepsTone(t *testing.T) {
	const fs = 48000.0
	r := rand.New(rand.NewPCG(3, 4))

	clean := make([]float64, 16384)
	noisy := make([]float64, len(clean))
	for i := range clean {
		clean[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / fs)
		noisy[i] = clean[i] + 0.3*r.NormFloat64()
	}

	out, err := Denoise(noisy, WithWavelet("db8"), WithHardThreshold())
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}

	before := mse(noisy, clean)
	after := mse(out, clean)
	if after > 0.5*before {
		t.Errorf("denoising did not help: mse %f -> %f", before, after)
	}
}

func TestDenoiseFixedThreshold(t *testing.T) {
	x := make([]float64, 2048)
	for i := range x {
		x[i] = math.Sin(float64(i) / 10)
	}
	_, thr, err := DenoiseWithThreshold(x, WithThreshold(0.5), WithWavelet("db4"))
	if err != nil {
		t.Fatal(err)
	}
	if thr != 0.5 {
		t.Errorf("expected threshold 0.5, got %f", thr)
	}

	if _, _, err := DenoiseWithThreshold(x, WithThreshold(-1)); err == nil {
		t.Error("negative threshold should fail")
	}
}

func rmsOf(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s / float64(len(x)))
}

func mse(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s / float64(len(a))
}
