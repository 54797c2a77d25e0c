package dsp

import (
	"math"
	"testing"
)

func TestEnvelopeOfSine(t *testing.T) {
	// whole number of cycles in a power-of-two buffer
	x := sine(256, 4096, 4096, 0.5)

	env := Envelope(x)
	if len(env) != len(x) {
		t.Fatalf("Expected %d samples, got %d", len(x), len(env))
	}
	for i, v := range env {
		if math.Abs(v-0.5) > 1e-6 {
			t.Fatalf("sample %d: envelope %f, want 0.5", i, v)
		}
	}
}

func TestEnvelopeOfBurst(t *testing.T) {
	const fs = 96000.0
	x := make([]float64, 3000)
	for i := 1000; i < 1200; i++ {
		x[i] = math.Sin(2 * math.Pi * 20000 * float64(i) / fs)
	}

	env := Envelope(x)

	if env[1100] < 0.8 {
		t.Errorf("envelope inside burst too low: %f", env[1100])
	}
	if env[500] > 0.05 || env[2500] > 0.05 {
		t.Errorf("envelope outside burst too high: %f %f", env[500], env[2500])
	}
}

func TestEnvelopeShortInput(t *testing.T) {
	if got := Envelope(nil); len(got) != 0 {
		t.Errorf("expected empty envelope, got %v", got)
	}
	if got := Envelope([]float64{-2}); len(got) != 1 || got[0] != 2 {
		t.Errorf("expected [2], got %v", got)
	}
}
