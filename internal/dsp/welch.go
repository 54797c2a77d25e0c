package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"
)

// Band is a closed frequency interval in Hz.
type Band struct {
	Lo, Hi float64
}

// Contains reports whether f lies in the band.
func (b Band) Contains(f float64) bool {
	return f >= b.Lo && f <= b.Hi
}

// WelchPSD estimates the one-sided power spectral density of x with Hann
// segments of nfft samples at 50% overlap.
func WelchPSD(x []float64, sampleRate float64, nfft int) (psd, freqs []float64) {
	return spectral.Pwelch(x, sampleRate, &spectral.PwelchOptions{
		NFFT:     nfft,
		Noverlap: nfft / 2,
		Window:   window.Hann,
	})
}

// BandPower returns the mean PSD inside band, and false when no bin falls
// inside it.
func BandPower(psd, freqs []float64, band Band) (float64, bool) {
	sum, n := 0.0, 0
	for i, f := range freqs {
		if band.Contains(f) {
			sum += psd[i]
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// BandSNR compares the mean PSD of a feature band against a reference noise
// band, in dB. It returns 0 when either band is outside the spectrum.
func BandSNR(x []float64, sampleRate float64, signal, noise Band, nfft int) float64 {
	if len(x) == 0 || sampleRate <= 0 {
		return 0
	}
	psd, freqs := WelchPSD(x, sampleRate, nfft)
	sp, ok := BandPower(psd, freqs, signal)
	if !ok {
		return 0
	}
	np, ok := BandPower(psd, freqs, noise)
	if !ok {
		return 0
	}
	snr := 10 * math.Log10((sp+dbFloor)/(np+dbFloor))
	if math.IsNaN(snr) || math.IsInf(snr, 0) {
		return 0
	}
	return snr
}
