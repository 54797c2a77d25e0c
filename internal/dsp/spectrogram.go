package dsp

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// dbFloor keeps log10 finite on silent cells.
const dbFloor = 1e-12

// Spectrogram is a one-sided power spectrogram, indexed Power[frame][bin].
type Spectrogram struct {
	Frequencies []float64
	Times       []float64
	Power       [][]float64
}

// NumFrames returns the number of time frames.
func (s *Spectrogram) NumFrames() int { return len(s.Times) }

// NumBins returns the number of frequency bins.
func (s *Spectrogram) NumBins() int { return len(s.Frequencies) }

// BinWidth returns the frequency resolution in Hz.
func (s *Spectrogram) BinWidth() float64 {
	if len(s.Frequencies) < 2 {
		return 0
	}
	return s.Frequencies[1] - s.Frequencies[0]
}

// DB returns a copy of the power matrix in decibels.
func (s *Spectrogram) DB() [][]float64 {
	out := make([][]float64, len(s.Power))
	for i, row := range s.Power {
		out[i] = make([]float64, len(row))
		for j, p := range row {
			out[i][j] = ToDB(p)
		}
	}
	return out
}

// ToDB converts a power value to decibels.
func ToDB(p float64) float64 {
	return 10 * math.Log10(p+dbFloor)
}

// PowerSpectrum converts a complex spectrum into one-sided power (|X|^2),
// keeping bins 0..n/2 inclusive.
func PowerSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum)/2 + 1
	if half > len(spectrum) {
		half = len(spectrum)
	}
	pow := make([]float64, half)
	for i := 0; i < half; i++ {
		a := cmplx.Abs(spectrum[i])
		pow[i] = a * a
	}
	return pow
}

// STFT computes a Hann-windowed power spectrogram with the given segment
// length and hop. Frame times are segment centres.
func STFT(samples []float64, sampleRate float64, nperseg, hop int) (*Spectrogram, error) {
	if nperseg <= 0 || hop <= 0 {
		return nil, errors.New("segment length and hop must be positive")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(samples) < nperseg {
		return nil, ErrTooShort
	}

	win := window.Hann(nperseg)
	nFrames := 1 + (len(samples)-nperseg)/hop

	spec := &Spectrogram{
		Frequencies: make([]float64, nperseg/2+1),
		Times:       make([]float64, 0, nFrames),
		Power:       make([][]float64, 0, nFrames),
	}
	for k := range spec.Frequencies {
		spec.Frequencies[k] = float64(k) * sampleRate / float64(nperseg)
	}

	frame := make([]float64, nperseg)
	for start := 0; start+nperseg <= len(samples); start += hop {
		for i := 0; i < nperseg; i++ {
			frame[i] = samples[start+i] * win[i]
		}
		spec.Power = append(spec.Power, PowerSpectrum(fft.FFTReal(frame)))
		spec.Times = append(spec.Times, (float64(start)+float64(nperseg)/2)/sampleRate)
	}
	return spec, nil
}

// ComputeSpectrogram is the helper the detectors use: overlap is a fraction
// in [0,1) of nperseg.
func ComputeSpectrogram(samples []float64, sampleRate float64, nperseg int, overlap float64) (*Spectrogram, error) {
	if overlap < 0 || overlap >= 1 {
		return nil, errors.New("overlap must be in [0,1)")
	}
	hop := int(math.Round(float64(nperseg) * (1 - overlap)))
	if hop < 1 {
		hop = 1
	}
	return STFT(samples, sampleRate, nperseg, hop)
}
