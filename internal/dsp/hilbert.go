package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Envelope returns the magnitude of the analytic signal of x, computed with
// an FFT-domain Hilbert transform. The input is zero padded to a power of two.
func Envelope(x []float64) []float64 {
	n := len(x)
	if n < 2 {
		env := make([]float64, n)
		for i, v := range x {
			env[i] = math.Abs(v)
		}
		return env
	}
	size := NextPow2(n)
	padded := make([]float64, size)
	copy(padded, x)

	// one-sided spectrum, len size/2+1
	coeffs := fourier.NewFFT(size).Coefficients(nil, padded)

	analytic := make([]complex128, size)
	half := size / 2
	analytic[0] = coeffs[0]
	for k := 1; k < half; k++ {
		analytic[k] = 2 * coeffs[k]
	}
	analytic[half] = coeffs[half]

	seq := fourier.NewCmplxFFT(size).Sequence(nil, analytic)

	env := make([]float64, n)
	scale := 1 / float64(size)
	for i := range env {
		env[i] = cmplx.Abs(seq[i]) * scale
	}
	return env
}
