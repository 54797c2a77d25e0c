package features

import "github.com/himanishpuri/dolphain/internal/dsp"

// SNR bands and resolution. The feature band holds most whistle energy and
// the reference band sits just below it.
var (
	FeatureBand = dsp.Band{Lo: 5000, Hi: 25000}
	NoiseBand   = dsp.Band{Lo: 1000, Hi: 5000}
)

// SNRNFFT is the Welch segment length for the band SNR.
const SNRNFFT = 8192

// SNR returns the feature-to-reference band SNR in dB, or 0 when either band
// lies outside the spectrum.
func SNR(samples []float64, sampleRate float64) float64 {
	return dsp.BandSNR(samples, sampleRate, FeatureBand, NoiseBand, SNRNFFT)
}
