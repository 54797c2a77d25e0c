package denoise

import (
	"errors"
	"math"

	"github.com/himanishpuri/dolphain/internal/dsp"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// DefaultWavelet is the filter used when no option overrides it.
const DefaultWavelet = "db20"

// madScale converts a median absolute deviation into a Gaussian sigma.
const madScale = 0.6744897501960817

// Config holds the denoiser settings.
type Config struct {
	Wavelet   string
	Hard      bool
	Threshold float64 // fixed threshold; 0 means estimate it
}

// Option configures Denoise.
type Option func(*Config)

// WithWavelet selects the Daubechies filter ("db1".."db20").
func WithWavelet(name string) Option {
	return func(c *Config) {
		c.Wavelet = name
	}
}

// WithHardThreshold zeroes small coefficients without shrinking the rest.
func WithHardThreshold() Option {
	return func(c *Config) {
		c.Hard = true
	}
}

// WithThreshold skips the noise estimate and uses t directly.
func WithThreshold(t float64) Option {
	return func(c *Config) {
		c.Threshold = t
	}
}

// Denoise applies VisuShrink wavelet denoising and returns a new signal of
// the same length with the mean removed.
func Denoise(samples []float64, opts ...Option) ([]float64, error) {
	out, _, err := DenoiseWithThreshold(samples, opts...)
	return out, err
}

// DenoiseWithThreshold is Denoise that also reports the threshold applied.
// Signals shorter than the wavelet support come back unchanged with a zero
// threshold.
func DenoiseWithThreshold(samples []float64, opts ...Option) ([]float64, float64, error) {
	cfg := Config{Wavelet: DefaultWavelet}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !dsp.AllFinite(samples) {
		return nil, 0, &models.DetectionError{Stage: "denoise", Err: errors.New("non-finite samples")}
	}
	if cfg.Threshold < 0 || math.IsNaN(cfg.Threshold) {
		return nil, 0, &models.DetectionError{Stage: "denoise", Err: errors.New("threshold must be non-negative")}
	}

	h, err := Wavelet(cfg.Wavelet)
	if err != nil {
		return nil, 0, &models.DetectionError{Stage: "denoise", Err: err}
	}

	n := len(samples)
	levels := MaxLevel(n, len(h))
	if n < len(h) || levels < 1 {
		out := make([]float64, n)
		copy(out, samples)
		return out, 0, nil
	}

	x := dsp.RemoveMean(samples)
	coeffs := Wavedec(x, h, levels)

	// Step 1: estimate the threshold from the finest detail band
	t := cfg.Threshold
	if t == 0 {
		finest := coeffs[len(coeffs)-1]
		abs := make([]float64, len(finest))
		for i, v := range finest {
			abs[i] = math.Abs(v)
		}
		sigma := dsp.Median(abs) / madScale
		t = sigma * math.Sqrt(2*math.Log(float64(n)))
	}

	// Step 2: shrink the detail coefficients, approximation untouched
	for _, d := range coeffs[1:] {
		for i, v := range d {
			d[i] = shrink(v, t, cfg.Hard)
		}
	}

	// Step 3: reconstruct and trim padding
	rec := Waverec(coeffs, h)
	out := make([]float64, n)
	copy(out, rec[:n])
	if !dsp.AllFinite(out) {
		return nil, 0, &models.DetectionError{Stage: "denoise", Err: errors.New("reconstruction produced non-finite samples")}
	}
	return out, t, nil
}

func shrink(v, t float64, hard bool) float64 {
	if hard {
		if math.Abs(v) > t {
			return v
		}
		return 0
	}
	mag := math.Abs(v) - t
	if mag <= 0 {
		return 0
	}
	return math.Copysign(mag, v)
}

// MaxLevel is the deepest useful decomposition for n samples and a filter of
// length filterLen: floor(log2(n / (filterLen-1))).
func MaxLevel(n, filterLen int) int {
	if filterLen < 2 || n < filterLen-1 {
		return 0
	}
	return int(math.Floor(math.Log2(float64(n) / float64(filterLen-1))))
}

// Wavedec runs a periodised multi-level DWT. The signal is extended to a
// multiple of 2^levels by repeating its last sample. The result is
// [cA_levels, cD_levels, ..., cD_1].
func Wavedec(x, h []float64, levels int) [][]float64 {
	block := 1 << levels
	size := (len(x) + block - 1) / block * block
	a := make([]float64, size)
	copy(a, x)
	for i := len(x); i < size; i++ {
		a[i] = x[len(x)-1]
	}

	g := qmf(h)
	details := make([][]float64, 0, levels)
	for l := 0; l < levels; l++ {
		var d []float64
		a, d = analyze(a, h, g)
		details = append(details, d)
	}

	out := make([][]float64, 0, levels+1)
	out = append(out, a)
	for i := len(details) - 1; i >= 0; i-- {
		out = append(out, details[i])
	}
	return out
}

// Waverec inverts Wavedec. The output has the padded length.
func Waverec(coeffs [][]float64, h []float64) []float64 {
	g := qmf(h)
	a := coeffs[0]
	for _, d := range coeffs[1:] {
		a = synthesize(a, d, h, g)
	}
	return a
}

// analyze computes one periodised level:
// a[k] = sum h[n] x[(2k+n) mod N], d[k] = sum g[n] x[(2k+n) mod N].
func analyze(x, h, g []float64) (a, d []float64) {
	n := len(x)
	half := n / 2
	a = make([]float64, half)
	d = make([]float64, half)
	for k := 0; k < half; k++ {
		var sa, sd float64
		for i := range h {
			v := x[(2*k+i)%n]
			sa += h[i] * v
			sd += g[i] * v
		}
		a[k], d[k] = sa, sd
	}
	return a, d
}

// synthesize is the transpose of analyze, which is its inverse for an
// orthonormal filter pair.
func synthesize(a, d, h, g []float64) []float64 {
	n := 2 * len(a)
	x := make([]float64, n)
	for k := range a {
		for i := range h {
			j := (2*k + i) % n
			x[j] += h[i]*a[k] + g[i]*d[k]
		}
	}
	return x
}
