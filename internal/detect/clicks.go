package detect

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/dolphain/internal/dsp"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// ClickParams tune the click-train detector.
type ClickParams struct {
	BandLowHz           float64 `env:"BAND_LOW_HZ, default=20000" validate:"gt=0"`
	BandHighHz          float64 `env:"BAND_HIGH_HZ, default=150000" validate:"gtfield=BandLowHz"`
	FilterOrder         int     `env:"FILTER_ORDER, default=6" validate:"gte=6"`
	SmoothingS          float64 `env:"SMOOTHING_S, default=0.0005" validate:"gte=0"`
	ThresholdPercentile float64 `env:"THRESHOLD_PERCENTILE, default=99.5" validate:"gt=0,lte=100"`
	NoiseMultiplier     float64 `env:"NOISE_MULTIPLIER, default=8" validate:"gte=0"`
	MinProminenceFrac   float64 `env:"MIN_PROMINENCE_FRAC, default=0.3" validate:"gte=0"`
	ProminenceWindowS   float64 `env:"PROMINENCE_WINDOW_S, default=0.01" validate:"gte=0"`
	MaxWidthS           float64 `env:"MAX_WIDTH_S, default=0.002" validate:"gt=0"`
	MinSeparationS      float64 `env:"MIN_SEPARATION_S, default=0.002" validate:"gte=0"`
	DominanceWindowS    float64 `env:"DOMINANCE_WINDOW_S, default=0.004" validate:"gte=0"`
	DominancePercentile float64 `env:"DOMINANCE_PERCENTILE, default=90" validate:"gte=0,lte=100"`
	MinClicks           int     `env:"MIN_CLICKS, default=10" validate:"gte=2"`
	MaxICI              float64 `env:"MAX_ICI, default=0.05" validate:"gt=0"`
	MaxCV               float64 `env:"MAX_CV, default=0.5" validate:"gt=0"`
}

// DefaultClickParams returns the default detector tuning.
func DefaultClickParams() ClickParams {
	return ClickParams{
		BandLowHz:           20000,
		BandHighHz:          150000,
		FilterOrder:         6,
		SmoothingS:          0.0005,
		ThresholdPercentile: 99.5,
		NoiseMultiplier:     8,
		MinProminenceFrac:   0.3,
		ProminenceWindowS:   0.01,
		MaxWidthS:           0.002,
		MinSeparationS:      0.002,
		DominanceWindowS:    0.004,
		DominancePercentile: 90,
		MinClicks:           10,
		MaxICI:              0.05,
		MaxCV:               0.5,
	}
}

// MinFilterOrder is the lowest band-pass order that isolates the click band.
const MinFilterOrder = 6

// Validate rejects tunings that would fail on every recording.
func (p ClickParams) Validate() error {
	switch {
	case p.FilterOrder < MinFilterOrder || p.FilterOrder%2 != 0:
		return fmt.Errorf("filter order %d must be even and >= %d", p.FilterOrder, MinFilterOrder)
	case p.BandLowHz <= 0 || p.BandHighHz <= p.BandLowHz:
		return fmt.Errorf("band %.0f-%.0f Hz is empty", p.BandLowHz, p.BandHighHz)
	case p.MinClicks < 2 || p.MaxICI <= 0 || p.MaxCV <= 0:
		return errors.New("invalid train limits")
	}
	return nil
}

// ClickDetection is every surviving click plus the trains accepted from them.
type ClickDetection struct {
	Clicks    []models.ClickEvent
	Trains    []models.ClickTrain
	Threshold float64
}

// DetectClickTrains returns only the accepted trains.
func DetectClickTrains(samples []float64, sampleRate float64, p ClickParams) ([]models.ClickTrain, error) {
	det, err := DetectClicks(samples, sampleRate, p)
	if err != nil {
		return nil, err
	}
	return det.Trains, nil
}

// DetectClicks band-limits the signal to the echolocation band, finds sharp
// envelope peaks and groups them into regular trains. Sample rates too low
// to reach the band give an empty detection.
func DetectClicks(samples []float64, sampleRate float64, p ClickParams) (*ClickDetection, error) {
	if sampleRate <= 0 {
		return nil, &models.DetectionError{Stage: "clicks", Err: errors.New("sample rate must be positive")}
	}
	if err := p.Validate(); err != nil {
		return nil, &models.DetectionError{Stage: "clicks", Err: err}
	}
	if !dsp.AllFinite(samples) {
		return nil, &models.DetectionError{Stage: "clicks", Err: errors.New("non-finite samples")}
	}
	det := &ClickDetection{}
	if len(samples) < 3 || p.BandLowHz >= sampleRate/2 {
		return det, nil
	}

	// Step 1: zero-phase band-pass
	bp, err := dsp.NewButterworthBandpass(sampleRate, p.BandLowHz, p.BandHighHz, p.FilterOrder)
	if err != nil {
		return nil, &models.DetectionError{Stage: "clicks", Err: err}
	}
	filtered := bp.FiltFilt(samples)

	// Step 2: smoothed envelope
	env := dsp.MovingAverage(dsp.Envelope(filtered), samplesOf(p.SmoothingS, sampleRate))

	// Step 3: adaptive threshold
	threshold := math.Max(dsp.Percentile(env, p.ThresholdPercentile), p.NoiseMultiplier*dsp.Median(env))
	det.Threshold = threshold
	if !(threshold > 0) {
		return det, nil
	}

	// Step 4: sharp, locally dominant peaks
	peaks := dsp.FindPeaks(env, dsp.PeakOptions{
		Height:     threshold,
		Distance:   samplesOf(p.MinSeparationS, sampleRate),
		Prominence: p.MinProminenceFrac * threshold,
		Wlen:       samplesOf(p.ProminenceWindowS, sampleRate),
		MaxWidth:   p.MaxWidthS * sampleRate,
	})
	half := samplesOf(p.DominanceWindowS, sampleRate) / 2
	for _, pk := range peaks {
		if half > 0 && !dominant(env, pk.Index, half, p.DominancePercentile) {
			continue
		}
		det.Clicks = append(det.Clicks, models.ClickEvent{
			Time:      float64(pk.Index) / sampleRate,
			Amplitude: pk.Height,
		})
	}

	// Step 5: group and keep regular trains
	for _, group := range GroupClicks(det.Clicks, p.MaxICI) {
		train, ok := NewClickTrain(group)
		if !ok {
			continue
		}
		if train.NClicks >= p.MinClicks && train.RegularityCV < p.MaxCV {
			det.Trains = append(det.Trains, train)
		}
	}
	return det, nil
}

// dominant reports whether env[i] exceeds the given percentile of the
// window of half-width half around it.
func dominant(env []float64, i, half int, percentile float64) bool {
	lo, hi := i-half, i+half+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(env) {
		hi = len(env)
	}
	return env[i] > dsp.Percentile(env[lo:hi], percentile)
}

// GroupClicks splits time-ordered clicks wherever the interval exceeds maxICI.
func GroupClicks(clicks []models.ClickEvent, maxICI float64) [][]models.ClickEvent {
	if len(clicks) == 0 {
		return nil
	}
	var groups [][]models.ClickEvent
	start := 0
	for i := 1; i < len(clicks); i++ {
		if clicks[i].Time-clicks[i-1].Time > maxICI {
			groups = append(groups, clicks[start:i])
			start = i
		}
	}
	return append(groups, clicks[start:])
}

// NewClickTrain computes interval statistics for a group of clicks. Groups of
// fewer than two clicks have no intervals and are rejected.
func NewClickTrain(clicks []models.ClickEvent) (models.ClickTrain, bool) {
	if len(clicks) < 2 {
		return models.ClickTrain{}, false
	}
	times := make([]float64, len(clicks))
	for i, c := range clicks {
		times[i] = c.Time
	}
	ici := dsp.Diff(times)
	mean, std := dsp.MeanStd(ici)
	if !(mean > 0) {
		return models.ClickTrain{}, false
	}

	own := make([]models.ClickEvent, len(clicks))
	copy(own, clicks)
	start, end := times[0], times[len(times)-1]
	train := models.ClickTrain{
		Clicks:       own,
		NClicks:      len(own),
		ICIMean:      mean,
		ICIStd:       std,
		RegularityCV: std / mean,
		StartTime:    start,
		EndTime:      end,
	}
	if end > start {
		train.ClickRate = float64(len(own)) / (end - start)
	}
	return train, true
}

func samplesOf(seconds, sampleRate float64) int {
	return int(math.Round(seconds * sampleRate))
}
