package detect

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/himanishpuri/dolphain/internal/dsp"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// MinChirpNPerSeg is the smallest spectrogram segment that resolves a sweep
// well enough to track.
const MinChirpNPerSeg = 4096

// ChirpParams tune the spectral ridge tracker.
type ChirpParams struct {
	NPerSeg              int     `env:"NPERSEG, default=4096" validate:"gte=4096"`
	Overlap              float64 `env:"OVERLAP, default=0.5" validate:"gte=0,lt=1"`
	PowerPercentile      float64 `env:"POWER_PERCENTILE, default=95" validate:"gt=0,lte=100"`
	MinAboveNoiseDB      float64 `env:"MIN_ABOVE_NOISE_DB, default=15" validate:"gte=0"`
	MaxNewRidgesPerFrame int     `env:"MAX_NEW_RIDGES, default=3" validate:"gte=1"`
	MaxJumpHz            float64 `env:"MAX_JUMP_HZ, default=2000" validate:"gt=0"`
	MaxGapFrames         int     `env:"MAX_GAP_FRAMES, default=2" validate:"gte=0"`
	MinDuration          float64 `env:"MIN_DURATION, default=0.2" validate:"gt=0"`
	MinSweepHz           float64 `env:"MIN_SWEEP_HZ, default=1000" validate:"gte=0"`
	MaxChirps            int     `env:"MAX_CHIRPS, default=5" validate:"gte=1"`
	MinFreqHz            float64 `env:"MIN_FREQ_HZ, default=1000" validate:"gte=0"`
	MaxFreqHz            float64 `env:"MAX_FREQ_HZ, default=0" validate:"gte=0"` // 0 means Nyquist
	PeakSpacingHz        float64 `env:"PEAK_SPACING_HZ, default=1000" validate:"gte=0"`
	TimeToleranceDB      float64 `env:"TIME_TOLERANCE_DB, default=6" validate:"gte=0"`
}

// DefaultChirpParams returns the default tracker tuning.
func DefaultChirpParams() ChirpParams {
	return ChirpParams{
		NPerSeg:              4096,
		Overlap:              0.5,
		PowerPercentile:      95,
		MinAboveNoiseDB:      15,
		MaxNewRidgesPerFrame: 3,
		MaxJumpHz:            2000,
		MaxGapFrames:         2,
		MinDuration:          0.2,
		MinSweepHz:           1000,
		MaxChirps:            5,
		MinFreqHz:            1000,
		MaxFreqHz:            0,
		PeakSpacingHz:        1000,
		TimeToleranceDB:      6,
	}
}

// Validate rejects tunings the ridge tracker cannot run with.
func (p ChirpParams) Validate() error {
	switch {
	case p.NPerSeg < MinChirpNPerSeg:
		return fmt.Errorf("nperseg %d below minimum %d", p.NPerSeg, MinChirpNPerSeg)
	case p.Overlap < 0 || p.Overlap >= 1:
		return fmt.Errorf("overlap %.2f outside [0,1)", p.Overlap)
	case p.PowerPercentile <= 0 || p.PowerPercentile > 100:
		return fmt.Errorf("power percentile %.1f outside (0,100]", p.PowerPercentile)
	case p.MaxNewRidgesPerFrame < 1 || p.MaxChirps < 1:
		return errors.New("ridge and chirp limits must be positive")
	case p.MaxJumpHz <= 0 || p.MinDuration <= 0:
		return errors.New("max jump and min duration must be positive")
	}
	return nil
}

// ridge is an open or closed track through the spectrogram.
type ridge struct {
	points []dsp.SpectralPeak
	power  float64 // accumulated linear power
	misses int
}

func (r *ridge) last() dsp.SpectralPeak { return r.points[len(r.points)-1] }

func (r *ridge) add(p dsp.SpectralPeak) {
	r.points = append(r.points, p)
	r.power += math.Pow(10, p.PowerDB/10)
	r.misses = 0
}

// DetectChirps tracks frequency-modulated ridges through a power spectrogram
// and returns at most MaxChirps of them, strongest by accumulated power,
// ordered by start time. A signal shorter than one segment yields no chirps.
func DetectChirps(samples []float64, sampleRate float64, p ChirpParams) ([]models.ChirpEvent, error) {
	if sampleRate <= 0 {
		return nil, &models.DetectionError{Stage: "chirp", Err: errors.New("sample rate must be positive")}
	}
	if err := p.Validate(); err != nil {
		return nil, &models.DetectionError{Stage: "chirp", Err: err}
	}
	if !dsp.AllFinite(samples) {
		return nil, &models.DetectionError{Stage: "chirp", Err: errors.New("non-finite samples")}
	}
	if len(samples) < p.NPerSeg {
		return nil, nil
	}

	spec, err := dsp.ComputeSpectrogram(samples, sampleRate, p.NPerSeg, p.Overlap)
	if err != nil {
		return nil, &models.DetectionError{Stage: "chirp", Err: err}
	}
	db := spec.DB()

	binWidth := spec.BinWidth()
	minBin := int(math.Ceil(p.MinFreqHz / binWidth))
	maxBin := spec.NumBins()
	if p.MaxFreqHz > 0 {
		if b := int(math.Floor(p.MaxFreqHz/binWidth)) + 1; b < maxBin {
			maxBin = b
		}
	}
	if minBin >= maxBin {
		return nil, nil
	}

	active := activeCells(db, minBin, maxBin, p)

	fp := dsp.FramePeakParams{
		MinBin:          minBin,
		MaxBin:          maxBin,
		SpacingBins:     int(math.Round(p.PeakSpacingHz / binWidth)),
		TimeToleranceDB: p.TimeToleranceDB,
	}

	var open, closed []*ridge
	for t := range db {
		peaks := dsp.FramePeaks(db, active, spec, t, fp)
		claimed := matchRidges(open, peaks, p.MaxJumpHz)

		// close ridges that have been silent for too long
		kept := open[:0]
		for _, r := range open {
			if r.misses > p.MaxGapFrames {
				closed = append(closed, r)
				continue
			}
			kept = append(kept, r)
		}
		open = kept

		// peaks are strongest first, so the cap keeps the strongest births
		born := 0
		for j, pk := range peaks {
			if claimed[j] || born >= p.MaxNewRidgesPerFrame {
				continue
			}
			r := &ridge{}
			r.add(pk)
			open = append(open, r)
			born++
		}
	}
	closed = append(closed, open...)

	var chirps []scoredChirp
	for _, r := range closed {
		if ev, ok := ridgeToChirp(r, p); ok {
			chirps = append(chirps, scoredChirp{event: ev, power: r.power})
		}
	}
	return strongestChirps(chirps, p.MaxChirps), nil
}

// activeCells marks cells above the global percentile that also stand
// MinAboveNoiseDB above their bin's median level over time.
func activeCells(db [][]float64, minBin, maxBin int, p ChirpParams) [][]bool {
	nFrames := len(db)
	inRange := make([]float64, 0, nFrames*(maxBin-minBin))
	for _, row := range db {
		inRange = append(inRange, row[minBin:maxBin]...)
	}
	threshold := dsp.Percentile(inRange, p.PowerPercentile)

	floor := make([]float64, maxBin)
	column := make([]float64, nFrames)
	for k := minBin; k < maxBin; k++ {
		for t := range db {
			column[t] = db[t][k]
		}
		floor[k] = dsp.Median(column)
	}

	active := make([][]bool, nFrames)
	for t, row := range db {
		active[t] = make([]bool, len(row))
		for k := minBin; k < maxBin; k++ {
			active[t][k] = row[k] >= threshold && row[k]-floor[k] >= p.MinAboveNoiseDB
		}
	}
	return active
}

// matchRidges extends open ridges with this frame's peaks. Candidate pairs
// within maxJump are taken greedily by frequency distance, ties going to the
// stronger peak. Unmatched ridges accrue a miss.
func matchRidges(open []*ridge, peaks []dsp.SpectralPeak, maxJump float64) []bool {
	type pair struct {
		ridge, peak int
		dist        float64
	}
	var pairs []pair
	for i, r := range open {
		f := r.last().Freq
		for j, pk := range peaks {
			if d := math.Abs(pk.Freq - f); d <= maxJump {
				pairs = append(pairs, pair{i, j, d})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].dist != pairs[b].dist {
			return pairs[a].dist < pairs[b].dist
		}
		return peaks[pairs[a].peak].PowerDB > peaks[pairs[b].peak].PowerDB
	})

	claimed := make([]bool, len(peaks))
	matched := make([]bool, len(open))
	for _, pr := range pairs {
		if matched[pr.ridge] || claimed[pr.peak] {
			continue
		}
		open[pr.ridge].add(peaks[pr.peak])
		matched[pr.ridge] = true
		claimed[pr.peak] = true
	}
	for i, r := range open {
		if !matched[i] {
			r.misses++
		}
	}
	return claimed
}

// ridgeToChirp applies the duration, sweep and continuity gates.
func ridgeToChirp(r *ridge, p ChirpParams) (models.ChirpEvent, bool) {
	if len(r.points) < 2 {
		return models.ChirpEvent{}, false
	}
	first, last := r.points[0], r.last()
	duration := last.Time - first.Time
	sweep := math.Abs(last.Freq - first.Freq)
	if duration < p.MinDuration || sweep < p.MinSweepHz {
		return models.ChirpEvent{}, false
	}

	// reject tracks that jump around instead of sweeping smoothly
	steps := make([]float64, len(r.points)-1)
	for i := range steps {
		steps[i] = math.Abs(r.points[i+1].Freq - r.points[i].Freq)
	}
	mean, std := dsp.MeanStd(steps)
	if std > 3*mean {
		return models.ChirpEvent{}, false
	}

	sumFreq, peakDB := 0.0, math.Inf(-1)
	for _, pt := range r.points {
		sumFreq += pt.Freq
		peakDB = math.Max(peakDB, pt.PowerDB)
	}

	return models.ChirpEvent{
		StartTime:       first.Time,
		EndTime:         last.Time,
		FreqStart:       first.Freq,
		FreqEnd:         last.Freq,
		SweepHz:         sweep,
		SweepRateHzPerS: sweep / duration,
		Duration:        duration,
		MeanFreqHz:      sumFreq / float64(len(r.points)),
		PeakPowerDB:     peakDB,
	}, true
}

type scoredChirp struct {
	event models.ChirpEvent
	power float64
}

func strongestChirps(chirps []scoredChirp, limit int) []models.ChirpEvent {
	if len(chirps) == 0 {
		return nil
	}
	sort.SliceStable(chirps, func(a, b int) bool { return chirps[a].power > chirps[b].power })
	if len(chirps) > limit {
		chirps = chirps[:limit]
	}
	out := make([]models.ChirpEvent, len(chirps))
	for i, c := range chirps {
		out[i] = c.event
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartTime < out[b].StartTime })
	return out
}
