// Package features computes the descriptive metrics that feed the scorers:
// band SNR, multi-band spectral activity and click rhythm patterns.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/dolphain/internal/dsp"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// Spectrogram settings for the spectral metrics.
const (
	SpectralNPerSeg = 8192
	SpectralOverlap = 0.75
)

// FrequencyBand is a named frequency interval.
type FrequencyBand struct {
	Name string
	dsp.Band
}

// FrequencyBands are the activity bands, lowest first. Upper edges are
// exclusive.
var FrequencyBands = []FrequencyBand{
	{"ultra_low", dsp.Band{Lo: 0, Hi: 2000}},
	{"low", dsp.Band{Lo: 2000, Hi: 10000}},
	{"mid", dsp.Band{Lo: 10000, Hi: 40000}},
	{"high", dsp.Band{Lo: 40000, Hi: 80000}},
	{"ultra_high", dsp.Band{Lo: 80000, Hi: 125000}},
}

const (
	bandActiveDB   = 10 // band mean above its 20th percentile
	bandFloorPct   = 20
	strongPct      = 95
	harmonicPct    = 90
	harmonicStride = 5

	// column peaks must also clear the column median by this much, so that
	// noise-only frames do not count as simultaneous or harmonic signals
	peakAboveMedianDB = 15
)

// Spectral computes the multi-band descriptors of a signal. Signals shorter
// than one spectrogram segment have no metrics and return nil.
func Spectral(samples []float64, sampleRate float64) (*models.SpectralMetrics, error) {
	if len(samples) < SpectralNPerSeg {
		return nil, nil
	}
	spec, err := dsp.ComputeSpectrogram(samples, sampleRate, SpectralNPerSeg, SpectralOverlap)
	if err != nil {
		return nil, err
	}
	db := spec.DB()

	m := &models.SpectralMetrics{BandEnergies: map[string]float64{}}

	// Step 1: band activity
	for _, band := range FrequencyBands {
		var cells []float64
		for t := range db {
			for k, f := range spec.Frequencies {
				if f >= band.Lo && f < band.Hi {
					cells = append(cells, db[t][k])
				}
			}
		}
		if len(cells) == 0 {
			continue
		}
		mean := stat.Mean(cells, nil)
		floor := dsp.Percentile(cells, bandFloorPct)
		if mean > floor+bandActiveDB {
			m.ActiveBands++
			m.BandEnergies[band.Name] = mean - floor
		}
	}

	// Step 2: entropy of the time-integrated spectrum
	m.SpectralEntropy = spectralEntropy(spec.Power)

	// Step 3: span of frequencies holding the strongest cells
	m.PeakFreqRange, m.MinFrequency, m.MaxFrequency = strongRange(db, spec.Frequencies)

	// Step 4: simultaneous signals per frame
	for _, col := range db {
		n := len(columnPeaks(col, strongPct, 50, 0))
		if n > 1 {
			m.SimultaneousEvents++
			if n > m.MaxSimultaneous {
				m.MaxSimultaneous = n
			}
		}
	}

	// Step 5: harmonic pairs on every fifth frame
	for t := 0; t < len(db); t += harmonicStride {
		peaks := columnPeaks(db[t], harmonicPct, 20, 5)
		m.HarmonicEvents += harmonicCount(peaks, spec.Frequencies)
	}

	return m, nil
}

func spectralEntropy(power [][]float64) float64 {
	if len(power) == 0 {
		return 0
	}
	dist := make([]float64, len(power[0]))
	total := 0.0
	for _, row := range power {
		for k, p := range row {
			dist[k] += p
			total += p
		}
	}
	if !(total > 0) {
		return 0
	}
	for k := range dist {
		dist[k] /= total
	}
	return stat.Entropy(dist)
}

func strongRange(db [][]float64, freqs []float64) (span, lo, hi float64) {
	var all []float64
	for _, row := range db {
		all = append(all, row...)
	}
	threshold := dsp.Percentile(all, strongPct)

	lo, hi = math.Inf(1), math.Inf(-1)
	for k, f := range freqs {
		for t := range db {
			if db[t][k] > threshold {
				lo = math.Min(lo, f)
				hi = math.Max(hi, f)
				break
			}
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0, 0
	}
	return hi - lo, lo, hi
}

// columnPeaks finds the peaks of one spectrogram frame above its pct-th
// percentile and peakAboveMedianDB above its median.
func columnPeaks(col []float64, pct float64, distance int, prominence float64) []int {
	height := math.Max(dsp.Percentile(col, pct), dsp.Median(col)+peakAboveMedianDB)
	peaks := dsp.FindPeaks(col, dsp.PeakOptions{
		Height:     height,
		Distance:   distance,
		Prominence: prominence,
	})
	idx := make([]int, len(peaks))
	for i, p := range peaks {
		idx[i] = p.Index
	}
	return idx
}

// harmonicCount counts the peaks that have a partner at roughly twice or
// three times their frequency.
func harmonicCount(peaks []int, freqs []float64) int {
	count := 0
	for i := range peaks {
		base := freqs[peaks[i]]
		if base <= 0 {
			continue
		}
		for j := i + 1; j < len(peaks); j++ {
			ratio := freqs[peaks[j]] / base
			if (ratio > 1.8 && ratio < 2.2) || (ratio > 2.8 && ratio < 3.2) {
				count++
				break
			}
		}
	}
	return count
}
