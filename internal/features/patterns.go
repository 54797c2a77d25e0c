package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/dolphain/internal/dsp"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// Click rhythm settings.
const (
	MinPatternClicks = 5
	BurstICI         = 0.005 // seconds
	histogramBins    = 20
	trendFraction    = 0.7
)

// ClickPatterns summarises the rhythm of a time-ordered click sequence.
// Fewer than MinPatternClicks clicks give nil. Metrics that need more
// intervals than are available stay nil or false.
func ClickPatterns(clicks []models.ClickEvent) *models.ClickPatterns {
	if len(clicks) < MinPatternClicks {
		return nil
	}
	times := make([]float64, len(clicks))
	for i, c := range clicks {
		times[i] = c.Time
	}
	icis := dsp.Diff(times)

	p := &models.ClickPatterns{TotalClicks: len(clicks)}
	for _, ici := range icis {
		if ici < BurstICI {
			p.BurstClicks++
		}
	}

	mean, std := dsp.MeanStd(icis)
	p.MeanICI = mean
	p.ICIRange = floats.Max(icis) - floats.Min(icis)

	if len(icis) > 2 && mean > 0 {
		cv := std / mean
		p.RegularityCV = &cv
		p.HighlyRegular = cv < 0.3
	}

	if len(icis) > 10 {
		modes := iciModes(icis)
		p.ICIModes = &modes
		p.Bimodal = modes >= 2
	}

	if len(icis) > 5 {
		changes := dsp.Diff(icis)
		up, down := 0, 0
		for _, c := range changes {
			switch {
			case c > 0:
				up++
			case c < 0:
				down++
			}
		}
		n := float64(len(changes))
		// shrinking intervals mean the clicks speed up
		p.Accelerating = float64(down)/n > trendFraction
		p.Decelerating = float64(up)/n > trendFraction
	}
	return p
}

// iciModes counts the peaks of a 20-bin histogram of the intervals.
func iciModes(icis []float64) int {
	sorted := make([]float64, len(icis))
	copy(sorted, icis)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi-lo <= 1e-9*math.Abs(hi) {
		return 1
	}
	dividers := floats.Span(make([]float64, histogramBins+1), lo, hi)
	// the last bin includes the maximum
	dividers[histogramBins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	// pad with empty bins so edge bins can be peaks
	padded := make([]float64, 0, len(counts)+2)
	padded = append(padded, 0)
	padded = append(padded, counts...)
	padded = append(padded, 0)
	return len(dsp.FindPeaks(padded, dsp.PeakOptions{Height: math.Inf(-1), Prominence: 2}))
}
