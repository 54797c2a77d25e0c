package dsp

import (
	"math"
	"sort"
)

// Peak is a local maximum of a 1-D sequence.
type Peak struct {
	Index      int
	Height     float64
	Prominence float64
	Width      float64 // samples, measured at half prominence
}

// PeakOptions constrain FindPeaks. Zero values disable a constraint.
type PeakOptions struct {
	Height     float64 // minimum height; use -Inf to accept any
	Distance   int     // minimum index separation, stronger peaks win
	Prominence float64 // minimum prominence
	Wlen       int     // window (samples) used to search for bases; 0 scans the whole sequence
	MaxWidth   float64 // maximum width at half prominence, in samples
}

// FindPeaks returns the local maxima of x satisfying opts, in index order.
// Flat tops report their left-most sample.
func FindPeaks(x []float64, opts PeakOptions) []Peak {
	n := len(x)
	if n < 3 {
		return nil
	}

	var cand []int
	for i := 1; i < n-1; i++ {
		if !(x[i] > x[i-1]) {
			continue
		}
		j := i
		for j < n-1 && x[j+1] == x[i] {
			j++
		}
		if j < n-1 && x[j+1] < x[i] && x[i] >= opts.Height {
			cand = append(cand, i)
		}
		i = j
	}
	if len(cand) == 0 {
		return nil
	}

	if opts.Distance > 1 {
		cand = enforceDistance(x, cand, opts.Distance)
	}

	needBases := opts.Prominence > 0 || opts.MaxWidth > 0
	peaks := make([]Peak, 0, len(cand))
	for _, i := range cand {
		p := Peak{Index: i, Height: x[i]}
		if needBases {
			p.Prominence = prominence(x, i, opts.Wlen)
			if p.Prominence < opts.Prominence {
				continue
			}
			p.Width = widthAt(x, i, x[i]-p.Prominence/2, opts.Wlen)
			if opts.MaxWidth > 0 && p.Width > opts.MaxWidth {
				continue
			}
		}
		peaks = append(peaks, p)
	}
	return peaks
}

// enforceDistance keeps the highest peaks first and drops any neighbour
// closer than distance.
func enforceDistance(x []float64, cand []int, distance int) []int {
	order := make([]int, len(cand))
	copy(order, cand)
	sort.SliceStable(order, func(a, b int) bool { return x[order[a]] > x[order[b]] })

	kept := make(map[int]bool, len(cand))
	var accepted []int
	for _, i := range order {
		ok := true
		for _, j := range accepted {
			if absInt(i-j) < distance {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, i)
			kept[i] = true
		}
	}

	out := make([]int, 0, len(accepted))
	for _, i := range cand {
		if kept[i] {
			out = append(out, i)
		}
	}
	return out
}

func searchBounds(n, i, wlen int) (lo, hi int) {
	lo, hi = 0, n-1
	if wlen > 1 {
		half := wlen / 2
		if i-half > lo {
			lo = i - half
		}
		if i+half < hi {
			hi = i + half
		}
	}
	return lo, hi
}

// prominence follows the usual definition: descend on each side until a
// higher sample or the search bound, take the higher of the two minima.
func prominence(x []float64, i, wlen int) float64 {
	lo, hi := searchBounds(len(x), i, wlen)

	leftMin := x[i]
	for j := i - 1; j >= lo; j-- {
		if x[j] > x[i] {
			break
		}
		leftMin = math.Min(leftMin, x[j])
	}
	rightMin := x[i]
	for j := i + 1; j <= hi; j++ {
		if x[j] > x[i] {
			break
		}
		rightMin = math.Min(rightMin, x[j])
	}
	return x[i] - math.Max(leftMin, rightMin)
}

// widthAt counts the samples around i that stay at or above level.
func widthAt(x []float64, i int, level float64, wlen int) float64 {
	lo, hi := searchBounds(len(x), i, wlen)
	left := i
	for left > lo && x[left-1] >= level {
		left--
	}
	right := i
	for right < hi && x[right+1] >= level {
		right++
	}
	return float64(right - left + 1)
}

// SpectralPeak is a time-frequency landmark in a spectrogram.
type SpectralPeak struct {
	TimeIdx int     // frame index in the spectrogram
	FreqIdx int     // frequency bin index
	Time    float64 // seconds
	Freq    float64 // Hz
	PowerDB float64
}

// FramePeakParams tune FramePeaks.
type FramePeakParams struct {
	MinBin          int
	MaxBin          int     // exclusive
	SpacingBins     int     // minimum separation between peaks in one frame
	TimeToleranceDB float64 // how far below a time neighbour a peak may sit
	MaxPeaks        int     // 0 means unlimited
}

// FramePeaks returns the peaks of frame t among active cells, strongest first.
// A peak is the strongest active cell within SpacingBins in frequency and no
// more than TimeToleranceDB below the same bin in the adjacent frames.
func FramePeaks(db [][]float64, active [][]bool, spec *Spectrogram, t int, p FramePeakParams) []SpectralPeak {
	frame := db[t]
	nBins := len(frame)
	maxBin := p.MaxBin
	if maxBin <= 0 || maxBin > nBins {
		maxBin = nBins
	}

	var bins []int
	for k := p.MinBin; k < maxBin; k++ {
		if active[t][k] {
			bins = append(bins, k)
		}
	}
	if len(bins) == 0 {
		return nil
	}
	sort.SliceStable(bins, func(a, b int) bool { return frame[bins[a]] > frame[bins[b]] })

	var peaks []SpectralPeak
	for _, k := range bins {
		suppressed := false
		for _, q := range peaks {
			if absInt(q.FreqIdx-k) <= p.SpacingBins {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		if !timeLocalMax(db, t, k, p.TimeToleranceDB) {
			continue
		}
		peaks = append(peaks, SpectralPeak{
			TimeIdx: t,
			FreqIdx: k,
			Time:    spec.Times[t],
			Freq:    spec.Frequencies[k],
			PowerDB: frame[k],
		})
		if p.MaxPeaks > 0 && len(peaks) >= p.MaxPeaks {
			break
		}
	}
	return peaks
}

func timeLocalMax(db [][]float64, t, k int, tolDB float64) bool {
	for _, dt := range []int{-1, 1} {
		tt := t + dt
		if tt < 0 || tt >= len(db) {
			continue
		}
		if db[tt][k] > db[t][k]+tolDB {
			return false
		}
	}
	return true
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
