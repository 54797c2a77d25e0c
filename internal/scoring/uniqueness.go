package scoring

import (
	"github.com/himanishpuri/dolphain/pkg/models"
)

// Uniqueness rewards rare features over quantity: many active bands,
// extreme frequencies, overlapping and harmonic signals, very fast sweeps
// and unusual click rhythm.
type Uniqueness struct{}

// Name implements Scorer.
func (Uniqueness) Name() string { return ModeUniqueness }

// Needs implements Scorer.
func (Uniqueness) Needs() Needs { return Needs{Spectral: true, ClickPatterns: true} }

// Score implements Scorer. Missing spectral or click metrics contribute 0.
func (s Uniqueness) Score(f *models.FileFeatures) float64 {
	if f == nil {
		return 0
	}
	total := s.spectralScore(f.Spectral) + sweepScore(f.MaxSweepRate()) + s.patternScore(f.Clicks)
	return sub(total, MaxScore)
}

func (Uniqueness) spectralScore(m *models.SpectralMetrics) float64 {
	if m == nil {
		return 0
	}
	score := sub(3*float64(m.ActiveBands), 15) +
		sub(m.SpectralEntropy/5*10, 10) +
		sub(m.PeakFreqRange/50000*10, 10)

	switch {
	case m.MaxFrequency > 100000:
		score += 5
	case m.MaxFrequency > 80000:
		score += 3
	}

	switch {
	case m.MaxSimultaneous >= 4:
		score += 10
	case m.MaxSimultaneous == 3:
		score += 7
	case m.MaxSimultaneous == 2:
		score += 4
	}

	return score + sub(0.5*float64(m.HarmonicEvents), 10)
}

func sweepScore(rate float64) float64 {
	switch {
	case rate > 50000:
		return 10
	case rate > 30000:
		return 7
	case rate > 15000:
		return 5
	case rate > 10000:
		return 3
	default:
		return 0
	}
}

func (Uniqueness) patternScore(p *models.ClickPatterns) float64 {
	if p == nil {
		return 0
	}
	score := sub(0.2*float64(p.BurstClicks), 8)
	if p.Bimodal {
		score += 6
	}
	if p.Accelerating || p.Decelerating {
		score += 6
	}
	// an undefined CV earns nothing
	if p.RegularityCV != nil {
		switch cv := *p.RegularityCV; {
		case cv < 0.3:
			score += 5
		case cv > 0.8:
			score += 3
		}
	}
	return score + sub(p.ICIRange/0.05*5, 5)
}
