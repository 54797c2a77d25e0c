package scoring

import (
	"math"

	"github.com/himanishpuri/dolphain/pkg/models"
)

// Block caps of the interestingness score.
const (
	ChirpBlockMax = 40.0
	ClickBlockMax = 40.0
	SNRBlockMax   = 20.0
)

// Optimal click rate range in clicks per second.
const (
	minGoodClickRate = 20.0
	maxGoodClickRate = 200.0
)

// Interestingness rewards the quantity and quality of chirps and click
// trains, plus band SNR.
type Interestingness struct{}

// Name implements Scorer.
func (Interestingness) Name() string { return ModeInterestingness }

// Needs implements Scorer. Chirps, trains and SNR are always present.
func (Interestingness) Needs() Needs { return Needs{} }

// Score implements Scorer.
func (s Interestingness) Score(f *models.FileFeatures) float64 {
	if f == nil {
		return 0
	}
	total := s.chirpScore(f.Chirps) + s.clickScore(f.ClickTrains) + sub(f.SNRDB/30*SNRBlockMax, SNRBlockMax)
	return sub(total, MaxScore)
}

func (Interestingness) chirpScore(chirps []models.ChirpEvent) float64 {
	if len(chirps) == 0 {
		return 0
	}
	sweep, rate := 0.0, 0.0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range chirps {
		sweep += c.SweepHz
		rate = math.Max(rate, c.SweepRateHzPerS)
		lo = math.Min(lo, c.MeanFreqHz)
		hi = math.Max(hi, c.MeanFreqHz)
	}
	sweep /= float64(len(chirps))

	score := sub(5*float64(len(chirps)), 15) +
		sub(sweep/5000*10, 10) +
		sub(rate/20000*5, 5) +
		sub((hi-lo)/10000*10, 10)
	return sub(score, ChirpBlockMax)
}

func (Interestingness) clickScore(trains []models.ClickTrain) float64 {
	if len(trains) == 0 {
		return 0
	}
	clicks := 0
	regularity := 0.0
	best := trains[0]
	for _, t := range trains {
		clicks += t.NClicks
		regularity += sub((1-t.RegularityCV/0.5)*10, 10)
		if t.NClicks > best.NClicks {
			best = t
		}
	}
	regularity /= float64(len(trains))

	score := sub(5*float64(len(trains)), 10) +
		sub(float64(clicks)/5, 10) +
		regularity +
		sub(rateScore(best.ClickRate), 10)
	return sub(score, ClickBlockMax)
}

// rateScore gives full marks inside the optimal click-rate range and falls
// off proportionally outside it.
func rateScore(rate float64) float64 {
	switch {
	case rate <= 0:
		return 0
	case rate < minGoodClickRate:
		return 10 * rate / minGoodClickRate
	case rate > maxGoodClickRate:
		return 10 * maxGoodClickRate / rate
	default:
		return 10
	}
}
