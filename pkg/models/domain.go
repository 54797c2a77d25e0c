package models

import "time"

// ChirpEvent is a sustained frequency sweep found by the ridge tracker.
type ChirpEvent struct {
	StartTime       float64 `json:"start_time"`
	EndTime         float64 `json:"end_time"`
	FreqStart       float64 `json:"freq_start"`
	FreqEnd         float64 `json:"freq_end"`
	SweepHz         float64 `json:"sweep_hz"`
	SweepRateHzPerS float64 `json:"sweep_rate_hz_per_s"`
	Duration        float64 `json:"duration"`
	MeanFreqHz      float64 `json:"mean_freq_hz"`
	PeakPowerDB     float64 `json:"peak_power_db"`
}

// ClickEvent is a single echolocation-like impulse on the envelope.
type ClickEvent struct {
	Time      float64 `json:"time"`
	Amplitude float64 `json:"amplitude"`
}

// ClickTrain is a rhythmically regular run of clicks.
// Consecutive clicks are never further apart than the detector's max ICI.
type ClickTrain struct {
	Clicks       []ClickEvent `json:"clicks"`
	NClicks      int          `json:"n_clicks"`
	ICIMean      float64      `json:"ici_mean"`
	ICIStd       float64      `json:"ici_std"`
	RegularityCV float64      `json:"regularity_cv"`
	StartTime    float64      `json:"start_time"`
	EndTime      float64      `json:"end_time"`
	ClickRate    float64      `json:"click_rate"` // clicks per second
}

// SpectralMetrics are the multi-band descriptors used by the uniqueness scorer.
type SpectralMetrics struct {
	ActiveBands        int                `json:"active_frequency_bands"`
	BandEnergies       map[string]float64 `json:"band_energies,omitempty"`
	SpectralEntropy    float64            `json:"spectral_entropy"`
	PeakFreqRange      float64            `json:"peak_freq_range"`
	MaxFrequency       float64            `json:"max_frequency"`
	MinFrequency       float64            `json:"min_frequency"`
	MaxSimultaneous    int                `json:"max_simultaneous_signals"`
	SimultaneousEvents int                `json:"simultaneous_events"`
	HarmonicEvents     int                `json:"harmonic_events"`
}

// ClickPatterns summarise the rhythm of every detected click, trained or not.
// Pointer fields are nil when there were too few intervals to compute them.
type ClickPatterns struct {
	TotalClicks   int      `json:"total_clicks"`
	BurstClicks   int      `json:"burst_clicks"`
	RegularityCV  *float64 `json:"click_regularity_cv,omitempty"`
	HighlyRegular bool     `json:"is_highly_regular"`
	ICIModes      *int     `json:"ici_modes,omitempty"`
	Bimodal       bool     `json:"is_bimodal"`
	Accelerating  bool     `json:"click_acceleration"`
	Decelerating  bool     `json:"click_deceleration"`
	MeanICI       float64  `json:"mean_ici"`
	ICIRange      float64  `json:"ici_range"`
}

// FileFeatures aggregates everything the scorers look at for one file.
type FileFeatures struct {
	Chirps      []ChirpEvent     `json:"chirps"`
	ClickTrains []ClickTrain     `json:"click_trains"`
	SNRDB       float64          `json:"snr_db"`
	Spectral    *SpectralMetrics `json:"spectral,omitempty"`
	Clicks      *ClickPatterns   `json:"click_patterns,omitempty"`
}

// FileResult is the outcome of analysing one file. A failed file carries
// Error and a zero score.
type FileResult struct {
	Path       string       `json:"file"`
	Filename   string       `json:"filename"`
	Score      float64      `json:"score"`
	Features   FileFeatures `json:"-"`
	Duration   float64      `json:"duration_s"`
	SampleRate float64      `json:"sample_rate"`
	ElapsedMS  int64        `json:"elapsed_ms"`
	Error      *string      `json:"error"`
}

// Failed reports whether the analysis of this file errored.
func (r FileResult) Failed() bool {
	return r.Error != nil
}

// Hit reports whether anything structured was detected in the file.
func (r FileResult) Hit() bool {
	return !r.Failed() && (len(r.Features.Chirps) > 0 || len(r.Features.ClickTrains) > 0)
}

// TotalClicks counts clicks across all accepted trains.
func (f FileFeatures) TotalClicks() int {
	n := 0
	for _, t := range f.ClickTrains {
		n += t.NClicks
	}
	return n
}

// MaxSweepHz returns the widest chirp sweep, or 0 without chirps.
func (f FileFeatures) MaxSweepHz() float64 {
	best := 0.0
	for _, c := range f.Chirps {
		if c.SweepHz > best {
			best = c.SweepHz
		}
	}
	return best
}

// MaxSweepRate returns the fastest chirp sweep rate in Hz/s.
func (f FileFeatures) MaxSweepRate() float64 {
	best := 0.0
	for _, c := range f.Chirps {
		if c.SweepRateHzPerS > best {
			best = c.SweepRateHzPerS
		}
	}
	return best
}

// MeanTrainCV averages the regularity of all accepted trains.
// It returns false when there are no trains.
func (f FileFeatures) MeanTrainCV() (float64, bool) {
	if len(f.ClickTrains) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, t := range f.ClickTrains {
		sum += t.RegularityCV
	}
	return sum / float64(len(f.ClickTrains)), true
}

// RunInfo describes one batch run as stored in the results index.
type RunInfo struct {
	ID         string
	Mode       string
	Seed       uint64
	OutputDir  string
	NFiles     int
	NErrors    int
	StartedAt  time.Time
	FinishedAt time.Time
}
