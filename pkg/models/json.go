package models

import "encoding/json"

// chirpSummary and trainSummary are the nested blocks of the result JSON.
type chirpSummary struct {
	Count           int          `json:"count"`
	MaxSweepHz      float64      `json:"max_sweep_hz"`
	MaxSweepRateHzS float64      `json:"max_sweep_rate_hz_per_s"`
	Events          []ChirpEvent `json:"events"`
}

type trainSummary struct {
	Count       int          `json:"count"`
	TotalClicks int          `json:"total_clicks"`
	MeanCV      *float64     `json:"mean_cv"`
	Trains      []ClickTrain `json:"trains"`
}

type resultJSON struct {
	Path          string           `json:"file"`
	Filename      string           `json:"filename"`
	Score         float64          `json:"score"`
	Chirps        chirpSummary     `json:"chirps"`
	ClickTrains   trainSummary     `json:"click_trains"`
	SNRDB         float64          `json:"snr_db"`
	Spectral      *SpectralMetrics `json:"spectral,omitempty"`
	ClickPatterns *ClickPatterns   `json:"click_patterns,omitempty"`
	Duration      float64          `json:"duration_s"`
	SampleRate    float64          `json:"sample_rate"`
	ElapsedMS     int64            `json:"elapsed_ms,omitempty"`
	Error         *string          `json:"error"`
}

// MarshalJSON writes the result with chirp and click-train summaries
// alongside the raw events.
func (r FileResult) MarshalJSON() ([]byte, error) {
	f := r.Features
	out := resultJSON{
		Path:     r.Path,
		Filename: r.Filename,
		Score:    r.Score,
		Chirps: chirpSummary{
			Count:           len(f.Chirps),
			MaxSweepHz:      f.MaxSweepHz(),
			MaxSweepRateHzS: f.MaxSweepRate(),
			Events:          f.Chirps,
		},
		ClickTrains: trainSummary{
			Count:       len(f.ClickTrains),
			TotalClicks: f.TotalClicks(),
			Trains:      f.ClickTrains,
		},
		SNRDB:         f.SNRDB,
		Spectral:      f.Spectral,
		ClickPatterns: f.Clicks,
		Duration:      r.Duration,
		SampleRate:    r.SampleRate,
		ElapsedMS:     r.ElapsedMS,
		Error:         r.Error,
	}
	if cv, ok := f.MeanTrainCV(); ok {
		out.ClickTrains.MeanCV = &cv
	}
	if out.Chirps.Events == nil {
		out.Chirps.Events = []ChirpEvent{}
	}
	if out.ClickTrains.Trains == nil {
		out.ClickTrains.Trains = []ClickTrain{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a result written by MarshalJSON. The summary
// fields are derived and ignored.
func (r *FileResult) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*r = FileResult{
		Path:     in.Path,
		Filename: in.Filename,
		Score:    in.Score,
		Features: FileFeatures{
			SNRDB:    in.SNRDB,
			Spectral: in.Spectral,
			Clicks:   in.ClickPatterns,
		},
		Duration:   in.Duration,
		SampleRate: in.SampleRate,
		ElapsedMS:  in.ElapsedMS,
		Error:      in.Error,
	}
	if len(in.Chirps.Events) > 0 {
		r.Features.Chirps = in.Chirps.Events
	}
	if len(in.ClickTrains.Trains) > 0 {
		r.Features.ClickTrains = in.ClickTrains.Trains
	}
	return nil
}
