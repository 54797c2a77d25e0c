package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/himanishpuri/dolphain/internal/scoring"
	"github.com/himanishpuri/dolphain/pkg/models"
	"github.com/himanishpuri/dolphain/pkg/utils"
)

// Output file names.
const (
	ResultsJSONFile = "results.json"
	ResultsCSVFile  = "all_results.csv"
	SummaryFile     = "run_summary.txt"
)

// TopFilesName is the ranked report for the top n files.
func TopFilesName(n int) string {
	return fmt.Sprintf("top_%d_files.txt", n)
}

// ResultsDocument is the layout of results.json. Per-file timing is left out
// so the document depends only on the sampled files, mode and seed; RunID is
// the one field that differs between two runs over the same sample. Timing
// goes to SummaryFile.
type ResultsDocument struct {
	RunID     string              `json:"run_id"`
	Mode      string              `json:"mode"`
	Seed      uint64              `json:"seed"`
	NAnalyzed int                 `json:"n_analyzed"`
	NErrors   int                 `json:"n_errors"`
	Results   []models.FileResult `json:"results"`
}

// WriteOutputs writes results.json, all_results.csv, the top-N report and
// the run summary into dir and returns their paths.
func WriteOutputs(dir string, s *RunState, topN int) ([]string, error) {
	ranked := withoutTiming(s.Ranked())

	doc := ResultsDocument{
		RunID:     s.RunID,
		Mode:      s.Mode,
		Seed:      s.Seed,
		NAnalyzed: len(ranked),
		NErrors:   s.Errors(),
		Results:   ranked,
	}
	if doc.Results == nil {
		doc.Results = []models.FileResult{}
	}

	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding results: %w", err)
	}
	csvData, err := EncodeCSV(ranked)
	if err != nil {
		return nil, fmt.Errorf("encoding csv: %w", err)
	}
	topData := []byte(FormatTopFiles(ranked, topN, s.Mode))
	var summary bytes.Buffer
	fmt.Fprintf(&summary, "Run %s (%s mode, seed %d)\n", s.RunID, s.Mode, s.Seed)
	Summarize(s.Results).Print(&summary)

	outputs := []struct {
		name string
		data []byte
	}{
		{ResultsJSONFile, jsonData},
		{ResultsCSVFile, csvData},
		{TopFilesName(topN), topData},
		{SummaryFile, summary.Bytes()},
	}

	var written []string
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		if err := utils.WriteFileAtomic(path, o.data, 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// withoutTiming returns copies of results with ElapsedMS cleared.
func withoutTiming(results []models.FileResult) []models.FileResult {
	out := make([]models.FileResult, len(results))
	for i, r := range results {
		r.ElapsedMS = 0
		out[i] = r
	}
	return out
}

// ReadResults loads a results.json document.
func ReadResults(data []byte) (*ResultsDocument, error) {
	var doc ResultsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	return &doc, nil
}

var csvHeader = []string{
	"file", "filename", "score", "error",
	"n_chirps", "max_sweep_hz", "max_sweep_rate_hz_per_s",
	"n_click_trains", "total_clicks", "mean_cv",
	"snr_db", "duration_s", "sample_rate",
	"active_frequency_bands", "spectral_entropy", "peak_freq_range", "max_frequency",
	"max_simultaneous_signals", "harmonic_events",
	"burst_clicks", "click_regularity_cv", "ici_modes", "is_bimodal",
	"click_acceleration", "click_deceleration", "ici_range",
}

// EncodeCSV flattens one row per result. Metrics that were not computed are
// empty cells.
func EncodeCSV(results []models.FileResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, r := range results {
		f := r.Features
		errMsg := ""
		if r.Error != nil {
			errMsg = *r.Error
		}
		meanCV := ""
		if cv, ok := f.MeanTrainCV(); ok {
			meanCV = ftoa(cv)
		}

		row := []string{
			r.Path, r.Filename, ftoa(r.Score), errMsg,
			strconv.Itoa(len(f.Chirps)), ftoa(f.MaxSweepHz()), ftoa(f.MaxSweepRate()),
			strconv.Itoa(len(f.ClickTrains)), strconv.Itoa(f.TotalClicks()), meanCV,
			ftoa(f.SNRDB), ftoa(r.Duration), ftoa(r.SampleRate),
		}

		if m := f.Spectral; m != nil {
			row = append(row,
				strconv.Itoa(m.ActiveBands), ftoa(m.SpectralEntropy), ftoa(m.PeakFreqRange), ftoa(m.MaxFrequency),
				strconv.Itoa(m.MaxSimultaneous), strconv.Itoa(m.HarmonicEvents))
		} else {
			row = append(row, make([]string, 6)...)
		}

		if p := f.Clicks; p != nil {
			cv, modes := "", ""
			if p.RegularityCV != nil {
				cv = ftoa(*p.RegularityCV)
			}
			if p.ICIModes != nil {
				modes = strconv.Itoa(*p.ICIModes)
			}
			row = append(row,
				strconv.Itoa(p.BurstClicks), cv, modes, strconv.FormatBool(p.Bimodal),
				strconv.FormatBool(p.Accelerating), strconv.FormatBool(p.Decelerating), ftoa(p.ICIRange))
		} else {
			row = append(row, make([]string, 7)...)
		}

		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatTopFiles renders the ranked table of the best n successful files
// followed by their full paths.
func FormatTopFiles(ranked []models.FileResult, n int, mode string) string {
	var top []models.FileResult
	for _, r := range ranked {
		if len(top) == n {
			break
		}
		if !r.Failed() {
			top = append(top, r)
		}
	}

	adjective := "INTERESTING"
	if mode == scoring.ModeUniqueness {
		adjective = "UNIQUE"
	}

	var b strings.Builder
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	fmt.Fprintf(&b, "TOP %d MOST %s FILES\n", n, adjective)
	fmt.Fprintf(&b, "%s\n\n", rule)
	fmt.Fprintf(&b, "%-6s %-8s %-8s %-8s %-9s %s\n", "Rank", "Score", "Chirps", "Trains", "SNR(dB)", "File")
	fmt.Fprintln(&b, thin)
	for i, r := range top {
		fmt.Fprintf(&b, "%-6d %-8.1f %-8d %-8d %-9.1f %s\n",
			i+1, r.Score, len(r.Features.Chirps), len(r.Features.ClickTrains), r.Features.SNRDB, r.Filename)
	}

	fmt.Fprintf(&b, "\n\nFull file paths:\n%s\n", thin)
	for i, r := range top {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Path)
	}
	return b.String()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
