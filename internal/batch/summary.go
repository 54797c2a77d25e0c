package batch

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/dolphain/pkg/models"
)

// Spread summarises one numeric column.
type Spread struct {
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
	Total  float64
}

func spreadOf(x []float64) Spread {
	if len(x) == 0 {
		return Spread{}
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	return Spread{
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Total:  floats.Sum(x),
	}
}

// Summary is the end-of-run report over all results.
type Summary struct {
	Total       int
	Successful  int
	Failed      int
	SuccessRate float64
	// Timing is per-file analysis time in seconds.
	Timing  Spread
	Metrics map[string]Spread
	Errors  []models.FileResult
}

// summaryMetrics are the per-file values summarised over successful files,
// in print order.
var summaryMetrics = []struct {
	name  string
	value func(models.FileResult) float64
}{
	{"score", func(r models.FileResult) float64 { return r.Score }},
	{"n_chirps", func(r models.FileResult) float64 { return float64(len(r.Features.Chirps)) }},
	{"n_click_trains", func(r models.FileResult) float64 { return float64(len(r.Features.ClickTrains)) }},
	{"total_clicks", func(r models.FileResult) float64 { return float64(r.Features.TotalClicks()) }},
	{"snr_db", func(r models.FileResult) float64 { return r.Features.SNRDB }},
	{"duration_s", func(r models.FileResult) float64 { return r.Duration }},
}

// Summarize computes success rate, timing and metric spreads.
func Summarize(results []models.FileResult) Summary {
	s := Summary{
		Total:   len(results),
		Metrics: make(map[string]Spread),
	}

	var timings []float64
	columns := make([][]float64, len(summaryMetrics))
	for _, r := range results {
		timings = append(timings, float64(r.ElapsedMS)/1000)
		if r.Failed() {
			s.Failed++
			s.Errors = append(s.Errors, r)
			continue
		}
		s.Successful++
		for i, m := range summaryMetrics {
			columns[i] = append(columns[i], m.value(r))
		}
	}

	if s.Total > 0 {
		s.SuccessRate = 100 * float64(s.Successful) / float64(s.Total)
	}
	s.Timing = spreadOf(timings)
	for i, m := range summaryMetrics {
		if len(columns[i]) > 0 {
			s.Metrics[m.name] = spreadOf(columns[i])
		}
	}
	return s
}

// Print writes the summary as a text report.
func (s Summary) Print(w io.Writer) {
	rule := strings.Repeat("=", 70)
	thin := strings.Repeat("-", 70)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "BATCH PROCESSING SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total files processed: %s\n", humanize.Comma(int64(s.Total)))
	fmt.Fprintf(w, "Successful: %s\n", humanize.Comma(int64(s.Successful)))
	fmt.Fprintf(w, "Failed: %s\n", humanize.Comma(int64(s.Failed)))
	fmt.Fprintf(w, "Success rate: %.1f%%\n", s.SuccessRate)

	if s.Total > 0 {
		fmt.Fprintf(w, "\n%s\nTIMING\n%s\n", thin, thin)
		fmt.Fprintf(w, "  Total: %.2fs\n", s.Timing.Total)
		fmt.Fprintf(w, "  Mean:  %.3fs ± %.3fs\n", s.Timing.Mean, s.Timing.Std)
		fmt.Fprintf(w, "  Range: [%.3fs, %.3fs]\n", s.Timing.Min, s.Timing.Max)
	}

	if len(s.Metrics) > 0 {
		fmt.Fprintf(w, "\n%s\nMETRICS\n%s\n", thin, thin)
		for _, m := range summaryMetrics {
			sp, ok := s.Metrics[m.name]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s:\n", m.name)
			fmt.Fprintf(w, "  Mean:   %.3f ± %.3f\n", sp.Mean, sp.Std)
			fmt.Fprintf(w, "  Median: %.3f\n", sp.Median)
			fmt.Fprintf(w, "  Range:  [%.3f, %.3f]\n", sp.Min, sp.Max)
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "\n%s\nERRORS (%d files)\n%s\n", thin, len(s.Errors), thin)
		for _, r := range s.Errors[:min(5, len(s.Errors))] {
			fmt.Fprintf(w, "  %s: %s\n", filepath.Base(r.Path), *r.Error)
		}
		if len(s.Errors) > 5 {
			fmt.Fprintf(w, "  ... and %d more\n", len(s.Errors)-5)
		}
	}
	fmt.Fprintln(w, rule)
}
