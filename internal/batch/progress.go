package batch

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/dolphain/pkg/models"
)

// Stats are the running counters of a batch run. Resumed results count
// towards Processed but not towards throughput.
type Stats struct {
	Total     int
	Processed int
	Resumed   int
	Errors    int
	Hits      int
	ScoreSum  float64
	Started   time.Time
	Elapsed   time.Duration
}

// Add counts one result.
func (s *Stats) Add(res models.FileResult) {
	s.Processed++
	if res.Failed() {
		s.Errors++
		return
	}
	if res.Hit() {
		s.Hits++
	}
	s.ScoreSum += res.Score
}

// Remaining is the number of sampled files still to process.
func (s Stats) Remaining() int {
	return max(0, s.Total-s.Processed)
}

// HitRate is the percentage of successfully analysed files with at least one
// chirp or click train.
func (s Stats) HitRate() float64 {
	ok := s.Processed - s.Errors
	if ok <= 0 {
		return 0
	}
	return 100 * float64(s.Hits) / float64(ok)
}

// MeanScore averages the scores of successfully analysed files.
func (s Stats) MeanScore() float64 {
	ok := s.Processed - s.Errors
	if ok <= 0 {
		return 0
	}
	return s.ScoreSum / float64(ok)
}

// Throughput is files per second in the current session.
func (s Stats) Throughput() float64 {
	done := s.Processed - s.Resumed
	if done <= 0 || s.Elapsed <= 0 {
		return 0
	}
	return float64(done) / s.Elapsed.Seconds()
}

// ETA extrapolates the current throughput over the remaining files.
func (s Stats) ETA() time.Duration {
	rate := s.Throughput()
	if rate == 0 {
		return 0
	}
	secs := float64(s.Remaining()) / rate
	if secs > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Second)
}

func (s Stats) String() string {
	return fmt.Sprintf("%s/%s files | %s errors | %.1f%% hits | mean score %.1f | %s files/s | ETA %s",
		humanize.Comma(int64(s.Processed)),
		humanize.Comma(int64(s.Total)),
		humanize.Comma(int64(s.Errors)),
		s.HitRate(),
		s.MeanScore(),
		humanize.CommafWithDigits(s.Throughput(), 2),
		s.ETA(),
	)
}

// Observer receives progress events from the orchestrator. Calls happen on
// the orchestrator's goroutine.
type Observer interface {
	Started(stats Stats)
	FileDone(res models.FileResult, stats Stats, took time.Duration)
	Finished(state State, stats Stats)
}

// LogObserver writes a progress line every Every files.
type LogObserver struct {
	Log   Logger
	Every int
}

func (o LogObserver) Started(stats Stats) {
	if stats.Resumed > 0 {
		o.Log.Infof("Resuming: %s of %s files already processed",
			humanize.Comma(int64(stats.Resumed)), humanize.Comma(int64(stats.Total)))
		return
	}
	o.Log.Infof("Processing %s files", humanize.Comma(int64(stats.Total)))
}

func (o LogObserver) FileDone(res models.FileResult, stats Stats, took time.Duration) {
	if res.Failed() {
		o.Log.Warnf("%s failed after %s: %s", res.Filename, took.Round(time.Millisecond), *res.Error)
	}
	every := o.Every
	if every <= 0 {
		every = 50
	}
	if stats.Processed%every == 0 || stats.Remaining() == 0 {
		o.Log.Infof("Progress: %s", stats)
	}
}

func (o LogObserver) Finished(state State, stats Stats) {
	o.Log.Infof("Run %s: %s processed, %s errors, %s hits",
		state, humanize.Comma(int64(stats.Processed)), humanize.Comma(int64(stats.Errors)), humanize.Comma(int64(stats.Hits)))
}

type nopObserver struct{}

func (nopObserver) Started(Stats)                                    {}
func (nopObserver) FileDone(models.FileResult, Stats, time.Duration) {}
func (nopObserver) Finished(State, Stats)                            {}
