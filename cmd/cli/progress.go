package main

import (
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/dolphain/internal/batch"
	"github.com/himanishpuri/dolphain/pkg/models"
)

// barObserver draws a terminal progress bar for a batch run.
type barObserver struct {
	p    *mpb.Progress
	bar  *mpb.Bar
	once sync.Once
}

func newBarObserver(w io.Writer) *barObserver {
	return &barObserver{p: mpb.New(mpb.WithWidth(64), mpb.WithOutput(w))}
}

func (o *barObserver) Started(stats batch.Stats) {
	o.bar = o.p.AddBar(int64(stats.Total),
		mpb.PrependDecorators(
			decor.Name("Analyzing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Name(" "),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
	// resumed files count as done
	o.bar.SetCurrent(int64(stats.Processed))
}

func (o *barObserver) FileDone(_ models.FileResult, _ batch.Stats, took time.Duration) {
	o.bar.EwmaIncrement(took)
}

func (o *barObserver) Finished(state batch.State, _ batch.Stats) {
	if state != batch.StateCompleted {
		o.bar.Abort(false)
	}
	o.wait()
}

// wait releases the bar even when the run failed before Finished.
func (o *barObserver) wait() {
	o.once.Do(func() {
		if o.bar != nil && !o.bar.Completed() {
			o.bar.Abort(false)
		}
		o.p.Wait()
	})
}
