package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/dolphain/internal/audio"
	"github.com/himanishpuri/dolphain/internal/batch"
	"github.com/himanishpuri/dolphain/internal/config"
	"github.com/himanishpuri/dolphain/internal/export"
	"github.com/himanishpuri/dolphain/pkg/dolphain"
	"github.com/himanishpuri/dolphain/pkg/logger"
)

type app struct {
	env *config.Config
	log *logger.Logger
	out io.Writer
}

// splitArgs separates leading positional arguments from flags so that
// "analyze file.190 --mode unique" parses.
func splitArgs(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

func (a *app) handleFind(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fileList := fs.String("file-list", a.env.FileList, "Text file with one recording path per line")
	dataDir := fs.String("data-dir", a.env.DataDir, "Directory searched recursively for EARS files")
	nFiles := fs.Int("n-files", a.env.NFiles, "Random sample size (0 = all files)")
	outputDir := fs.String("output-dir", a.env.OutputDir, "Directory for results and the checkpoint")
	resume := fs.Bool("resume", false, "Continue from the checkpoint in the output directory")
	mode := fs.String("mode", a.env.Mode, "Scoring mode: interestingness or unique")
	seed := fs.Uint64("seed", a.env.Seed, "Sampling seed")
	top := fs.Int("top", a.env.TopN, "Number of files in the top-N report")
	noProgress := fs.Bool("no-progress", false, "Log progress lines instead of drawing a bar")
	noIndex := fs.Bool("no-index", a.env.NoIndex, "Do not record the run in the SQLite index")
	dbPath := fs.String("db", a.env.DBPath, "Path to the SQLite results index")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	if (*fileList == "") == (*dataDir == "") {
		fmt.Fprintln(a.out, "Error: exactly one of --file-list or --data-dir is required")
		return exitFailure
	}

	var (
		files []string
		err   error
	)
	if *fileList != "" {
		files, err = batch.ReadFileList(*fileList)
	} else {
		fmt.Fprintf(a.out, "🔍 Searching %s for recordings...\n", *dataDir)
		files, err = batch.FindDataFiles(*dataDir)
	}
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to collect input files: %v\n", err)
		a.log.Errorf("Input discovery failed: %v", err)
		return exitFailure
	}
	if len(files) == 0 {
		fmt.Fprintln(a.out, "❌ No input files found")
		return exitFailure
	}
	fmt.Fprintf(a.out, "📂 Found %s files\n", humanize.Comma(int64(len(files))))

	var (
		observer dolphain.Observer
		bar      *barObserver
	)
	if *noProgress || !logger.IsTerminal(a.out) {
		observer = batch.LogObserver{Log: a.log, Every: 100}
	} else {
		bar = newBarObserver(a.out)
		observer = bar
	}

	opts := []dolphain.Option{
		dolphain.FromEnv(a.env),
		dolphain.WithMode(*mode),
		dolphain.WithSeed(*seed),
		dolphain.WithNFiles(*nFiles),
		dolphain.WithOutputDir(*outputDir),
		dolphain.WithTopN(*top),
		dolphain.WithDBPath(*dbPath),
		dolphain.WithLogger(a.log.With("find")),
		dolphain.WithObserver(observer),
	}
	if *noIndex {
		opts = append(opts, dolphain.WithoutIndex())
	}

	svc, err := dolphain.NewService(opts...)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to create service: %v\n", err)
		a.log.Errorf("Service initialization failed: %v", err)
		return exitFailure
	}
	defer svc.Close()

	report, err := svc.Find(ctx, files, *resume)
	if bar != nil {
		bar.wait()
	}
	if err != nil {
		fmt.Fprintf(a.out, "\n❌ Run failed: %v\n", err)
		a.log.Errorf("Find failed: %v", err)
		return exitFailure
	}

	report.Summary.Print(a.out)
	fmt.Fprintf(a.out, "\nRun %s (%s mode, seed %d)\n", report.Run.RunID, report.Run.Mode, report.Run.Seed)
	for _, p := range report.Outputs {
		fmt.Fprintf(a.out, "   %s\n", p)
	}
	for _, loc := range report.Published {
		fmt.Fprintf(a.out, "   ☁️  %s\n", loc)
	}

	if report.Interrupted() {
		fmt.Fprintf(a.out, "\n⏸️  Interrupted after %d of %d files. Rerun with --resume to continue.\n",
			report.Stats.Processed, report.Stats.Total)
		return exitInterrupted
	}
	fmt.Fprintln(a.out, "\n✅ Done")
	return exitOK
}

func (a *app) handleAnalyze(ctx context.Context, args []string) int {
	positional, flagArgs := splitArgs(args)

	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(a.out)
	mode := fs.String("mode", a.env.Mode, "Scoring mode: interestingness or unique")
	if err := fs.Parse(flagArgs); err != nil {
		return exitFailure
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 1 {
		fmt.Fprintln(a.out, "Usage: dolphain analyze <file> [--mode interestingness|unique]")
		return exitFailure
	}

	svc, err := dolphain.NewService(
		dolphain.FromEnv(a.env),
		dolphain.WithMode(*mode),
		dolphain.WithLogger(a.log.With("analyze")),
		dolphain.WithoutIndex(),
	)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to create service: %v\n", err)
		return exitFailure
	}
	defer svc.Close()

	res := svc.AnalyzeFile(ctx, positional[0])
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to encode result: %v\n", err)
		return exitFailure
	}
	fmt.Fprintln(a.out, string(data))

	if res.Failed() {
		return exitFailure
	}
	return exitOK
}

func (a *app) handleInfo(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: dolphain info <file>")
		return exitFailure
	}

	meta, err := audio.Probe(ctx, args[0])
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to read recording: %v\n", err)
		a.log.Errorf("Probe failed: %v", err)
		return exitFailure
	}

	fmt.Fprintf(a.out, "\n📄 %s\n", meta.Filename)
	fmt.Fprintf(a.out, "   Format:      %s\n", meta.Format)
	fmt.Fprintf(a.out, "   Size:        %s\n", humanize.Bytes(uint64(meta.SizeBytes)))
	fmt.Fprintf(a.out, "   Sample rate: %s Hz\n", humanize.Comma(int64(meta.SampleRate)))
	fmt.Fprintf(a.out, "   Channels:    %d x %d bit\n", meta.Channels, meta.BitDepth)
	fmt.Fprintf(a.out, "   Samples:     %s\n", humanize.Comma(meta.Samples))
	fmt.Fprintf(a.out, "   Duration:    %.3f s\n", meta.DurationSec)
	if meta.Records > 0 {
		fmt.Fprintf(a.out, "   Records:     %s\n", humanize.Comma(int64(meta.Records)))
	}
	if !meta.StartTime.IsZero() {
		fmt.Fprintf(a.out, "   Start:       %s\n", meta.StartTime.Format(time.RFC3339Nano))
		fmt.Fprintf(a.out, "   End:         %s\n", meta.EndTime().Format(time.RFC3339Nano))
	}
	if meta.Title != "" {
		fmt.Fprintf(a.out, "   Title:       %s\n", meta.Title)
	}
	return exitOK
}

func (a *app) handleExport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(a.out)
	results := fs.String("results", filepath.Join(a.env.OutputDir, batch.ResultsJSONFile), "results.json written by find")
	outDir := fs.String("out", filepath.Join(a.env.OutputDir, "showcase"), "Directory for PNGs and clips")
	top := fs.Int("top", 10, "Number of files to export")
	noClips := fs.Bool("no-clips", false, "Only render spectrograms")
	width := fs.Int("width", export.DefaultWidth, "Spectrogram width in pixels")
	height := fs.Int("height", export.DefaultHeight, "Spectrogram height in pixels")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	opts := []export.Option{
		export.WithSize(*width, *height),
		export.WithWavelet(a.env.Wavelet),
		export.WithLogger(a.log.With("export")),
	}
	if *noClips {
		opts = append(opts, export.WithoutClips())
	}
	exp, err := export.New(opts...)
	if err != nil {
		fmt.Fprintf(a.out, "❌ %v\n", err)
		return exitFailure
	}

	fmt.Fprintf(a.out, "🎨 Exporting top %d files from %s...\n", *top, *results)
	artifacts, err := exp.ExportResults(ctx, *results, *outDir, *top)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Export failed: %v\n", err)
		a.log.Errorf("Export failed: %v", err)
		if errors.Is(err, context.Canceled) {
			return exitInterrupted
		}
		return exitFailure
	}

	for _, art := range artifacts {
		fmt.Fprintf(a.out, "%2d. %-20s score %6.1f  %s\n", art.Rank, filepath.Base(art.Path), art.Score, art.PNG)
	}
	fmt.Fprintf(a.out, "\n✅ Exported %d files to %s\n", len(artifacts), *outDir)
	return exitOK
}

func (a *app) handleList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.out)
	top := fs.Int("top", 20, "Number of files to show")
	mode := fs.String("mode", "", "Only runs scored in this mode")
	runs := fs.Bool("runs", false, "List indexed runs instead of files")
	runID := fs.String("run", "", "Show every file of one run")
	deleteID := fs.String("delete", "", "Remove a run from the index")
	dbPath := fs.String("db", a.env.DBPath, "Path to the SQLite results index")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	idx, err := dolphain.NewSQLiteIndex(*dbPath)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to open index: %v\n", err)
		a.log.Errorf("Index open failed: %v", err)
		return exitFailure
	}
	defer idx.Close()

	switch {
	case *deleteID != "":
		return a.deleteRun(ctx, idx, *deleteID)
	case *runID != "":
		return a.showRun(ctx, idx, *runID)
	case *runs:
		return a.listRuns(ctx, idx)
	}

	files, err := idx.TopFiles(ctx, *top, *mode)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to query index: %v\n", err)
		return exitFailure
	}
	if len(files) == 0 {
		fmt.Fprintln(a.out, "\n📭 No indexed files")
		return exitOK
	}

	fmt.Fprintf(a.out, "\n🏆 Top %d files across all runs:\n\n", len(files))
	fmt.Fprintf(a.out, "%-4s %-7s %-7s %-7s %-6s %-20s %s\n", "Rank", "Score", "Chirps", "Trains", "SNR", "File", "Run")
	fmt.Fprintln(a.out, strings.Repeat("-", 90))
	for i, f := range files {
		fmt.Fprintf(a.out, "%-4d %-7.1f %-7d %-7d %-6.1f %-20s %s\n",
			i+1, f.Score, f.NChirps, f.NClickTrains, f.SNRDB, f.Filename, f.RunID)
	}
	return exitOK
}

func (a *app) showRun(ctx context.Context, idx dolphain.Index, runID string) int {
	run, err := idx.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, dolphain.ErrRunNotFound) {
			fmt.Fprintf(a.out, "❌ No indexed run %s\n", runID)
		} else {
			fmt.Fprintf(a.out, "❌ Failed to query index: %v\n", err)
		}
		return exitFailure
	}
	files, err := idx.RunFiles(ctx, runID)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to query index: %v\n", err)
		return exitFailure
	}

	fmt.Fprintf(a.out, "\n📚 Run %s (%s mode, seed %d)\n", run.ID, run.Mode, run.Seed)
	fmt.Fprintf(a.out, "   Files:  %s analyzed, %s errors\n", humanize.Comma(int64(run.NFiles)), humanize.Comma(int64(run.NErrors)))
	fmt.Fprintf(a.out, "   Output: %s\n\n", run.OutputDir)
	fmt.Fprintf(a.out, "%-4s %-7s %-7s %-7s %-6s %s\n", "Rank", "Score", "Chirps", "Trains", "SNR", "File")
	fmt.Fprintln(a.out, strings.Repeat("-", 70))
	for i, f := range files {
		fmt.Fprintf(a.out, "%-4d %-7.1f %-7d %-7d %-6.1f %s\n",
			i+1, f.Score, f.NChirps, f.NClickTrains, f.SNRDB, f.Filename)
	}
	return exitOK
}

func (a *app) deleteRun(ctx context.Context, idx dolphain.Index, runID string) int {
	if err := idx.DeleteRun(ctx, runID); err != nil {
		if errors.Is(err, dolphain.ErrRunNotFound) {
			fmt.Fprintf(a.out, "❌ No indexed run %s\n", runID)
		} else {
			fmt.Fprintf(a.out, "❌ Failed to delete run: %v\n", err)
		}
		return exitFailure
	}
	a.log.Infof("Deleted run %s from the index", runID)
	fmt.Fprintf(a.out, "🗑️  Removed run %s from the index\n", runID)
	return exitOK
}

func (a *app) listRuns(ctx context.Context, idx dolphain.Index) int {
	runs, err := idx.ListRuns(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Failed to query index: %v\n", err)
		return exitFailure
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "\n📭 No indexed runs")
		return exitOK
	}

	fmt.Fprintf(a.out, "\n📚 Found %d run(s):\n\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(a.out, "%s  %s mode, seed %d\n", r.ID, r.Mode, r.Seed)
		fmt.Fprintf(a.out, "   Files:  %s analyzed, %s errors\n", humanize.Comma(int64(r.NFiles)), humanize.Comma(int64(r.NErrors)))
		fmt.Fprintf(a.out, "   When:   %s (took %s)\n", humanize.Time(r.StartedAt), r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
		fmt.Fprintf(a.out, "   Output: %s\n\n", r.OutputDir)
	}
	return exitOK
}
