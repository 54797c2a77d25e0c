package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/himanishpuri/dolphain/internal/config"
	"github.com/himanishpuri/dolphain/pkg/logger"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run dispatches one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	log := logger.GetLogger()

	if len(args) < 1 {
		printUsage(stdout)
		return exitFailure
	}

	env, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(stdout, "❌ Invalid configuration: %v\n", err)
		log.Errorf("Config load failed: %v", err)
		return exitFailure
	}
	if level, ok := logger.ParseLevel(env.LogLevel); ok {
		log.SetLevel(level)
	}
	log.SetShowCaller(env.LogCaller)

	cli := &app{env: env, log: log, out: stdout}
	command := args[0]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "find":
		return cli.handleFind(ctx, args[1:])
	case "analyze":
		return cli.handleAnalyze(ctx, args[1:])
	case "info":
		return cli.handleInfo(ctx, args[1:])
	case "export":
		return cli.handleExport(ctx, args[1:])
	case "list":
		return cli.handleList(ctx, args[1:])
	case "help", "-h", "--help":
		printBanner(stdout)
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", command)
		printUsage(stdout)
		return exitFailure
	}
}

func printBanner(w io.Writer) {
	banner := `
     _       _       _           _
  __| | ___ | |_ __ | |__   __ _(_)_ __
 / _' |/ _ \| | '_ \| '_ \ / _' | | '_ \
| (_| | (_) | | |_) | | | | (_| | | | | |
 \__,_|\___/|_| .__/|_| |_|\__,_|_|_| |_|
              |_|
        Hydrophone Recording Triage
`
	fmt.Fprintln(w, banner)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "dolphain - find the interesting files in large hydrophone datasets")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  dolphain find (--file-list <file> | --data-dir <dir>) [--n-files N] [--output-dir DIR]")
	fmt.Fprintln(w, "                [--resume] [--mode interestingness|unique] [--seed N] [--top N] [--no-progress]")
	fmt.Fprintln(w, "  dolphain analyze <file> [--mode interestingness|unique]")
	fmt.Fprintln(w, "  dolphain info <file>")
	fmt.Fprintln(w, "  dolphain export [--results results.json] [--out DIR] [--top N] [--no-clips]")
	fmt.Fprintln(w, "  dolphain list [--top N] [--mode M] [--runs | --run ID | --delete ID]")
	fmt.Fprintln(w, "  dolphain help")
	fmt.Fprintln(w, "\nEnvironment:")
	fmt.Fprintln(w, "  DOLPHAIN_*          run defaults (mode, seed, output dir, db path, S3 publishing)")
	fmt.Fprintln(w, "  CHIRP_*, CLICK_*    detector tuning")
	fmt.Fprintln(w, "  LOG_LEVEL           debug, info, warn or error")
	fmt.Fprintln(w, "  LOG_CALLER          true to tag log lines with file:line")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  # Score a random sample of 1000 EARS files")
	fmt.Fprintln(w, "  dolphain find --data-dir /data/ears --n-files 1000 --output-dir results")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Continue after Ctrl-C")
	fmt.Fprintln(w, "  dolphain find --data-dir /data/ears --n-files 1000 --output-dir results --resume")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Render spectrograms for the ten best files")
	fmt.Fprintln(w, "  dolphain export --results results/results.json --top 10")
}
