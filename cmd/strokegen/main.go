package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/circlefit/internal/strokegen"
)

const (
	defaultNumStrokes = 5000
	defaultPlayers    = 200
	defaultTopN       = 50
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultWait       = 2 * time.Minute
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numStrokes = flag.Int("strokes", defaultNumStrokes, "Number of strokes to generate and submit")
		players    = flag.Int("players", defaultPlayers, "Number of distinct players")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait       = flag.Duration("wait", defaultWait, "How long to wait for submissions to be scored")
		seed       = flag.Uint64("seed", 0, "Generator seed (0 seeds from the clock)")
		outputFile = flag.String("output", "", "Output file for generated strokes")
		logFile    = flag.String("log", "", "Log file (default: strokegen_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		strokegen.ShowHelp(os.Stdout)
		return 0
	}

	closeLog, err := strokegen.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &strokegen.Config{
		BaseURL:    *baseURL,
		NumStrokes: *numStrokes,
		Players:    *players,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		Wait:       *wait,
		Seed:       *seed,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}
	if _, err := strokegen.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
