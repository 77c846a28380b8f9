package strokegen

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/circlefit/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends log output to stdout and to logFile. An empty logFile
// gets a timestamped name. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	if logFile == "" {
		logFile = "strokegen_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file)), logger.WithLevel(level)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("log_file", logFile))
	return file.Close, nil
}

// ShowHelp prints usage information for the stroke generator.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `circlefit stroke generator
==========================

Submits synthetic strokes to a running circlefit service, waits for them to
be scored and checks the leaderboard the service built.

Usage:
  strokegen [options]

Options:
  -url string       Base URL of the service (default "http://localhost:9080")
  -strokes int      Number of strokes to generate (default 5000)
  -players int      Number of distinct players (default 200)
  -top int          Leaderboard entries to fetch (default 50)
  -workers int      Concurrent HTTP workers (default CPU cores * 2)
  -timeout duration HTTP request timeout (default 30s)
  -wait duration    How long to wait for scoring (default 2m)
  -seed uint        Generator seed, 0 for a clock seed
  -output string    Write generated strokes as JSON to this file
  -log string       Log file (default strokegen_TIMESTAMP.log)
  -verbose          Log per-request failures
  -help             Show this help message

Examples:
  strokegen -strokes 20000 -workers 16
  strokegen -seed 42 -output strokes.json
`)
}
