package strokegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/circlefit/pkg/logger"
)

const (
	directoryPermission = 0o750
	outputPermission    = 0o600
	percent             = 100
)

// ErrUnhealthy is returned when the service does not answer /healthz.
var ErrUnhealthy = errors.New("service unhealthy")

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(stats.StartTime.UnixNano())
	}
	log.Info(ctx, "starting stroke run",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("strokes", cfg.NumStrokes),
		logger.Int("players", cfg.Players),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Any("seed", seed),
	)

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, err
	}

	gen := NewGenerator(seed)
	players := Players(max(1, cfg.Players))
	strokes := gen.Generate(cfg.NumStrokes, players)
	stats.StrokesGenerated = len(strokes)

	accepted := submitStrokes(ctx, cfg, client, strokes, stats)
	statuses := awaitStatuses(ctx, cfg, client, strokes, accepted, stats)
	rankings := retrieveRankings(ctx, cfg, client, players, stats)

	leaderboard, err := getLeaderboard(ctx, cfg, client, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	verr := verifyResults(ctx, strokes, accepted, statuses, rankings, leaderboard)

	if cfg.OutputFile != "" {
		if err := saveStrokes(cfg.OutputFile, strokes); err != nil {
			log.Warn(ctx, "failed to save strokes", logger.Error(err))
		} else {
			log.Info(ctx, "strokes saved", logger.String("filename", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verr != nil {
		return stats, verr
	}
	log.Info(ctx, "run completed successfully")
	return stats, nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	var body map[string]any
	if _, err := client.GetJSON(ctx, "/healthz", &body); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

func saveStrokes(filename string, strokes []Stroke) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(strokes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal strokes: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write strokes: %w", err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, strokesPerSecond float64
	if stats.StrokesSubmitted > 0 {
		acceptRate = float64(stats.StrokesAccepted) / float64(stats.StrokesSubmitted) * percent
	}
	if stats.Duration > 0 {
		strokesPerSecond = float64(stats.StrokesSubmitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("strokes_generated", stats.StrokesGenerated),
		logger.Int("strokes_submitted", stats.StrokesSubmitted),
		logger.Int("strokes_accepted", stats.StrokesAccepted),
		logger.Int("strokes_duplicate", stats.StrokesDuplicate),
		logger.Int("strokes_rejected", stats.StrokesRejected),
		logger.Int("strokes_failed", stats.StrokesFailed),
		logger.Int("statuses_resolved", stats.StatusesResolved),
		logger.Int("verdict_mismatches", stats.VerdictMismatches),
		logger.Int("rankings_retrieved", stats.RankingsRetrieved),
		logger.Int("leaderboard_entries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("accept_rate", acceptRate),
		logger.Float64("strokes_per_second", strokesPerSecond),
	)
}
