// Package strokegen drives a running service with synthetic strokes and
// checks the leaderboard it builds.
package strokegen

import (
	"time"

	"github.com/okian/circlefit/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumStrokes int           // Number of strokes to generate
	Players    int           // Number of distinct players
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent HTTP workers
	Timeout    time.Duration // HTTP request timeout
	Wait       time.Duration // How long to wait for the workers to drain
	Seed       uint64        // Generator seed; zero picks one from the clock
	OutputFile string        // Optional JSON dump of generated strokes
	Verbose    bool          // Log per-request failures
}

// Stroke is one generated submission with the verdict its shape implies.
type Stroke struct {
	SubmissionID string        `json:"submission_id"`
	PlayerID     string        `json:"player_id"`
	Shape        Shape         `json:"shape"`
	Expect       model.Verdict `json:"expect,omitempty"`
	Points       []model.Point `json:"points"`
}

// Entry mirrors a leaderboard entry on the wire.
type Entry struct {
	Rank          int     `json:"rank"`
	PlayerID      string  `json:"player_id"`
	Score         int     `json:"score"`
	MeanDeviation float64 `json:"mean_deviation"`
	SubmissionID  string  `json:"submission_id"`
}

// Status mirrors a submission status on the wire.
type Status struct {
	SubmissionID string             `json:"submission_id"`
	PlayerID     string             `json:"player_id"`
	Status       string             `json:"status"`
	Result       *model.ScoreResult `json:"result,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// ackResponse is the reply to POST /submissions.
type ackResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
	Duplicate    bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	StrokesGenerated   int
	StrokesSubmitted   int
	StrokesAccepted    int
	StrokesDuplicate   int
	StrokesRejected    int // 4xx other than backpressure
	StrokesFailed      int // transport errors, 5xx and 429
	StatusesResolved   int
	VerdictMismatches  int
	RankingsRetrieved  int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
