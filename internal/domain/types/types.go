// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/okian/circlefit/internal/domain/model"
)

// Entry represents a leaderboard entry: a player's best valid attempt.
type Entry struct {
	Rank          int       `json:"rank"`
	PlayerID      string    `json:"player_id"`
	Score         int       `json:"score"`
	MeanDeviation float64   `json:"mean_deviation"`
	SubmissionID  string    `json:"submission_id"`
	AchievedAt    time.Time `json:"achieved_at"`
}

// Improves reports whether e is a better attempt than prev: a higher score,
// or the same score with a tighter mean deviation.
func (e Entry) Improves(prev Entry) bool {
	if e.Score != prev.Score {
		return e.Score > prev.Score
	}
	return e.MeanDeviation < prev.MeanDeviation
}

// Before orders entries for display: score desc, mean deviation asc,
// player id asc.
func (e Entry) Before(o Entry) bool {
	if e.Score != o.Score {
		return e.Score > o.Score
	}
	if e.MeanDeviation != o.MeanDeviation {
		return e.MeanDeviation < o.MeanDeviation
	}
	return e.PlayerID < o.PlayerID
}

// Submission lifecycle states reported by the API.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// SubmissionStatus is the read model of an asynchronous submission.
type SubmissionStatus struct {
	ID          string             `json:"submission_id"`
	PlayerID    string             `json:"player_id"`
	Status      string             `json:"status"`
	Result      *model.ScoreResult `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	ReceivedAt  time.Time          `json:"received_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}
