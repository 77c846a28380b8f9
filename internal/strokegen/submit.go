package strokegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/okian/circlefit/pkg/logger"
)

type submitOutcome int

const (
	outcomeAccepted submitOutcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeFailed
)

// submitStrokes posts every stroke to /submissions concurrently. accepted
// reports, per stroke, whether the service queued it.
func submitStrokes(ctx context.Context, cfg *Config, client *HTTPClient, strokes []Stroke, stats *Stats) (accepted []bool) {
	log := logger.Get()
	log.Info(ctx, "submitting strokes", logger.Int("count", len(strokes)), logger.Int("workers", cfg.Workers))

	accepted = make([]bool, len(strokes))
	var counts [4]atomic.Int64
	fanOut(ctx, "submission", len(strokes), cfg.Workers, func(ctx context.Context, i int) {
		out, err := submitSingleStroke(ctx, client, strokes[i])
		if err != nil && cfg.Verbose {
			log.Warn(ctx, "submission failed", logger.String("submission_id", strokes[i].SubmissionID), logger.Error(err))
		}
		accepted[i] = out == outcomeAccepted
		counts[out].Add(1)
	})

	stats.StrokesAccepted = int(counts[outcomeAccepted].Load())
	stats.StrokesDuplicate = int(counts[outcomeDuplicate].Load())
	stats.StrokesRejected = int(counts[outcomeRejected].Load())
	stats.StrokesFailed = int(counts[outcomeFailed].Load())
	stats.StrokesSubmitted = stats.StrokesAccepted + stats.StrokesDuplicate + stats.StrokesRejected + stats.StrokesFailed

	log.Info(ctx, "stroke submission completed",
		logger.Int("accepted", stats.StrokesAccepted),
		logger.Int("duplicate", stats.StrokesDuplicate),
		logger.Int("rejected", stats.StrokesRejected),
		logger.Int("failed", stats.StrokesFailed),
	)
	return accepted
}

var errUnexpectedAck = errors.New("unexpected acknowledgement")

func submitSingleStroke(ctx context.Context, client *HTTPClient, s Stroke) (submitOutcome, error) {
	var ack ackResponse
	code, err := client.PostJSON(ctx, "/submissions", map[string]any{
		"submission_id": s.SubmissionID,
		"player_id":     s.PlayerID,
		"points":        s.Points,
	}, &ack)
	switch {
	case err != nil && code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests:
		return outcomeRejected, err
	case err != nil:
		return outcomeFailed, err
	case code == http.StatusAccepted:
		return outcomeAccepted, nil
	case code == http.StatusOK && ack.Duplicate:
		return outcomeDuplicate, nil
	default:
		return outcomeFailed, fmt.Errorf("%w: HTTP %d status %q", errUnexpectedAck, code, ack.Status)
	}
}
