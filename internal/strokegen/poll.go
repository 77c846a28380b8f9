package strokegen

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/okian/circlefit/internal/domain/types"
	"github.com/okian/circlefit/pkg/logger"
)

const pollInterval = 100 * time.Millisecond

// awaitStatuses polls /submissions/{id} for every accepted stroke until none
// is pending or cfg.Wait elapses. Resolved statuses are returned by index.
func awaitStatuses(ctx context.Context, cfg *Config, client *HTTPClient, strokes []Stroke, accepted []bool, stats *Stats) []Status {
	log := logger.Get()
	statuses := make([]Status, len(strokes))

	pending := make([]int, 0, len(strokes))
	for i, ok := range accepted {
		if ok {
			pending = append(pending, i)
		}
	}
	log.Info(ctx, "waiting for submissions to be scored", logger.Int("pending", len(pending)), logger.Duration("wait", cfg.Wait))

	deadline := time.Now().Add(cfg.Wait)
	for len(pending) > 0 && time.Now().Before(deadline) && ctx.Err() == nil {
		var (
			mu   sync.Mutex
			next []int
		)
		fanOut(ctx, "status", len(pending), cfg.Workers, func(ctx context.Context, j int) {
			i := pending[j]
			var st Status
			_, err := client.GetJSON(ctx, "/submissions/"+url.PathEscape(strokes[i].SubmissionID), &st)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || st.Status == types.StatusPending {
				next = append(next, i)
				return
			}
			statuses[i] = st
		})
		pending = next
		if len(pending) > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(pollInterval):
			}
		}
	}

	for i, st := range statuses {
		if st.Status == "" {
			continue
		}
		stats.StatusesResolved++
		want := strokes[i].Expect
		if want == "" || st.Result == nil {
			continue
		}
		if st.Result.Verdict != want {
			stats.VerdictMismatches++
			if cfg.Verbose {
				log.Warn(ctx, "verdict mismatch",
					logger.String("submission_id", st.SubmissionID),
					logger.String("shape", string(strokes[i].Shape)),
					logger.String("want", string(want)),
					logger.String("got", string(st.Result.Verdict)))
			}
		}
	}
	if len(pending) > 0 {
		log.Warn(ctx, "submissions still pending after wait", logger.Int("pending", len(pending)))
	}
	return statuses
}
