package strokegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/pkg/logger"
)

var (
	// ErrVerification is returned when the service state disagrees with
	// what the run submitted.
	ErrVerification = errors.New("verification failed")
	errNotRanked    = errors.New("player not ranked")
)

// retrieveRankings fetches /rank/{player} for every player. Players with no
// valid stroke are skipped.
func retrieveRankings(ctx context.Context, cfg *Config, client *HTTPClient, players []string, stats *Stats) map[string]Entry {
	log := logger.Get()
	log.Info(ctx, "retrieving rankings", logger.Int("players", len(players)))

	var mu sync.Mutex
	out := make(map[string]Entry, len(players))
	fanOut(ctx, "ranking", len(players), cfg.Workers, func(ctx context.Context, i int) {
		e, err := retrieveSingleRanking(ctx, client, players[i])
		if err != nil {
			if cfg.Verbose && !errors.Is(err, errNotRanked) {
				log.Warn(ctx, "failed to get rank", logger.String("player_id", players[i]), logger.Error(err))
			}
			return
		}
		mu.Lock()
		out[players[i]] = e
		mu.Unlock()
	})
	stats.RankingsRetrieved = len(out)
	return out
}

func retrieveSingleRanking(ctx context.Context, client *HTTPClient, playerID string) (Entry, error) {
	var e Entry
	code, err := client.GetJSON(ctx, "/rank/"+url.PathEscape(playerID), &e)
	if code == http.StatusNotFound {
		return Entry{}, errNotRanked
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// getLeaderboard fetches the top cfg.TopN entries.
func getLeaderboard(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) ([]Entry, error) {
	var entries []Entry
	if _, err := client.GetJSON(ctx, "/leaderboard?limit="+strconv.Itoa(cfg.TopN), &entries); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	return entries, nil
}

// verifyResults checks the leaderboard ordering, score range and
// competition ranks, its agreement with /rank, and that every ranked player
// holds the best score among their valid strokes. Players with an accepted stroke still
// unresolved are left out of the last check.
func verifyResults(ctx context.Context, strokes []Stroke, accepted []bool, statuses []Status, rankings map[string]Entry, leaderboard []Entry) error {
	var problems []error

	for i := 1; i < len(leaderboard); i++ {
		prev, cur := leaderboard[i-1], leaderboard[i]
		if cur.Score > prev.Score || (cur.Score == prev.Score && cur.MeanDeviation < prev.MeanDeviation) {
			problems = append(problems, fmt.Errorf("leaderboard out of order at %d: %s before %s", i, prev.PlayerID, cur.PlayerID))
		}
		wantRank := i + 1
		if cur.Score == prev.Score {
			wantRank = prev.Rank
		}
		if cur.Rank != wantRank {
			problems = append(problems, fmt.Errorf("player %s has rank %d, want %d", cur.PlayerID, cur.Rank, wantRank))
		}
	}
	if len(leaderboard) > 0 && leaderboard[0].Rank != 1 {
		problems = append(problems, fmt.Errorf("leader has rank %d", leaderboard[0].Rank))
	}

	for _, e := range leaderboard {
		if e.Score < 0 || e.Score > 100 {
			problems = append(problems, fmt.Errorf("player %s: score %d out of range", e.PlayerID, e.Score))
		}
		r, ok := rankings[e.PlayerID]
		if !ok {
			continue
		}
		if r.Rank != e.Rank || r.Score != e.Score {
			problems = append(problems, fmt.Errorf("player %s: leaderboard rank %d score %d, rank endpoint %d score %d",
				e.PlayerID, e.Rank, e.Score, r.Rank, r.Score))
		}
	}

	best := make(map[string]int)
	unresolved := make(map[string]bool)
	for i, st := range statuses {
		if accepted[i] && st.Status == "" {
			unresolved[strokes[i].PlayerID] = true
		}
		if st.Result == nil || st.Result.Verdict != model.VerdictValid {
			continue
		}
		p := strokes[i].PlayerID
		if cur, ok := best[p]; !ok || st.Result.Score > cur {
			best[p] = st.Result.Score
		}
	}
	for p, e := range rankings {
		if unresolved[p] {
			continue
		}
		if want, ok := best[p]; ok && e.Score != want {
			problems = append(problems, fmt.Errorf("player %s: ranked score %d, best observed %d", p, e.Score, want))
		}
	}

	if len(problems) > 0 {
		for _, p := range problems {
			logger.Get().Error(ctx, "verification problem", logger.Error(p))
		}
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(problems...))
	}
	logger.Get().Info(ctx, "verification passed",
		logger.Int("leaderboard_entries", len(leaderboard)),
		logger.Int("ranked_players", len(rankings)))
	return nil
}
