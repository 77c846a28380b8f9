// Package repository holds the leaderboard of personal-best circle scores.
package repository

import (
	"context"

	"github.com/okian/circlefit/internal/domain/types"
)

// Store provides read/write access to the ranking state.
type Store interface {
	// UpdateBest records e as the player's best if it improves on the
	// current one. Returns true if the store changed.
	UpdateBest(ctx context.Context, e types.Entry) (bool, error)

	// Rank returns the player's best entry with its competition rank.
	// Returns ErrNotFound if the player is unknown.
	Rank(ctx context.Context, playerID string) (types.Entry, error)

	// TopN returns the top-N entries ordered by score desc, mean
	// deviation asc, player asc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of ranked players.
	Count(ctx context.Context) int
}
