package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/circlefit/internal/domain/types"
	"github.com/okian/circlefit/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// BST order is types.Entry.Before: in-order traversal yields the
// leaderboard from best to worst. Heap order is a random priority.

type node struct {
	e     types.Entry
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, e types.Entry, prio uint64) *node {
	if n == nil {
		return &node{e: e, prio: prio, size: 1}
	}
	if e.Before(n.e) {
		n.left = insert(n.left, e, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, e, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, e types.Entry) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.e.PlayerID == e.PlayerID:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, e)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, e)
		}
	case e.Before(n.e):
		n.left = deleteNode(n.left, e)
	default:
		n.right = deleteNode(n.right, e)
	}
	fix(n)
	return n
}

// countAbove returns how many entries have a strictly higher score.
func countAbove(n *node, score int) int {
	count := 0
	for n != nil {
		if n.e.Score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.e)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// assignRanks sets competition ranks on a prefix of the leaderboard:
// equal scores share a rank and the next distinct score skips ahead.
func assignRanks(entries []types.Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// TreapStore keeps each player's best entry in a treap.
type TreapStore struct {
	mu                    sync.RWMutex
	root                  *node
	byID                  map[string]types.Entry
	prio                  func() uint64
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store and starts its metrics updater,
// which runs until ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:                  make(map[string]types.Entry),
		prio:                  rand.Uint64,
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutines.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// UpdateBest implements Store.UpdateBest with O(log n) expected time.
func (s *TreapStore) UpdateBest(_ context.Context, e types.Entry) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if e.PlayerID == "" || e.Score < 0 || e.Score > 100 {
		metrics.RecordErrorByComponent("repository", "invalid_entry")
		return false, fmt.Errorf("%w: player %q score %d", ErrInvalidEntry, e.PlayerID, e.Score)
	}
	e.Rank = 0

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[e.PlayerID]; ok {
		if !e.Improves(old) {
			return false, nil
		}
		s.root = deleteNode(s.root, old)
	}
	s.byID[e.PlayerID] = e
	s.root = insert(s.root, e, s.prio())
	return true, nil
}

// Rank returns the player's best entry and competition rank in O(log n).
func (s *TreapStore) Rank(_ context.Context, playerID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}
	e.Rank = countAbove(s.root, e.Score) + 1
	return e, nil
}

// TopN returns the top N entries with their ranks.
func (s *TreapStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Entry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &out)
	assignRanks(out)
	return out, nil
}

// Count returns the number of ranked players.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	count := len(s.byID)
	s.mu.RUnlock()
	metrics.UpdateRepositoryRecordsTotal(count)
	metrics.UpdateTotalPlayers(count)
}
