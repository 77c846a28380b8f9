// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/okian/circlefit/internal/adapters/mq/queue"
	"github.com/okian/circlefit/internal/adapters/mq/worker"
	"github.com/okian/circlefit/internal/adapters/render"
	"github.com/okian/circlefit/internal/adapters/repository"
	"github.com/okian/circlefit/internal/domain/dedupe"
	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/internal/domain/scoring"
	"github.com/okian/circlefit/internal/domain/session"
	"github.com/okian/circlefit/internal/domain/types"
	"github.com/okian/circlefit/pkg/logger"
	"github.com/okian/circlefit/pkg/metrics"
)

const (
	defaultQueueSize       = 10000
	defaultDedupeSize      = 50000
	defaultMaxSessions     = 1024
	defaultSessionTTL      = 30 * time.Minute
	systemMetricsInterval  = 10 * time.Second
	overlayDeviationPoints = 100.0 // deviation that costs this many points is drawn fully red
)

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the circle scoring engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	evaluator   *scoring.Evaluator
	sessions    *session.Registry
	leaderboard *repository.TreapStore
	deduper     dedupe.Deduper
	queue       *queue.InMemoryQueue
	pool        *worker.Pool
	results     *resultCache

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	resultCacheSize int
	maxSessions     int
	sessionTTL      time.Duration
	policy          scoring.Policy
	overlayWidth    int
	overlayHeight   int

	// State
	started   bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithResultCacheSize bounds how many submission statuses are kept.
func WithResultCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.resultCacheSize = size
		}
	}
}

// WithMaxSessions bounds the number of live drawing sessions.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithSessionTTL sets how long an unused session lives before it is reclaimed.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithPolicy sets the evaluation policy. It is validated by Start.
func WithPolicy(p scoring.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithOverlaySize sets the overlay canvas size.
func WithOverlaySize(width, height int) Option {
	return func(s *Service) {
		if width > 0 && height > 0 {
			s.overlayWidth = width
			s.overlayHeight = height
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		resultCacheSize: defaultResultCacheSize,
		maxSessions:     defaultMaxSessions,
		sessionTTL:      defaultSessionTTL,
		policy:          scoring.DefaultPolicy(),
		overlayWidth:    render.DefaultWidth,
		overlayHeight:   render.DefaultHeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting circlefit service...")

	evaluator, err := scoring.NewEvaluator(scoring.WithPolicy(s.policy))
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.evaluator = evaluator
	s.sessions = session.NewRegistry(evaluator, session.WithMaxSessions(s.maxSessions))
	s.leaderboard = repository.NewTreapStore(ctx)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.results = newResultCache(s.resultCacheSize)
	s.pool = worker.NewPool(s.workerCount, s.queue, evaluator, s.leaderboard, worker.WithSink(s))
	s.pool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.wg.Add(2)
	go s.expireSessions(ctx)
	go s.collectSystemMetrics(ctx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "circlefit service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("max_sessions", s.maxSessions),
		logger.Int("min_points", s.policy.MinPoints),
		logger.Float64("coverage_threshold_degrees", s.policy.CoverageThresholdDegrees),
		logger.Float64("min_radius", s.policy.MinRadius),
		logger.Float64("deviation_sensitivity", s.policy.DeviationSensitivity),
	)
	return nil
}

// Stop gracefully shuts down the service. Queued submissions are drained
// before it returns.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping circlefit service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	close(s.stopCh)
	s.wg.Wait()
	_ = s.leaderboard.Close()

	s.started = false
	s.logger.Info(ctx, "circlefit service stopped")
}

func (s *Service) expireSessions(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sessionTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			if n := s.sessions.Expire(now.Add(-s.sessionTTL)); n > 0 {
				s.logger.Debug(ctx, "expired sessions", logger.Int("count", n))
			}
			metrics.UpdateSessionsActive(s.sessions.Len())
		}
	}
}

func (s *Service) collectSystemMetrics(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()
	var ms runtime.MemStats
	for {
		runtime.ReadMemStats(&ms)
		metrics.UpdateSystemMemoryUsage(ms.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		if ms.NumGC > 0 {
			metrics.RecordSystemGCPauseTime(float64(ms.PauseNs[(ms.NumGC+255)%256]) / 1e6)
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// SeenAndRecord atomically checks if a submission id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes a submission id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// MinPoints is the policy's minimum stroke length.
func (s *Service) MinPoints() int { return s.policy.MinPoints }

// Policy returns the active evaluation policy.
func (s *Service) Policy() scoring.Policy { return s.policy }

// Enqueue tracks sub as pending and queues it for the workers.
func (s *Service) Enqueue(ctx context.Context, sub model.Submission) bool { //nolint:gocritic // hugeParam: value semantics for queue payload
	s.results.put(types.SubmissionStatus{
		ID:         sub.ID,
		PlayerID:   sub.PlayerID,
		Status:     types.StatusPending,
		ReceivedAt: sub.ReceivedAt,
	})
	if !s.queue.Enqueue(ctx, sub) {
		s.results.remove(sub.ID)
		s.logger.Warn(ctx, "submission queue refused",
			logger.String("submission_id", sub.ID),
			logger.Int("queue_length", s.queue.Len(ctx)),
		)
		return false
	}
	s.logger.Debug(ctx, "submission queued",
		logger.String("submission_id", sub.ID),
		logger.String("player_id", sub.PlayerID),
		logger.Int("points", len(sub.Points)),
	)
	return true
}

// Complete records the worker outcome of a submission.
func (s *Service) Complete(ctx context.Context, sub model.Submission, res model.ScoreResult, err error) { //nolint:gocritic // hugeParam: matches worker.Sink
	now := time.Now().UTC()
	s.results.update(sub.ID, func(st *types.SubmissionStatus) {
		st.CompletedAt = &now
		if err != nil {
			st.Status = types.StatusFailed
			st.Error = err.Error()
			return
		}
		st.Status = types.StatusDone
		st.Result = &res
	})
	if err != nil {
		s.logger.Warn(ctx, "submission failed",
			logger.String("submission_id", sub.ID),
			logger.Error(err),
		)
	}
}

// Submission returns the status of a tracked submission.
func (s *Service) Submission(_ context.Context, id string) (types.SubmissionStatus, bool) {
	return s.results.get(id)
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.leaderboard.TopN(ctx, n)
}

// Rank returns the best entry and rank of a player.
func (s *Service) Rank(ctx context.Context, playerID string) (types.Entry, error) {
	return s.leaderboard.Rank(ctx, playerID)
}

// Evaluate scores points synchronously.
func (s *Service) Evaluate(points []model.Point) (model.ScoreResult, error) {
	start := time.Now()
	res, err := s.evaluator.Evaluate(points)
	metrics.RecordEvaluationLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return res, err
	}
	observe(res)
	return res, nil
}

func observe(res model.ScoreResult) {
	metrics.RecordEvaluation(string(res.Verdict))
	if res.Circle.Degenerate {
		metrics.RecordDegenerateFit()
	}
	if res.Valid() {
		metrics.RecordScore(res.Score)
	}
}

// Overlay renders points and res at the configured size.
func (s *Service) Overlay(points []model.Point, res model.ScoreResult) image.Image {
	start := time.Now()
	img := render.Overlay(points, res,
		render.WithSize(s.overlayWidth, s.overlayHeight),
		render.WithDeviationScale(overlayDeviationPoints/s.evaluator.Scorer().Sensitivity()),
	)
	metrics.RecordOverlayRenderLatency(float64(time.Since(start).Microseconds()) / 1000)
	return img
}

// CreateSession opens a new drawing session.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	id, err := s.sessions.Create()
	if err != nil {
		metrics.RecordErrorByComponent("session", "registry_full")
		return "", fmt.Errorf("create session: %w", err)
	}
	metrics.RecordSessionCreated()
	metrics.UpdateSessionsActive(s.sessions.Len())
	s.logger.Debug(ctx, "session created", logger.String("session_id", id))
	return id, nil
}

// DeleteSession drops a session.
func (s *Service) DeleteSession(_ context.Context, id string) error {
	if err := s.sessions.Delete(id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	metrics.UpdateSessionsActive(s.sessions.Len())
	return nil
}

// WithSession runs fn while holding the session exclusively.
func (s *Service) WithSession(_ context.Context, id string, fn func(*session.Session) error) error {
	return s.sessions.Do(id, fn)
}

// SubmitSession evaluates the session stroke. A scored stroke is recorded
// for playerID when one is given; the first player to claim a score owns
// it and later claims by others fail with session.ErrClaimed.
func (s *Service) SubmitSession(ctx context.Context, id, playerID string) (session.Outcome, error) {
	var (
		out     session.Outcome
		fresh   bool
		claimed bool
	)
	err := s.sessions.Do(id, func(sess *session.Session) error {
		fresh = !sess.State().Terminal()
		var err error
		if out, err = sess.Submit(); err != nil {
			return err
		}
		if out.State == session.StateScored && playerID != "" {
			claimed, err = sess.Claim(playerID)
		}
		return err
	})
	if fresh && err == nil && out.Reason != session.ReasonTooShort {
		observe(out.Result)
	}
	if err != nil {
		return out, fmt.Errorf("submit session: %w", err)
	}
	if !claimed {
		return out, nil
	}

	updated, err := s.leaderboard.UpdateBest(ctx, types.Entry{
		PlayerID:      playerID,
		Score:         out.Result.Score,
		MeanDeviation: out.Result.MeanDeviation,
		SubmissionID:  id,
		AchievedAt:    time.Now().UTC(),
	})
	if err != nil {
		return out, fmt.Errorf("record session score: %w", err)
	}
	if updated {
		metrics.RecordLeaderboardUpdate()
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"workers":      s.workerCount,
		"queue_size":   s.queueSize,
		"dedupe_limit": s.dedupeSize,
		"policy":       s.policy,
		"goroutines":   runtime.NumGoroutine(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	players := s.leaderboard.Count(ctx)
	stats["workers"] = s.pool.Size()
	stats["workers_active"] = s.pool.Active()
	stats["queue_length"] = queueLen
	stats["queue_capacity"] = s.queue.Capacity()
	stats["leaderboard_size"] = players
	stats["sessions_active"] = s.sessions.Len()
	stats["submissions_tracked"] = s.results.size()
	stats["dedupe_size"] = s.deduper.Size()
	stats["uptime"] = time.Since(s.startedAt).Round(time.Second).String()

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateTotalPlayers(players)
	metrics.UpdateSessionsActive(s.sessions.Len())
	return stats
}
