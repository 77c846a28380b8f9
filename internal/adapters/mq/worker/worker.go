// Package worker evaluates queued submissions and records personal bests.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/circlefit/internal/adapters/mq/queue"
	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/internal/domain/types"
	"github.com/okian/circlefit/pkg/logger"
	"github.com/okian/circlefit/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // evaluation is CPU bound
	poolShutdownTimeout     = 30 * time.Second
)

// Evaluator scores a point sequence.
type Evaluator interface {
	Evaluate(points []model.Point) (model.ScoreResult, error)
}

// Updater stores a player's best entry.
type Updater interface {
	UpdateBest(ctx context.Context, e types.Entry) (bool, error)
}

// Sink receives the outcome of every submission, successful or not.
type Sink interface {
	Complete(ctx context.Context, sub model.Submission, res model.ScoreResult, err error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
}

// Worker processes submissions.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current submission.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	updater   Updater
	sink      Sink
	name      string
	active    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, evaluator Evaluator, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		evaluator: evaluator,
		updater:   updater,
		name:      "worker",
		active:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ch := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case sub, ok := <-ch:
			if !ok {
				return
			}
			if err := w.process(ctx, sub); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.String("submission_id", sub.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, sub model.Submission) (err error) { //nolint:gocritic // hugeParam: value semantics for channel payload
	start := time.Now()
	w.active.Add(1)
	var res model.ScoreResult
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		if w.sink != nil {
			w.sink.Complete(ctx, sub, res, err)
		}
	}()
	metrics.UpdateWorkerActiveCount(int(w.active.Load()))

	evalStart := time.Now()
	res, err = w.evaluator.Evaluate(sub.Points)
	metrics.RecordEvaluationLatency(float64(time.Since(evalStart).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "evaluation_error")
		return fmt.Errorf("evaluate submission %s: %w", sub.ID, err)
	}

	metrics.RecordEvaluation(string(res.Verdict))
	metrics.RecordSubmissionProcessed()
	if res.Circle.Degenerate {
		metrics.RecordDegenerateFit()
	}
	w.logger.Debug(ctx, "submission evaluated",
		logger.String("submission_id", sub.ID),
		logger.String("player_id", sub.PlayerID),
		logger.String("verdict", string(res.Verdict)),
		logger.Int("score", res.Score),
	)
	if !res.Valid() {
		return nil
	}
	metrics.RecordScore(res.Score)

	updated, err := w.updater.UpdateBest(ctx, types.Entry{
		PlayerID:      sub.PlayerID,
		Score:         res.Score,
		MeanDeviation: res.MeanDeviation,
		SubmissionID:  sub.ID,
		AchievedAt:    sub.ReceivedAt,
	})
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "leaderboard_error")
		return fmt.Errorf("leaderboard update failed: %w", err)
	}
	if updated {
		metrics.RecordLeaderboardUpdate()
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	logger  logger.Logger
}

// NewPool creates a worker pool. Options apply to every worker; names are
// assigned per worker.
func NewPool(workerCount int, q Queue, evaluator Evaluator, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(q, evaluator, updater, wopts...)
		w.active = &p.active
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers currently evaluating.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
