package worker_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/circlefit/internal/adapters/mq/queue"
	"github.com/okian/circlefit/internal/adapters/mq/worker"
	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/internal/domain/scoring"
	"github.com/okian/circlefit/internal/domain/types"
	logging "github.com/okian/circlefit/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan queue.Item
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.Item, 128)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Item { return mq.ch }

func (mq *mockQueue) Close() error {
	close(mq.ch)
	return nil
}

type mockUpdater struct {
	mu      sync.Mutex
	entries map[string]types.Entry
	err     error
}

func newMockUpdater() *mockUpdater {
	return &mockUpdater{entries: make(map[string]types.Entry)}
}

func (m *mockUpdater) UpdateBest(_ context.Context, e types.Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.entries[e.PlayerID] = e
	return true, nil
}

func (m *mockUpdater) get(player string) (types.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[player]
	return e, ok
}

type outcome struct {
	sub model.Submission
	res model.ScoreResult
	err error
}

type chanSink chan outcome

func (c chanSink) Complete(_ context.Context, sub model.Submission, res model.ScoreResult, err error) {
	c <- outcome{sub: sub, res: res, err: err}
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate([]model.Point) (model.ScoreResult, error) {
	return model.ScoreResult{}, errors.New("evaluator down")
}

func circle(r float64, n int, sweep float64) []model.Point {
	pts := make([]model.Point, n)
	for i := range pts {
		a := sweep * float64(i) / float64(n) * math.Pi / 180
		pts[i] = model.Point{X: 400 + r*math.Cos(a), Y: 400 + r*math.Sin(a)}
	}
	return pts
}

func wait(sink chanSink) outcome {
	select {
	case o := <-sink:
		return o
	case <-time.After(2 * time.Second):
		return outcome{err: errors.New("timed out waiting for outcome")}
	}
}

func TestInMemoryWorker(t *testing.T) {
	_ = logging.Init()
	ev, err := scoring.NewEvaluator()
	if err != nil {
		t.Fatal(err)
	}

	convey.Convey("Given a running worker", t, func() {
		q := newMockQueue()
		updater := newMockUpdater()
		sink := make(chanSink, 16)
		w := worker.NewInMemoryWorker(q, ev, updater, worker.WithName("test-worker"), worker.WithSink(sink))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a clean circle is submitted", func() {
			q.ch <- model.Submission{ID: "s1", PlayerID: "p1", Points: circle(150, 60, 360), ReceivedAt: time.Now()}
			o := wait(sink)

			convey.Convey("Then it is scored and recorded as a best", func() {
				convey.So(o.err, convey.ShouldBeNil)
				convey.So(o.sub.ID, convey.ShouldEqual, "s1")
				convey.So(o.res.Verdict, convey.ShouldEqual, model.VerdictValid)
				convey.So(o.res.Score, convey.ShouldEqual, 100)
				e, ok := updater.get("p1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(e.Score, convey.ShouldEqual, 100)
				convey.So(e.SubmissionID, convey.ShouldEqual, "s1")
			})
		})

		convey.Convey("When an incomplete arc is submitted", func() {
			q.ch <- model.Submission{ID: "s2", PlayerID: "p2", Points: circle(150, 30, 180)}
			o := wait(sink)

			convey.Convey("Then it completes without touching the leaderboard", func() {
				convey.So(o.err, convey.ShouldBeNil)
				convey.So(o.res.Verdict, convey.ShouldEqual, model.VerdictIncomplete)
				_, ok := updater.get("p2")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the stroke is too short", func() {
			q.ch <- model.Submission{ID: "s3", PlayerID: "p3", Points: circle(150, 4, 360)}
			o := wait(sink)

			convey.Convey("Then the sink receives the error", func() {
				convey.So(o.err, convey.ShouldNotBeNil)
				convey.So(o.sub.ID, convey.ShouldEqual, "s3")
			})
		})

		convey.Convey("When the leaderboard update fails", func() {
			updater.mu.Lock()
			updater.err = errors.New("store unavailable")
			updater.mu.Unlock()
			q.ch <- model.Submission{ID: "s4", PlayerID: "p4", Points: circle(150, 60, 360)}
			o := wait(sink)

			convey.Convey("Then the error reaches the sink", func() {
				convey.So(o.err, convey.ShouldNotBeNil)
				convey.So(o.res.Verdict, convey.ShouldEqual, model.VerdictValid)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose evaluator fails", t, func() {
		q := newMockQueue()
		updater := newMockUpdater()
		sink := make(chanSink, 1)
		w := worker.NewInMemoryWorker(q, failingEvaluator{}, updater, worker.WithSink(sink))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.ch <- model.Submission{ID: "s5", PlayerID: "p5", Points: circle(150, 60, 360)}
		o := wait(sink)

		convey.Convey("Then nothing is recorded", func() {
			convey.So(o.err, convey.ShouldNotBeNil)
			_, ok := updater.get("p5")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given a worker whose queue closes", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, ev, newMockUpdater())
		go w.Run(context.Background())
		_ = q.Close()

		convey.Convey("Then the worker stops", func() {
			select {
			case <-w.Done():
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("worker still running", convey.ShouldBeEmpty)
			}
		})
	})
}

func TestWorkerPool(t *testing.T) {
	_ = logging.Init()
	ev, _ := scoring.NewEvaluator()

	convey.Convey("Given a pool of four workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(200))
		updater := newMockUpdater()
		sink := make(chanSink, 200)
		pool := worker.NewPool(4, q, ev, updater, worker.WithSink(sink))
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When many submissions arrive concurrently", func() {
			const total = 100
			var wg sync.WaitGroup
			for g := 0; g < 5; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < total/5; i++ {
						q.Enqueue(ctx, model.Submission{
							ID:       fmt.Sprintf("s-%d-%d", g, i),
							PlayerID: fmt.Sprintf("p-%d-%d", g, i),
							Points:   circle(100+float64(i), 48, 360),
						})
					}
				}(g)
			}
			wg.Wait()

			convey.Convey("Then every submission completes and the pool drains on shutdown", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				close(sink)
				count := 0
				for o := range sink {
					convey.So(o.err, convey.ShouldBeNil)
					count++
				}
				convey.So(count, convey.ShouldEqual, total)
				_, ok := updater.get("p-4-19")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given a pool with a non-positive size", t, func() {
		pool := worker.NewPool(0, newMockQueue(), ev, newMockUpdater())

		convey.Convey("Then it sizes itself from the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
