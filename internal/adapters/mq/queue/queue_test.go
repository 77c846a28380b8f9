package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/circlefit/internal/domain/model"
)

func submission(id string) model.Submission {
	return model.Submission{ID: id, PlayerID: "player", Points: []model.Point{{X: 1, Y: 2}}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, submission("s1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "s1" || len(got.Points) != 1 {
		t.Errorf("unexpected submission %+v", got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if q.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", q.Capacity())
	}
	if !q.Enqueue(ctx, submission("s1")) || !q.Enqueue(ctx, submission("s2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, submission("s3")) {
		t.Error("expected enqueue to fail when full")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, submission("s1")) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q.Enqueue(ctx, submission(fmt.Sprintf("s-%d-%d", g, i)))
			}
		}(g)
	}
	wg.Wait()
	_ = q.Close()

	seen := make(map[string]bool)
	for s := range q.Dequeue(ctx) {
		if seen[s.ID] {
			t.Errorf("duplicate delivery of %s", s.ID)
		}
		seen[s.ID] = true
	}
	if len(seen) != 500 {
		t.Errorf("expected 500 submissions, got %d", len(seen))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, submission("s1"))
	q.Enqueue(ctx, submission("s2"))
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal("second close should be a no-op")
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, submission("s3")) {
		t.Error("expected enqueue after close to fail")
	}

	ch := q.Dequeue(ctx)
	var ids []string
	timeout := time.After(time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
					t.Errorf("expected queued submissions to drain in order, got %v", ids)
				}
				return
			}
			ids = append(ids, s.ID)
		case <-timeout:
			t.Fatal("dequeue channel was not closed")
		}
	}
}
