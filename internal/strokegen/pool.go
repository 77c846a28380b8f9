package strokegen

import (
	"context"
	"sync"
	"time"

	"github.com/okian/circlefit/pkg/logger"
)

const (
	workerChannelMultiplier = 2
	progressInterval        = time.Second
)

// fanOut runs fn for every index in [0, n) on workers goroutines and logs
// progress about once a second.
func fanOut(ctx context.Context, what string, n, workers int, fn func(ctx context.Context, i int)) {
	workers = max(1, min(workers, n))
	idx := make(chan int, workers*workerChannelMultiplier)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
		last time.Time
	)
	log := logger.Get()

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				if ctx.Err() != nil {
					continue
				}
				fn(ctx, i)

				mu.Lock()
				done++
				if time.Since(last) >= progressInterval {
					last = time.Now()
					log.Info(ctx, what+" progress", logger.Int("done", done), logger.Int("total", n))
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(idx)
		for i := range n {
			select {
			case <-ctx.Done():
				return
			case idx <- i:
			}
		}
	}()
	wg.Wait()
}
