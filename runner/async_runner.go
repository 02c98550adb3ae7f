package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/will-x86/brokenlinks"
	"github.com/will-x86/brokenlinks/storage"
)

// AsyncRunner runs a fixed pool of workers over the queue.
type AsyncRunner struct {
	runnerBase
	maxConcurrency int
}

func NewAsyncRunner(maxConcurrency int, opts ...RunnerOption) *AsyncRunner {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}

	r := &AsyncRunner{maxConcurrency: maxConcurrency}
	r.init(opts)
	return r
}

func (r *AsyncRunner) Run(ctx context.Context, c crawler.Crawler, q storage.Queue) error {
	r.setState(StateRunning)
	defer r.setState(StateDone)
	defer r.rateLimiter.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		active   atomic.Int32
		errOnce  sync.Once
		firstErr error
	)

	for i := 0; i < r.maxConcurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			if err := r.work(ctx, workerID, c, q, &active, nil); err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i)
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	r.logger.Debug("All workers finished")
	return nil
}
