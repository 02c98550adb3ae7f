package runner

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/will-x86/brokenlinks"
	"github.com/will-x86/brokenlinks/storage"
)

// AdaptiveRunner grows its pool while heap usage is low and shrinks it when usage
// approaches maxMemoryMB.
type AdaptiveRunner struct {
	runnerBase
	minWorkers  int
	maxWorkers  int
	maxMemoryMB uint64
	current     atomic.Int32
}

func NewAdaptiveRunner(minWorkers, maxWorkers int, maxMemoryMB uint64, opts ...RunnerOption) *AdaptiveRunner {
	if minWorkers <= 0 {
		minWorkers = 2
	}
	if maxWorkers <= minWorkers {
		maxWorkers = minWorkers + 1
	}
	if maxMemoryMB == 0 {
		maxMemoryMB = 1024
	}

	r := &AdaptiveRunner{
		minWorkers:  minWorkers,
		maxWorkers:  maxWorkers,
		maxMemoryMB: maxMemoryMB,
	}
	r.init(opts)
	return r
}

// Workers returns the current pool size.
func (r *AdaptiveRunner) Workers() int {
	return int(r.current.Load())
}

func (r *AdaptiveRunner) getCurrentMemoryMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}

func (r *AdaptiveRunner) Run(ctx context.Context, c crawler.Crawler, q storage.Queue) error {
	r.setState(StateRunning)
	defer r.setState(StateDone)
	defer r.rateLimiter.Close()

	g, gctx := errgroup.WithContext(ctx)

	var (
		active   atomic.Int32
		nextID   int
		doneOnce sync.Once
	)
	stop := make(chan struct{}, r.maxWorkers)
	allDone := make(chan struct{})

	spawn := func() {
		id := nextID
		nextID++
		r.current.Add(1)
		g.Go(func() error {
			defer func() {
				if r.current.Add(-1) == 0 {
					doneOnce.Do(func() { close(allDone) })
				}
			}()
			return r.work(gctx, id, c, q, &active, stop)
		})
	}

	for i := 0; i < r.minWorkers; i++ {
		spawn()
	}

	// The scaler is itself a group member, so spawning from it never races Wait.
	g.Go(func() error {
		ticker := time.NewTicker(r.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-allDone:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				r.adjustWorkers(spawn, stop)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	r.logger.Debug("All workers finished")
	return nil
}

func (r *AdaptiveRunner) adjustWorkers(spawn func(), stop chan<- struct{}) {
	currentMem := r.getCurrentMemoryMB()
	workers := int(r.current.Load())
	if workers == 0 {
		return
	}

	scaleUpThreshold := uint64(float64(r.maxMemoryMB) * 0.65)
	scaleDownThreshold := uint64(float64(r.maxMemoryMB) * 0.90)

	r.logger.Debug("Memory: %d/%d MB, Workers: %d", currentMem, r.maxMemoryMB, workers)

	if currentMem < scaleUpThreshold && workers < r.maxWorkers {
		r.logger.Debug("Scaling up to %d workers (memory: %d MB)", workers+1, currentMem)
		spawn()
		return
	}

	if currentMem > scaleDownThreshold && workers-len(stop) > r.minWorkers {
		r.logger.Debug("Scaling down from %d workers (memory: %d MB)", workers, currentMem)
		select {
		case stop <- struct{}{}:
		default:
		}
	}
}
