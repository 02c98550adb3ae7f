// Package runner drains a storage.Queue through a crawler.Crawler, serially or with a
// worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/will-x86/brokenlinks"
	"github.com/will-x86/brokenlinks/logger"
	"github.com/will-x86/brokenlinks/storage"
)

type Runner interface {
	Run(ctx context.Context, c crawler.Crawler, q storage.Queue) error
	State() State
}

// State is the lifecycle of a run: Idle, then Running, Draining whenever the frontier is
// found empty while work may still add to it, and Done.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// idleWait is how long a pool worker sleeps after finding the frontier empty while other
// workers may still add to it.
const idleWait = 50 * time.Millisecond

type RunnerOption func(*runnerBase)

func WithGlobalRateLimit(requestsPerSecond int) RunnerOption {
	return func(r *runnerBase) {
		r.rateLimiter = newGlobalRateLimiter(requestsPerSecond)
	}
}

func WithDomainRateLimit(maxRequests int, window time.Duration) RunnerOption {
	return func(r *runnerBase) {
		r.rateLimiter = newDomainRateLimiter(maxRequests, window)
	}
}

func WithLinkPolicy(policy LinkPolicy) RunnerOption {
	return func(r *runnerBase) {
		r.linkPolicy = policy
	}
}

func WithLogger(log logger.Logger) RunnerOption {
	return func(r *runnerBase) {
		r.logger = log
	}
}

// WithCheckInterval sets how often the adaptive runner samples memory. Other runners ignore it.
func WithCheckInterval(interval time.Duration) RunnerOption {
	return func(r *runnerBase) {
		r.checkInterval = interval
	}
}

// runnerBase holds what every runner shares: options, state and the per-URL dispatch step.
type runnerBase struct {
	rateLimiter   RateLimiter
	linkPolicy    LinkPolicy
	logger        logger.Logger
	checkInterval time.Duration
	state         atomic.Int32
}

func (b *runnerBase) init(opts []RunnerOption) {
	b.rateLimiter = &noRateLimiter{}
	b.linkPolicy = PolicyAllowAll
	b.logger = logger.NewStdLogger()
	b.checkInterval = 5 * time.Second
	for _, opt := range opts {
		opt(b)
	}
}

func (b *runnerBase) State() State {
	return State(b.state.Load())
}

func (b *runnerBase) setState(s State) {
	b.state.Store(int32(s))
}

// dispatch hands one frontier entry to the crawler. Links it offers go through the link
// policy first and then to the queue. Revisits skip the rate limiter since they are never
// fetched.
func (b *runnerBase) dispatch(ctx context.Context, c crawler.Crawler, q storage.Queue, req *storage.Request) error {
	current, err := url.Parse(req.URL)
	if err != nil {
		b.logger.Error("Invalid URL %s: %v", req.URL, err)
		return q.MarkHandled(req)
	}

	if !req.Revisit {
		if err := b.rateLimiter.Wait(ctx, current.Host); err != nil {
			return err
		}
	}

	enqueue := func(ctx context.Context, target string) (crawler.Admission, error) {
		if !b.linkPolicy.ShouldEnqueue(current, target) {
			return crawler.Rejected, nil
		}
		return q.Add(ctx, target)
	}

	if err := c.Crawl(ctx, crawler.Task{URL: req.URL, Revisit: req.Revisit}, enqueue); err != nil {
		return fmt.Errorf("failed to crawl %s: %w", req.URL, err)
	}
	if err := q.MarkHandled(req); err != nil {
		return fmt.Errorf("failed to mark %s handled: %w", req.URL, err)
	}

	if req.Revisit {
		b.logger.Debug("Revisited %s", req.URL)
		return nil
	}
	left, _ := q.Len()
	b.logger.Info("Scanned %s (%d in frontier)", req.URL, left)
	return nil
}

// work is a pool worker. It runs until the frontier is empty with no worker active, stop
// fires, or an error aborts the run.
func (b *runnerBase) work(ctx context.Context, workerID int, c crawler.Crawler, q storage.Queue, active *atomic.Int32, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			b.logger.Debug("Worker %d: Stopping due to scale-down", workerID)
			return nil
		default:
		}

		// Count ourselves active before popping so an empty frontier seen by another
		// worker cannot be mistaken for the end of the crawl.
		active.Add(1)
		req, err := q.FetchNext(ctx)
		if errors.Is(err, io.EOF) {
			if active.Add(-1) == 0 {
				if empty, _ := q.IsEmpty(); empty {
					b.logger.Debug("Worker %d: Queue empty", workerID)
					return nil
				}
				continue
			}
			b.setState(StateDraining)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleWait):
			}
			continue
		}
		if err != nil {
			active.Add(-1)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to fetch request: %w", err)
		}

		b.setState(StateRunning)
		b.logger.Debug("Worker %d: Processing %s (active: %d)", workerID, req.URL, active.Load())
		err = b.dispatch(ctx, c, q, req)
		active.Add(-1)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
