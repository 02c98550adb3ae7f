package runner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/will-x86/brokenlinks"
	"github.com/will-x86/brokenlinks/storage"
)

// SerialRunner dispatches one URL at a time in strict FIFO order.
type SerialRunner struct {
	runnerBase
}

func NewSerialRunner(opts ...RunnerOption) *SerialRunner {
	r := &SerialRunner{}
	r.init(opts)
	return r
}

func (r *SerialRunner) Run(ctx context.Context, c crawler.Crawler, q storage.Queue) error {
	r.setState(StateRunning)
	defer r.setState(StateDone)
	defer r.rateLimiter.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := q.FetchNext(ctx)
		if errors.Is(err, io.EOF) {
			r.logger.Debug("Queue empty, finishing")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch request: %w", err)
		}

		if empty, _ := q.IsEmpty(); empty {
			r.setState(StateDraining)
		} else {
			r.setState(StateRunning)
		}

		if err := r.dispatch(ctx, c, q, req); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
