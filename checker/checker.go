// Package checker implements the per-URL step of a broken link crawl and wires a full run
// together.
package checker

import (
	"context"
	"fmt"

	"github.com/will-x86/brokenlinks"
	"github.com/will-x86/brokenlinks/fetchers"
	"github.com/will-x86/brokenlinks/logger"
	"github.com/will-x86/brokenlinks/report"
	"github.com/will-x86/brokenlinks/scope"
	"github.com/will-x86/brokenlinks/storage"
)

type CheckerOptions struct {
	Fetcher    fetchers.Fetcher
	Providers  storage.ProviderIndex
	Aggregator *report.Aggregator
	Logger     logger.Logger
	Origin     scope.Origin
	// Seed is the canonical seed URL. With Once set it is the only page whose body is scanned.
	Seed         string
	Once         bool
	HeadFallback bool
}

// Checker classifies each dispatched URL, tallies the outcome and offers the links of
// healthy HTML pages back to the frontier.
type Checker struct {
	fetcher      fetchers.Fetcher
	providers    storage.ProviderIndex
	agg          *report.Aggregator
	logger       logger.Logger
	origin       scope.Origin
	seed         string
	once         bool
	headFallback bool
}

func NewChecker(opts CheckerOptions) *Checker {
	if opts.Logger == nil {
		opts.Logger = logger.NewStdLogger()
	}
	if opts.Providers == nil {
		opts.Providers = storage.NewMemoryProviderIndex()
	}
	if opts.Aggregator == nil {
		opts.Aggregator = report.NewAggregator(opts.Providers)
	}

	return &Checker{
		fetcher:      opts.Fetcher,
		providers:    opts.Providers,
		agg:          opts.Aggregator,
		logger:       opts.Logger,
		origin:       opts.Origin,
		seed:         opts.Seed,
		once:         opts.Once,
		headFallback: opts.HeadFallback,
	}
}

func (c *Checker) Crawl(ctx context.Context, task crawler.Task, enqueue crawler.EnqueueFunc) error {
	if task.Revisit {
		return c.agg.Rediscovered(ctx, task.URL)
	}

	res, err := fetchers.Classify(ctx, c.fetcher, task.URL, fetchers.ClassifyOptions{
		FetchBody:    !c.once || task.URL == c.seed,
		HeadFallback: c.headFallback,
	})
	if err != nil {
		return err
	}

	if err := c.agg.Record(ctx, report.Outcome{
		URL:     task.URL,
		Status:  res.Status,
		Success: res.Success,
		HTML:    res.HTML,
	}); err != nil {
		return err
	}

	if !res.Success {
		_, _, erred := c.agg.Counts()
		c.logger.Warn("Broken link %s: %s (%d broken so far)", task.URL, res.Status, erred)
		return nil
	}
	if res.BodyErr != nil {
		c.logger.Warn("Could not read %s, skipping its links: %v", task.URL, res.BodyErr)
		return nil
	}
	if len(res.Body) == 0 {
		return nil
	}

	links, err := ExtractLinks(res.Body, res.ContentType)
	if err != nil {
		c.logger.Warn("Could not scan %s: %v", task.URL, err)
		return nil
	}

	return c.offer(ctx, task.URL, links, enqueue)
}

func (c *Checker) offer(ctx context.Context, page string, links []string, enqueue crawler.EnqueueFunc) error {
	var admitted int
	for _, raw := range links {
		target, ok := scope.Normalize(raw, page, c.origin)
		if !ok {
			continue
		}

		admission, err := enqueue(ctx, target)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", target, err)
		}

		switch admission {
		case crawler.Admitted:
			admitted++
			if err := c.providers.Append(ctx, target, page); err != nil {
				return fmt.Errorf("failed to record provider of %s: %w", target, err)
			}
		case crawler.AlreadyVisited:
			if err := c.providers.Append(ctx, target, page); err != nil {
				return fmt.Errorf("failed to record provider of %s: %w", target, err)
			}
			if err := c.agg.Rediscovered(ctx, target); err != nil {
				return err
			}
		}
	}

	c.logger.Debug("Scanned %d links on %s, %d new", len(links), page, admitted)
	return nil
}
