package checker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/will-x86/brokenlinks/fetchers"
	"github.com/will-x86/brokenlinks/logger"
	"github.com/will-x86/brokenlinks/report"
	"github.com/will-x86/brokenlinks/runner"
	"github.com/will-x86/brokenlinks/scope"
	"github.com/will-x86/brokenlinks/storage"
)

const (
	RunnerSerial   = "serial"
	RunnerAsync    = "async"
	RunnerAdaptive = "adaptive"

	QueueMemory = "memory"
	QueueSQLite = "sqlite"
	QueueFile   = "file"

	ClientNet      = "net"
	ClientFastHTTP = "fasthttp"
)

// Options configures one crawl. Zero values pick the defaults of the command line.
type Options struct {
	URL     string
	Once    bool
	Exclude []string

	Runner  string
	Workers int

	Queue     string
	QueuePath string

	// AllowDuplicates admits links already waiting in the frontier; they come back as
	// revisits. Off matches --dedupe.
	AllowDuplicates bool

	Client       string
	Timeout      time.Duration
	Retries      int
	Rate         int
	HeadFallback bool
	UserAgent    string

	Logger logger.Logger
	// Fetcher overrides Client, Timeout, Retries and UserAgent.
	Fetcher fetchers.Fetcher
}

// Run crawls from opts.URL until the frontier is drained and returns the frozen report.
func Run(ctx context.Context, opts Options) (*report.Snapshot, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewStdLogger()
	}
	log := opts.Logger

	origin, seed, err := scope.ParseSeed(opts.URL)
	if err != nil {
		return nil, err
	}

	q, err := openQueue(opts)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	var providers storage.ProviderIndex
	if withIndex, ok := q.(interface{ ProviderIndex() storage.ProviderIndex }); ok {
		providers = withIndex.ProviderIndex()
	} else {
		providers = storage.NewMemoryProviderIndex()
	}
	defer providers.Close()

	agg := report.NewAggregator(providers)
	if tagged, ok := log.(interface {
		With(key, value string) logger.Logger
	}); ok {
		log = tagged.With("run", agg.RunID())
		opts.Logger = log
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		if fetcher, err = newFetcher(opts); err != nil {
			return nil, err
		}
	}

	checker := NewChecker(CheckerOptions{
		Fetcher:      fetcher,
		Providers:    providers,
		Aggregator:   agg,
		Logger:       log,
		Origin:       origin,
		Seed:         seed,
		Once:         opts.Once,
		HeadFallback: opts.HeadFallback,
	})

	r, err := newRunner(opts, origin)
	if err != nil {
		return nil, err
	}

	if _, err := q.Add(ctx, seed); err != nil {
		return nil, fmt.Errorf("failed to queue seed: %w", err)
	}

	log.Info("Crawling %s (run %s)", seed, agg.RunID())
	if err := r.Run(ctx, checker, q); err != nil {
		return nil, err
	}

	snap, err := agg.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("Scan completed: %d scanned, %d successful, %d broken", snap.Scanned, snap.Successful, snap.Erred)
	return snap, nil
}

func openQueue(opts Options) (storage.Queue, error) {
	qopts := storage.QueueOptions{DedupeOnEnqueue: !opts.AllowDuplicates}
	base := opts.QueuePath
	if base == "" {
		base = ".brokenlinks"
	}

	switch opts.Queue {
	case "", QueueMemory:
		return storage.NewMemoryQueueWithOptions(qopts), nil
	case QueueSQLite:
		q, err := storage.NewSQLiteQueue(storage.SQLiteQueueOptions{
			QueueOptions: qopts,
			DBPath:       filepath.Join(base, "frontier.db"),
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	case QueueFile:
		q, err := storage.NewFileQueueWithOptions(storage.FileQueueOptions{
			QueueOptions: qopts,
			BaseDir:      filepath.Join(base, "frontier"),
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("unknown queue %q", opts.Queue)
}

func newFetcher(opts Options) (fetchers.Fetcher, error) {
	switch opts.Client {
	case "", ClientNet:
		return fetchers.NewHTTPFetcher(fetchers.HTTPOptions{
			Logger:     opts.Logger,
			Timeout:    opts.Timeout,
			UserAgent:  opts.UserAgent,
			MaxRetries: opts.Retries,
		}), nil
	case ClientFastHTTP:
		return fetchers.NewFastHTTPFetcher(fetchers.FastHTTPOptions{
			Logger:     opts.Logger,
			Timeout:    opts.Timeout,
			UserAgent:  opts.UserAgent,
			MaxRetries: opts.Retries,
		}), nil
	}
	return nil, fmt.Errorf("unknown client %q", opts.Client)
}

func newRunner(opts Options, origin scope.Origin) (runner.Runner, error) {
	runnerOpts := []runner.RunnerOption{
		runner.WithLogger(opts.Logger),
		runner.WithLinkPolicy(runner.NewAllPolicy(
			runner.NewSameOriginPolicy(origin),
			runner.NewExcludePolicy(opts.Exclude...),
		)),
	}
	if opts.Rate > 0 {
		runnerOpts = append(runnerOpts, runner.WithDomainRateLimit(opts.Rate, time.Second))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	switch opts.Runner {
	case "", RunnerSerial:
		return runner.NewSerialRunner(runnerOpts...), nil
	case RunnerAsync:
		return runner.NewAsyncRunner(workers, runnerOpts...), nil
	case RunnerAdaptive:
		return runner.NewAdaptiveRunner(1, workers, 0, runnerOpts...), nil
	}
	return nil, fmt.Errorf("unknown runner %q", opts.Runner)
}
