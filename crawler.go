package crawler

import (
	"context"
)

// Admission is the outcome of offering a discovered URL to the frontier.
type Admission int

const (
	// Admitted means the URL was appended to the frontier.
	Admitted Admission = iota
	// AlreadyQueued means the URL is waiting in the frontier and was not queued twice.
	AlreadyQueued
	// AlreadyVisited means the URL was dispatched earlier and will not be fetched again.
	AlreadyVisited
	// Rejected means a link policy refused the URL.
	Rejected
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case AlreadyQueued:
		return "queued"
	case AlreadyVisited:
		return "visited"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// EnqueueFunc offers a canonical URL found on the page being crawled to the frontier.
type EnqueueFunc func(ctx context.Context, target string) (Admission, error)

// Task is one frontier entry handed to a Crawler by a runner.
type Task struct {
	URL string
	// Revisit is set when the entry was already visited at pop time. It must not be fetched.
	Revisit bool
}

type Crawler interface {
	// Crawl processes a single dispatched URL
	Crawl(ctx context.Context, task Task, enqueue EnqueueFunc) error
}
