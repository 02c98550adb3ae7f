package storage

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/will-x86/brokenlinks"
)

type MemoryQueue struct {
	pending    []*Request
	queued     map[string]int
	visited    map[string]bool
	processing int
	completed  int
	seq        int64
	dedupe     bool
	mu         sync.Mutex
}

func NewMemoryQueue() Queue {
	return NewMemoryQueueWithOptions(QueueOptions{DedupeOnEnqueue: true})
}

func NewMemoryQueueWithOptions(opts QueueOptions) Queue {
	return &MemoryQueue{
		queued:  make(map[string]int),
		visited: make(map[string]bool),
		dedupe:  opts.DedupeOnEnqueue,
	}
}

func (q *MemoryQueue) Close() error {
	return nil
}

func (q *MemoryQueue) Add(ctx context.Context, url string) (crawler.Admission, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.visited[url] {
		return crawler.AlreadyVisited, nil
	}
	if q.dedupe && q.queued[url] > 0 {
		return crawler.AlreadyQueued, nil
	}

	q.seq++
	now := time.Now()
	q.pending = append(q.pending, &Request{
		ID:        generateID(url),
		Seq:       q.seq,
		URL:       url,
		Status:    StatusPending,
		AddedAt:   now,
		UpdatedAt: now,
	})
	q.queued[url]++

	return crawler.Admitted, nil
}

func (q *MemoryQueue) FetchNext(ctx context.Context) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, io.EOF
	}

	req := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]

	if q.queued[req.URL]--; q.queued[req.URL] <= 0 {
		delete(q.queued, req.URL)
	}

	req.UpdatedAt = time.Now()
	if q.visited[req.URL] {
		req.Revisit = true
		req.Status = StatusCompleted
		return req, nil
	}

	q.visited[req.URL] = true
	q.processing++
	req.Status = StatusProcessing
	return req, nil
}

func (q *MemoryQueue) MarkHandled(req *Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if req.Revisit || req.Status == StatusCompleted {
		return nil
	}
	req.Status = StatusCompleted
	req.UpdatedAt = time.Now()
	q.processing--
	q.completed++
	return nil
}

func (q *MemoryQueue) IsEmpty() (bool, error) {
	n, err := q.Len()
	return n == 0, err
}

func (q *MemoryQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending), nil
}

func (q *MemoryQueue) GetStats() (map[string]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := make(map[string]int)
	stats[string(StatusPending)] = len(q.pending)
	stats[string(StatusProcessing)] = q.processing
	stats[string(StatusCompleted)] = q.completed

	return stats, nil
}
