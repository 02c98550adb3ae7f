package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/will-x86/brokenlinks"
)

// defaultFlushEvery is how many completions pass between writes of the visited set.
const defaultFlushEvery = 256

// FileQueue keeps pending entries on disk, one JSON file per entry, so large frontiers do not
// have to fit in memory. Entries are named by sequence number; head and seq bound the
// pending range, so popping never lists the directory.
type FileQueue struct {
	baseDir     string
	pendingDir  string
	visitedFile string
	visited     map[string]bool
	queued      map[string]int
	processing  int
	completed   int
	head        int64
	seq         int64
	dedupe      bool
	flushEvery  int
	unflushed   int
	mu          sync.Mutex
}

type FileQueueOptions struct {
	QueueOptions
	BaseDir string

	// VisitedFlushEvery batches writes of visited.json. Close always writes it.
	VisitedFlushEvery int
}

func NewFileQueue(baseDir string) (*FileQueue, error) {
	return NewFileQueueWithOptions(FileQueueOptions{
		BaseDir:      baseDir,
		QueueOptions: QueueOptions{DedupeOnEnqueue: true},
	})
}

// NewFileQueueWithOptions prepares opts.BaseDir, discarding entries left by an earlier run.
func NewFileQueueWithOptions(opts FileQueueOptions) (*FileQueue, error) {
	if opts.BaseDir == "" {
		opts.BaseDir = "./.brokenlinks/frontier"
	}
	if opts.VisitedFlushEvery <= 0 {
		opts.VisitedFlushEvery = defaultFlushEvery
	}

	pendingDir := filepath.Join(opts.BaseDir, "pending")
	visitedFile := filepath.Join(opts.BaseDir, "visited.json")

	if err := os.RemoveAll(pendingDir); err != nil {
		return nil, fmt.Errorf("failed to clear pending directory: %w", err)
	}
	if err := os.Remove(visitedFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to clear visited file: %w", err)
	}
	if err := os.MkdirAll(pendingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pending directory: %w", err)
	}

	return &FileQueue{
		baseDir:     opts.BaseDir,
		pendingDir:  pendingDir,
		visitedFile: visitedFile,
		visited:     make(map[string]bool),
		queued:      make(map[string]int),
		dedupe:      opts.DedupeOnEnqueue,
		flushEvery:  opts.VisitedFlushEvery,
	}, nil
}

func (q *FileQueue) saveVisited() error {
	visited := make([]string, 0, len(q.visited))
	for key := range q.visited {
		visited = append(visited, key)
	}
	sort.Strings(visited)

	data, err := json.Marshal(visited)
	if err != nil {
		return fmt.Errorf("failed to marshal visited: %w", err)
	}

	if err := os.WriteFile(q.visitedFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write visited: %w", err)
	}
	q.unflushed = 0
	return nil
}

func (q *FileQueue) Add(ctx context.Context, url string) (crawler.Admission, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.visited[url] {
		return crawler.AlreadyVisited, nil
	}
	if q.dedupe && q.queued[url] > 0 {
		return crawler.AlreadyQueued, nil
	}

	now := time.Now()
	req := Request{
		ID:        generateID(url),
		Seq:       q.seq + 1,
		URL:       url,
		Status:    StatusPending,
		AddedAt:   now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return crawler.Rejected, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := os.WriteFile(q.pendingPath(req.Seq), data, 0644); err != nil {
		return crawler.Rejected, fmt.Errorf("failed to write request: %w", err)
	}

	q.seq = req.Seq
	q.queued[url]++
	return crawler.Admitted, nil
}

func (q *FileQueue) pendingPath(seq int64) string {
	return filepath.Join(q.pendingDir, fmt.Sprintf("%020d.json", seq))
}

func (q *FileQueue) FetchNext(ctx context.Context) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == q.seq {
		return nil, io.EOF
	}

	reqPath := q.pendingPath(q.head + 1)
	data, err := os.ReadFile(reqPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %s: %w", filepath.Base(reqPath), err)
	}
	if err := os.Remove(reqPath); err != nil {
		return nil, fmt.Errorf("failed to remove request: %w", err)
	}
	q.head++

	if q.queued[req.URL]--; q.queued[req.URL] <= 0 {
		delete(q.queued, req.URL)
	}

	req.UpdatedAt = time.Now()
	if q.visited[req.URL] {
		req.Revisit = true
		req.Status = StatusCompleted
		return &req, nil
	}

	q.visited[req.URL] = true
	q.processing++
	req.Status = StatusProcessing
	return &req, nil
}

func (q *FileQueue) MarkHandled(req *Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if req.Revisit || req.Status == StatusCompleted {
		return nil
	}
	req.Status = StatusCompleted
	req.UpdatedAt = time.Now()
	q.processing--
	q.completed++

	if q.unflushed++; q.unflushed >= q.flushEvery {
		return q.saveVisited()
	}
	return nil
}

func (q *FileQueue) IsEmpty() (bool, error) {
	n, err := q.Len()
	return n == 0, err
}

func (q *FileQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int(q.seq - q.head), nil
}

func (q *FileQueue) GetStats() (map[string]int, error) {
	pending, err := q.Len()
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	stats := make(map[string]int)
	stats[string(StatusPending)] = pending
	stats[string(StatusProcessing)] = q.processing
	stats[string(StatusCompleted)] = q.completed

	return stats, nil
}

func (q *FileQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.saveVisited()
}
