package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/will-x86/brokenlinks"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Request is a frontier entry.
type Request struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Revisit   bool      `json:"revisit,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Queue is the crawl frontier together with the set of visited URLs.
//
// FetchNext pops the oldest entry and marks its URL visited in the same step, so two
// workers can never both dispatch one URL. An entry whose URL was already visited comes
// back with Revisit set. An empty frontier yields io.EOF.
type Queue interface {
	Add(ctx context.Context, url string) (crawler.Admission, error)
	FetchNext(ctx context.Context) (*Request, error)
	MarkHandled(req *Request) error
	IsEmpty() (bool, error)
	Len() (int, error)
	GetStats() (map[string]int, error)
	Close() error
}

// QueueOptions are shared by every Queue implementation.
type QueueOptions struct {
	// DedupeOnEnqueue rejects URLs that are already waiting in the frontier. When false
	// only visited URLs are rejected and duplicates are popped as revisits.
	DedupeOnEnqueue bool
}

func generateID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:8])
}
