// Package fetchers issues the HEAD and GET requests of a crawl and classifies their outcome.
package fetchers

import (
	"context"
	"errors"
	"net/http"
)

const (
	DefaultUserAgent    = "brokenlinks/1.0"
	DefaultMaxBodyBytes = 10 << 20
)

// ErrTimeout marks a request that ran out of time. It is a classification, not a crash.
var ErrTimeout = errors.New("request timed out")

// Response is the part of an HTTP response the crawl cares about.
type Response struct {
	Proto      string
	StatusCode int
	// Status is the code and reason phrase, e.g. "200 OK".
	Status string
	Header http.Header
	Body   []byte
}

// StatusLine returns e.g. "HTTP/1.1 404 Not Found".
func (r *Response) StatusLine() string {
	return r.Proto + " " + r.Status
}

// Fetcher performs single requests. Implementations never follow redirects.
type Fetcher interface {
	Head(ctx context.Context, url string) (*Response, error)
	Get(ctx context.Context, url string) (*Response, error)
}
