package fetchers

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/will-x86/brokenlinks/logger"
)

type HTTPOptions struct {
	Logger       logger.Logger
	Client       *http.Client
	Timeout      time.Duration
	UserAgent    string
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxBodyBytes truncates GET bodies beyond this size.
	MaxBodyBytes int64
}

type HTTPFetcher struct {
	client       *http.Client
	logger       logger.Logger
	timeout      time.Duration
	userAgent    string
	maxRetries   int
	retryBackoff time.Duration
	maxBodyBytes int64
}

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Logger == nil {
		opts.Logger = logger.NewStdLogger()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 250 * time.Millisecond
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	// Copy so the caller's client keeps its own redirect policy.
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &HTTPFetcher{
		client:       &c,
		logger:       opts.Logger,
		timeout:      opts.Timeout,
		userAgent:    opts.UserAgent,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

func (f *HTTPFetcher) Head(ctx context.Context, url string) (*Response, error) {
	return f.do(ctx, http.MethodHead, url)
}

func (f *HTTPFetcher) Get(ctx context.Context, url string) (*Response, error) {
	return f.do(ctx, http.MethodGet, url)
}

func (f *HTTPFetcher) do(ctx context.Context, method, url string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			wait := f.retryBackoff << (attempt - 1)
			f.logger.Debug("Retrying %s %s in %s (attempt %d): %v", method, url, wait, attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := f.once(ctx, method, url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) once(ctx context.Context, method, url string) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{
		Proto:      resp.Proto,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
	}
	if method == http.MethodHead {
		return out, nil
	}

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"), f.maxBodyBytes)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, err
	}
	out.Body = body
	return out, nil
}

// decodeBody undoes the content encoding of r and reads at most limit decoded bytes.
// Longer bodies are truncated, not rejected.
func decodeBody(r io.Reader, encoding string, limit int64) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(r)
	case "deflate":
		fl := flate.NewReader(r)
		defer fl.Close()
		r = fl
	}

	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryable reports whether err is a connection-level failure worth another attempt.
// Timeouts are final so a slow host costs at most one timeout per request.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrTimeout) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
