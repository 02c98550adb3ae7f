package fetchers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/will-x86/brokenlinks/logger"
)

type FastHTTPOptions struct {
	Logger       logger.Logger
	Timeout      time.Duration
	UserAgent    string
	MaxRetries   int
	MaxBodyBytes int64
}

// FastHTTPFetcher is a Fetcher on valyala/fasthttp. It suits large sites where
// allocation churn in net/http shows up.
type FastHTTPFetcher struct {
	client       *fasthttp.Client
	logger       logger.Logger
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
}

func NewFastHTTPFetcher(opts FastHTTPOptions) *FastHTTPFetcher {
	if opts.Logger == nil {
		opts.Logger = logger.NewStdLogger()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Bodies over MaxResponseBodySize are streamed and cut off in decodeBody instead of
	// failing with ErrBodyTooLarge.
	return &FastHTTPFetcher{
		client: &fasthttp.Client{
			ReadTimeout:               opts.Timeout,
			WriteTimeout:              opts.Timeout,
			MaxResponseBodySize:       int(opts.MaxBodyBytes),
			MaxIdemponentCallAttempts: opts.MaxRetries + 1,
			StreamResponseBody:        true,
		},
		logger:       opts.Logger,
		timeout:      opts.Timeout,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

func (f *FastHTTPFetcher) Head(ctx context.Context, url string) (*Response, error) {
	return f.do(ctx, fasthttp.MethodHead, url)
}

func (f *FastHTTPFetcher) Get(ctx context.Context, url string) (*Response, error) {
	return f.do(ctx, fasthttp.MethodGet, url)
}

func (f *FastHTTPFetcher) do(ctx context.Context, method, url string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetUserAgent(f.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if method == fasthttp.MethodHead {
		resp.SkipBody = true
	}

	deadline := time.Now().Add(f.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := f.client.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || isTimeout(err) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, err
	}

	code := resp.StatusCode()
	reason := string(resp.Header.StatusMessage())
	if reason == "" {
		reason = http.StatusText(code)
	}
	proto := string(resp.Header.Protocol())
	if proto == "" {
		proto = "HTTP/1.1"
	}

	header := http.Header{}
	resp.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})

	out := &Response{
		Proto:      proto,
		StatusCode: code,
		Status:     strconv.Itoa(code) + " " + reason,
		Header:     header,
	}
	if method == fasthttp.MethodGet {
		if stream := resp.BodyStream(); stream != nil {
			body, err := decodeBody(stream, string(resp.Header.ContentEncoding()), f.maxBodyBytes)
			resp.CloseBodyStream()
			if err != nil {
				return nil, err
			}
			out.Body = body
		}
	}
	return out, nil
}
