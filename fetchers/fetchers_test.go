package fetchers

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/will-x86/brokenlinks/logger"
)

const page = `<html><body><a href="/a">a</a></body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/nohead", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		if r.Method == http.MethodHead {
			return
		}
		gz := gzip.NewWriter(w)
		gz.Write([]byte(page))
		gz.Close()
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		if r.Method == http.MethodHead {
			return
		}
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(page))
		bw.Close()
		w.Write(buf.Bytes())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fetcherFactories() map[string]func() Fetcher {
	return map[string]func() Fetcher{
		"net/http": func() Fetcher {
			return NewHTTPFetcher(HTTPOptions{Logger: logger.NewNopLogger(), Timeout: 300 * time.Millisecond})
		},
		"fasthttp": func() Fetcher {
			return NewFastHTTPFetcher(FastHTTPOptions{Logger: logger.NewNopLogger(), Timeout: 300 * time.Millisecond})
		},
	}
}

func TestClassify(t *testing.T) {
	srv := newSite(t)

	tests := []struct {
		name        string
		path        string
		opts        ClassifyOptions
		wantStatus  string
		wantSuccess bool
		wantHTML    bool
		wantBody    bool
	}{
		{name: "html page with body", path: "/", opts: ClassifyOptions{FetchBody: true}, wantStatus: "HTTP/1.1 200 OK", wantSuccess: true, wantHTML: true, wantBody: true},
		{name: "html page head only", path: "/", wantStatus: "HTTP/1.1 200 OK", wantSuccess: true, wantHTML: true},
		{name: "non html never fetches body", path: "/doc.pdf", opts: ClassifyOptions{FetchBody: true}, wantStatus: "HTTP/1.1 200 OK", wantSuccess: true},
		{name: "not found", path: "/missing", opts: ClassifyOptions{FetchBody: true}, wantStatus: "HTTP/1.1 404 Not Found"},
		{name: "redirect is a failure", path: "/moved", opts: ClassifyOptions{FetchBody: true}, wantStatus: "HTTP/1.1 301 Moved Permanently", wantHTML: true},
		{name: "timeout", path: "/slow", wantStatus: StatusTimeout},
		{name: "405 without fallback", path: "/nohead", wantStatus: "HTTP/1.1 405 Method Not Allowed"},
		{name: "405 with fallback", path: "/nohead", opts: ClassifyOptions{FetchBody: true, HeadFallback: true}, wantStatus: "HTTP/1.1 200 OK", wantSuccess: true, wantHTML: true, wantBody: true},
		{name: "gzip body", path: "/gzip", opts: ClassifyOptions{FetchBody: true}, wantStatus: "HTTP/1.1 200 OK", wantSuccess: true, wantHTML: true, wantBody: true},
		{name: "brotli body", path: "/br", opts: ClassifyOptions{FetchBody: true}, wantStatus: "HTTP/1.1 200 OK", wantSuccess: true, wantHTML: true, wantBody: true},
	}

	for name, factory := range fetcherFactories() {
		t.Run(name, func(t *testing.T) {
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					res, err := Classify(context.Background(), factory(), srv.URL+tt.path, tt.opts)
					require.NoError(t, err)
					assert.Equal(t, tt.wantStatus, res.Status)
					assert.Equal(t, tt.wantSuccess, res.Success)
					assert.Equal(t, tt.wantHTML, res.HTML)
					assert.NoError(t, res.BodyErr)
					if tt.wantBody {
						assert.Equal(t, page, string(res.Body))
					} else {
						assert.Empty(t, res.Body)
					}
				})
			}
		})
	}
}

func TestFetchers_TruncateLargeBodies(t *testing.T) {
	big := strings.Repeat(`<a href="/x">x</a>`, 512)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/sized" {
			w.Header().Set("Content-Length", strconv.Itoa(len(big)))
		}
		w.Write([]byte(big))
	}))
	defer srv.Close()

	const limit = 64
	fetchers := map[string]Fetcher{
		"net/http": NewHTTPFetcher(HTTPOptions{Logger: logger.NewNopLogger(), MaxBodyBytes: limit}),
		"fasthttp": NewFastHTTPFetcher(FastHTTPOptions{Logger: logger.NewNopLogger(), MaxBodyBytes: limit}),
	}

	for name, f := range fetchers {
		for _, path := range []string{"/sized", "/chunked"} {
			t.Run(name+path, func(t *testing.T) {
				res, err := Classify(context.Background(), f, srv.URL+path, ClassifyOptions{FetchBody: true})
				require.NoError(t, err)
				assert.True(t, res.Success)
				require.NoError(t, res.BodyErr)
				assert.Equal(t, big[:limit], string(res.Body))
			})
		}
	}
}

func TestClassify_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone"
	srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Logger: logger.NewNopLogger(), MaxRetries: 1, RetryBackoff: time.Millisecond})
	res, err := Classify(context.Background(), f, url, ClassifyOptions{FetchBody: true})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Status, "ERROR "), res.Status)
}

func TestClassify_BodyFailureKeepsClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Logger: logger.NewNopLogger()})
	res, err := Classify(context.Background(), f, srv.URL, ClassifyOptions{FetchBody: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.HTML)
	assert.Error(t, res.BodyErr)
	assert.Empty(t, res.Body)
}

func TestHTTPFetcher_RetriesDroppedConnections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Logger: logger.NewNopLogger(), MaxRetries: 2, RetryBackoff: time.Millisecond})
	resp, err := f.Head(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK", resp.StatusLine())
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestHTTPFetcher_SendsUserAgent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.UserAgent())
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Logger: logger.NewNopLogger(), UserAgent: "linkbot/2"})
	_, err := f.Head(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "linkbot/2", got.Load())
}

func TestIsHTML(t *testing.T) {
	tests := map[string]bool{
		"text/html":                     true,
		"text/html; charset=ISO-8859-1": true,
		"TEXT/HTML":                     true,
		"application/xhtml+xml":         true,
		"application/pdf":               false,
		"text/plain":                    false,
		"":                              false,
		"text/html;;broken":             true,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsHTML(in), in)
	}
}
