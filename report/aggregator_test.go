package report

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/will-x86/brokenlinks/storage"
)

func TestAggregator_Record(t *testing.T) {
	ctx := context.Background()
	providers := storage.NewMemoryProviderIndex()
	require.NoError(t, providers.Append(ctx, "http://example.com/missing", "http://example.com"))
	require.NoError(t, providers.Append(ctx, "http://example.com/missing", "http://example.com/about"))

	agg := NewAggregator(providers)
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com", Status: "HTTP/1.1 200 OK", Success: true, HTML: true}))
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/doc.pdf", Status: "HTTP/1.1 200 OK", Success: true}))
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/missing", Status: "HTTP/1.1 404 Not Found"}))

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Scanned)
	assert.Equal(t, 2, snap.Successful)
	assert.Equal(t, 1, snap.Erred)
	assert.Equal(t, []string{"http://example.com/doc.pdf"}, snap.Files)
	assert.Equal(t, 1, snap.FilesFound)
	require.Len(t, snap.Broken, 1)
	assert.Equal(t, BrokenLink{
		URL:     "http://example.com/missing",
		Status:  "HTTP/1.1 404 Not Found",
		Count:   1,
		FoundAt: []string{"http://example.com", "http://example.com/about"},
	}, snap.Broken[0])
	assert.NotEmpty(t, snap.RunID)
	assert.False(t, snap.FinishedAt.Before(snap.StartedAt))
}

func TestAggregator_RediscoveryUpdatesLedger(t *testing.T) {
	ctx := context.Background()
	providers := storage.NewMemoryProviderIndex()
	agg := NewAggregator(providers)

	target := "http://example.com/missing"
	require.NoError(t, providers.Append(ctx, target, "http://example.com"))
	require.NoError(t, agg.Record(ctx, Outcome{URL: target, Status: "HTTP/1.1 404 Not Found"}))

	require.NoError(t, providers.Append(ctx, target, "http://example.com/later"))
	require.NoError(t, agg.Rediscovered(ctx, target))

	scanned, _, erred := agg.Counts()
	assert.Equal(t, 1, scanned, "rediscovery never counts as a fetch")
	assert.Equal(t, 1, erred)

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Broken, 1)
	assert.Equal(t, 2, snap.Broken[0].Count)
	assert.Equal(t, []string{"http://example.com", "http://example.com/later"}, snap.Broken[0].FoundAt)
}

func TestAggregator_EncountersBeforeFailureCount(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(storage.NewMemoryProviderIndex())

	require.NoError(t, agg.Rediscovered(ctx, "http://example.com/x"))
	require.NoError(t, agg.Rediscovered(ctx, "http://example.com/ok"))
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/x", Status: "HTTP/1.1 500 Internal Server Error"}))
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/ok", Status: "HTTP/1.1 200 OK", Success: true, HTML: true}))

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Broken, 1)
	assert.Equal(t, 2, snap.Broken[0].Count)
}

func TestAggregator_HealthyRediscoveriesLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(storage.NewMemoryProviderIndex())

	require.NoError(t, agg.Rediscovered(ctx, "http://example.com/ok"))
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/ok", Status: "HTTP/1.1 200 OK", Success: true, HTML: true}))
	for i := 0; i < 3; i++ {
		require.NoError(t, agg.Rediscovered(ctx, "http://example.com/ok"))
	}

	assert.Empty(t, agg.encounters)
	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Broken)
}

func TestAggregator_StatusSetOnce(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(storage.NewMemoryProviderIndex())

	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/x", Status: "HTTP/1.1 404 Not Found"}))
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/x", Status: "HTTP/1.1 500 Internal Server Error"}))

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Broken, 1)
	assert.Equal(t, "HTTP/1.1 404 Not Found", snap.Broken[0].Status)
	assert.Equal(t, 2, snap.Broken[0].Count)
	assert.Equal(t, 2, snap.Erred)
}

func TestAggregator_FailedFilesAreListed(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(storage.NewMemoryProviderIndex())

	for _, u := range []string{
		"http://example.com/gone.zip",
		"http://example.com/gone.html",
		"http://example.com/gone",
		"http://example.com/v1.2/",
	} {
		require.NoError(t, agg.Record(ctx, Outcome{URL: u, Status: "HTTP/1.1 404 Not Found"}))
	}

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/gone.zip"}, snap.Files)
	assert.Equal(t, []string{
		"http://example.com/gone.zip",
		"http://example.com/gone.html",
		"http://example.com/gone",
		"http://example.com/v1.2/",
	}, snap.BrokenURLs())
}

func TestAggregator_TallyInvariantUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(storage.NewMemoryProviderIndex())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	violations := make(chan string, 1)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			scanned, ok, bad := agg.Counts()
			if scanned != ok+bad {
				select {
				case violations <- fmt.Sprintf("scanned %d != %d + %d", scanned, ok, bad):
				default:
				}
			}
		}
	}()

	for i := range 200 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := Outcome{URL: fmt.Sprintf("http://example.com/%d", i), Status: "HTTP/1.1 200 OK", Success: i%3 != 0, HTML: true}
			if !o.Success {
				o.Status = "HTTP/1.1 404 Not Found"
			}
			assert.NoError(t, agg.Record(ctx, o))
		}(i)
	}
	wg.Wait()
	close(stop)

	select {
	case v := <-violations:
		t.Fatal(v)
	default:
	}

	scanned, ok, bad := agg.Counts()
	assert.Equal(t, 200, scanned)
	assert.Equal(t, 200, ok+bad)
	assert.Equal(t, 67, bad)
}

func TestSnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	providers := storage.NewMemoryProviderIndex()
	agg := NewAggregator(providers)

	require.NoError(t, providers.Append(ctx, "http://example.com/x", "http://example.com"))
	require.NoError(t, agg.Record(ctx, Outcome{URL: "http://example.com/x", Status: "HTTP/1.1 404 Not Found"}))

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, providers.Append(ctx, "http://example.com/x", "http://example.com/y"))
	require.NoError(t, agg.Rediscovered(ctx, "http://example.com/x"))

	assert.Equal(t, 1, snap.Broken[0].Count)
	assert.Equal(t, []string{"http://example.com"}, snap.Broken[0].FoundAt)
}
