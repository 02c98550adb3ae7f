// Package report tallies crawl outcomes and renders the final report.
package report

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/will-x86/brokenlinks/storage"
)

// Outcome is the classification of one dispatched URL.
type Outcome struct {
	URL     string
	Status  string
	Success bool
	HTML    bool
}

// BrokenLink is a ledger entry for a URL that failed.
type BrokenLink struct {
	URL     string   `json:"url"`
	Status  string   `json:"status"`
	Count   int      `json:"count"`
	FoundAt []string `json:"found_at"`
}

// Snapshot is the frozen result of a run.
type Snapshot struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Scanned    int          `json:"scanned"`
	Successful int          `json:"successful"`
	Erred      int          `json:"erred"`
	FilesFound int          `json:"files_found"`
	Broken     []BrokenLink `json:"broken"`
	Files      []string     `json:"files"`
}

// Aggregator owns the tally, the broken link ledger and the file list. It is safe for
// concurrent use.
type Aggregator struct {
	providers storage.ProviderIndex
	runID     string
	startedAt time.Time

	mu         sync.Mutex
	scanned    int
	successful int
	erred      int
	broken     []*BrokenLink
	brokenIdx  map[string]*BrokenLink
	// encounters counts rediscoveries of URLs that are visited but not recorded yet.
	encounters map[string]int
	healthy    map[string]bool
	files      []string
	fileSet    map[string]bool
}

func NewAggregator(providers storage.ProviderIndex) *Aggregator {
	return &Aggregator{
		providers:  providers,
		runID:      uuid.NewString(),
		startedAt:  time.Now(),
		brokenIdx:  make(map[string]*BrokenLink),
		encounters: make(map[string]int),
		healthy:    make(map[string]bool),
		fileSet:    make(map[string]bool),
	}
}

func (a *Aggregator) RunID() string {
	return a.runID
}

// Record tallies one dispatched fetch.
func (a *Aggregator) Record(ctx context.Context, o Outcome) error {
	var foundAt []string
	if !o.Success {
		var err error
		if foundAt, err = a.providers.Providers(ctx, o.URL); err != nil {
			return fmt.Errorf("failed to read providers of %s: %w", o.URL, err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.scanned++
	if o.Success {
		a.successful++
		a.healthy[o.URL] = true
		delete(a.encounters, o.URL)
		if !o.HTML {
			a.addFile(o.URL)
		}
		return nil
	}

	a.erred++
	if link, ok := a.brokenIdx[o.URL]; ok {
		link.Count++
		link.FoundAt = foundAt
		return nil
	}
	link := &BrokenLink{
		URL:     o.URL,
		Status:  o.Status,
		Count:   1 + a.encounters[o.URL],
		FoundAt: foundAt,
	}
	delete(a.encounters, o.URL)
	a.broken = append(a.broken, link)
	a.brokenIdx[o.URL] = link

	if looksLikeFile(o.URL) {
		a.addFile(o.URL)
	}
	return nil
}

// Rediscovered notes that an already visited URL was linked again. It never refetches.
func (a *Aggregator) Rediscovered(ctx context.Context, target string) error {
	a.mu.Lock()
	_, isBroken := a.brokenIdx[target]
	if !isBroken {
		if !a.healthy[target] {
			a.encounters[target]++
		}
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	foundAt, err := a.providers.Providers(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to read providers of %s: %w", target, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	link := a.brokenIdx[target]
	link.Count++
	link.FoundAt = foundAt
	return nil
}

// Counts returns scanned, successful and erred as one consistent reading.
func (a *Aggregator) Counts() (scanned, successful, erred int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanned, a.successful, a.erred
}

// Snapshot freezes the current state. found_at lists are refreshed one last time so they
// include referrers recorded after the failure.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	a.mu.Lock()
	urls := make([]string, len(a.broken))
	for i, link := range a.broken {
		urls[i] = link.URL
	}
	a.mu.Unlock()

	fresh := make(map[string][]string, len(urls))
	for _, u := range urls {
		foundAt, err := a.providers.Providers(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("failed to read providers of %s: %w", u, err)
		}
		fresh[u] = foundAt
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s := &Snapshot{
		RunID:      a.runID,
		StartedAt:  a.startedAt,
		FinishedAt: time.Now(),
		Scanned:    a.scanned,
		Successful: a.successful,
		Erred:      a.erred,
		FilesFound: len(a.files),
		Broken:     make([]BrokenLink, 0, len(a.broken)),
		Files:      append([]string{}, a.files...),
	}
	for _, link := range a.broken {
		foundAt, ok := fresh[link.URL]
		if !ok {
			foundAt = link.FoundAt
		}
		s.Broken = append(s.Broken, BrokenLink{
			URL:     link.URL,
			Status:  link.Status,
			Count:   link.Count,
			FoundAt: append([]string{}, foundAt...),
		})
	}
	return s, nil
}

func (a *Aggregator) addFile(u string) {
	if a.fileSet[u] {
		return
	}
	a.fileSet[u] = true
	a.files = append(a.files, u)
}

var pageExtensions = map[string]bool{
	".html":  true,
	".htm":   true,
	".xhtml": true,
	".php":   true,
	".asp":   true,
	".aspx":  true,
	".jsp":   true,
}

// looksLikeFile reports whether the URL path ends in a file extension that is not a page.
func looksLikeFile(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return ext != "" && ext != "." && !pageExtensions[ext]
}
