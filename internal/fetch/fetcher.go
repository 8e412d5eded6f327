// Package fetch retrieves source feeds with conditional-GET semantics and
// merges their entries for ingestion.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
)

const defaultFetchTimeout = 30 * time.Second

// Status is the outcome of one source feed fetch attempt.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusNotModified Status = "not_modified"
	StatusFailed      Status = "failed"
)

// Result is the outcome of fetching one source feed.
type Result struct {
	Status       Status
	Feed         *gofeed.Feed
	LastModified *time.Time
	Err          error
}

// userAgents is rotated per request; some feed hosts throttle repeated
// identical agents.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// Fetcher issues conditional GETs against source feeds.
type Fetcher struct {
	client  *http.Client
	parser  *gofeed.Parser
	logger  *zerolog.Logger
	uaIndex atomic.Uint64
}

// NewFetcher creates a Fetcher. A non-positive timeout falls back to 30s.
func NewFetcher(timeout time.Duration, logger *zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// Fetch retrieves one source feed. A non-nil since is sent as
// If-Modified-Since so an unchanged feed answers 304 without a body.
func (f *Fetcher) Fetch(ctx context.Context, url string, since *time.Time) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Status: StatusFailed, Err: fmt.Errorf("build request: %w", err)}
	}

	if since != nil {
		req.Header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
	}

	req.Header.Set("User-Agent", f.nextUserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Status: StatusFailed, Err: fmt.Errorf("fetch feed: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Result{Status: StatusNotModified}
	case resp.StatusCode != http.StatusOK:
		return Result{
			Status: StatusFailed,
			Err:    fmt.Errorf("%w: status %d", coreerrors.ErrFeedFetchFailed, resp.StatusCode),
		}
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return Result{Status: StatusFailed, Err: fmt.Errorf("parse feed: %w", err)}
	}

	return Result{
		Status:       StatusUpdated,
		Feed:         feed,
		LastModified: parseLastModified(resp.Header.Get("Last-Modified")),
	}
}

func (f *Fetcher) nextUserAgent() string {
	idx := f.uaIndex.Add(1)
	return userAgents[idx%uint64(len(userAgents))]
}

func parseLastModified(header string) *time.Time {
	if header == "" {
		return nil
	}

	t, err := http.ParseTime(header)
	if err != nil {
		return nil
	}

	t = t.UTC()

	return &t
}
