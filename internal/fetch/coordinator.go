package fetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	"github.com/feedbrew/feedbrew/internal/platform/observability"
)

const defaultConcurrency = 4

// ValidityRecorder persists per-source fetch outcomes.
type ValidityRecorder interface {
	SetSourceFeedValidity(ctx context.Context, feedID int64, valid bool) error
}

// Coordinator fetches all sources of a processed feed, applies per-source
// retention caps, and merges the entries into one globally sorted batch.
type Coordinator struct {
	fetcher     *Fetcher
	repo        ValidityRecorder
	logger      *zerolog.Logger
	concurrency int
	now         func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(fetcher *Fetcher, repo ValidityRecorder, concurrency int, logger *zerolog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Coordinator{
		fetcher:     fetcher,
		repo:        repo,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Batch is the merged fetch outcome for one processed feed.
type Batch struct {
	Entries []Entry

	// NewLastModified is the earliest Last-Modified reported by any updated
	// source, the conservative candidate for the feed's next watermark. Nil
	// when no source reported one.
	NewLastModified *time.Time
}

// FetchAll fetches every source of the processed feed. Sources are fetched
// concurrently; one source failing never aborts the others. Each source's
// entries are sorted newest-first and truncated to its retention cap before
// the global merge sort.
func (c *Coordinator) FetchAll(ctx context.Context, pf *domain.ProcessedFeed) Batch {
	var (
		mu      sync.Mutex
		entries []Entry
		minMod  *time.Time
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)

	for _, source := range pf.Feeds {
		group.Go(func() error {
			result := c.fetcher.Fetch(groupCtx, source.URL, pf.LastModified)
			c.recordOutcome(groupCtx, source, result)

			if result.Status != StatusUpdated || result.Feed == nil {
				return nil
			}

			sourceEntries := capSourceEntries(result.Feed, source, c.now())

			mu.Lock()
			defer mu.Unlock()

			entries = append(entries, sourceEntries...)

			if result.LastModified != nil && (minMod == nil || result.LastModified.Before(*minMod)) {
				minMod = result.LastModified
			}

			return nil
		})
	}

	// Goroutines never return errors; Wait only synchronizes.
	_ = group.Wait()

	sortEntriesDesc(entries, c.now())

	return Batch{Entries: entries, NewLastModified: minMod}
}

func (c *Coordinator) recordOutcome(ctx context.Context, source domain.SourceFeed, result Result) {
	observability.SourceFetchesTotal.WithLabelValues(string(result.Status)).Inc()

	valid := result.Status != StatusFailed
	if result.Status == StatusFailed {
		c.logger.Warn().Err(result.Err).Str("url", source.URL).Msg("source feed fetch failed")
	} else {
		c.logger.Debug().Str("url", source.URL).Str("status", string(result.Status)).Msg("source feed fetched")
	}

	if err := c.repo.SetSourceFeedValidity(ctx, source.ID, valid); err != nil {
		c.logger.Warn().Err(err).Int64("feed_id", source.ID).Msg("failed to record source feed validity")
	}
}

// capSourceEntries sorts one source's items newest-first and keeps at most
// the source's retention cap.
func capSourceEntries(feed *gofeed.Feed, source domain.SourceFeed, now time.Time) []Entry {
	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, Entry{Item: item, Source: source})
	}

	sortEntriesDesc(entries, now)

	if source.MaxArticlesToKeep > 0 && len(entries) > source.MaxArticlesToKeep {
		entries = entries[:source.MaxArticlesToKeep]
	}

	return entries
}

// sortEntriesDesc orders entries by published time, newest first. Entries
// without a parseable date sort as "now", placing them first.
func sortEntriesDesc(entries []Entry, now time.Time) {
	sort.SliceStable(entries, func(i, j int) bool {
		return effectiveTime(entries[i], now).After(effectiveTime(entries[j], now))
	})
}

func effectiveTime(e Entry, now time.Time) time.Time {
	if t, ok := e.PublishedAt(); ok {
		return t
	}

	return now
}
