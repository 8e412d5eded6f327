package opml

import (
	"context"
	"fmt"
	"io"

	"github.com/feedbrew/feedbrew/internal/core/domain"
)

// Store is the storage surface an OPML import writes through.
type Store interface {
	CreateSourceFeed(ctx context.Context, sf *domain.SourceFeed) error
	EnsureTag(ctx context.Context, name string) (int64, error)
	TagSourceFeed(ctx context.Context, feedID, tagID int64) error
}

// ImportResult summarizes an import run.
type ImportResult struct {
	FeedsSeen    int
	TagsAttached int
}

// Import parses an OPML document and persists its feeds and tags. Re-running
// an import is safe: feeds dedup by URL and tags by name.
func Import(ctx context.Context, store Store, r io.Reader) (ImportResult, error) {
	entries, err := Parse(r)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult

	tagIDs := make(map[string]int64)

	for _, entry := range entries {
		sf := &domain.SourceFeed{URL: entry.URL, Title: entry.Title}
		if err := store.CreateSourceFeed(ctx, sf); err != nil {
			return result, fmt.Errorf("import feed %s: %w", entry.URL, err)
		}

		result.FeedsSeen++

		for _, name := range entry.Tags {
			id, ok := tagIDs[name]
			if !ok {
				id, err = store.EnsureTag(ctx, name)
				if err != nil {
					return result, fmt.Errorf("ensure tag %s: %w", name, err)
				}

				tagIDs[name] = id
			}

			if err = store.TagSourceFeed(ctx, sf.ID, id); err != nil {
				return result, fmt.Errorf("tag feed %s: %w", entry.URL, err)
			}

			result.TagsAttached++
		}
	}

	return result, nil
}
