package fetch

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/feedbrew/feedbrew/internal/core/domain"
)

// Entry pairs a fetched feed item with its source feed. It implements
// domain.Entry so the filter engine evaluates fetched items and stored
// articles uniformly.
type Entry struct {
	Item   *gofeed.Item
	Source domain.SourceFeed
}

// RawTitle implements domain.Entry.
func (e Entry) RawTitle() string { return e.Item.Title }

// RawContent implements domain.Entry. Structured content wins over the
// description, matching the usual RSS/Atom precedence.
func (e Entry) RawContent() string {
	if e.Item.Content != "" {
		return e.Item.Content
	}

	return e.Item.Description
}

// RawLink implements domain.Entry.
func (e Entry) RawLink() string { return e.Item.Link }

// PublishedAt implements domain.Entry. The parser's timestamp wins; raw date
// strings go through a lenient fallback parse.
func (e Entry) PublishedAt() (time.Time, bool) {
	if t := publishedTime(e.Item); t != nil {
		return *t, true
	}

	return time.Time{}, false
}

// publishedTime resolves an item's publication time, trying the published
// then updated fields, parsed then raw.
func publishedTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}

	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}

	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}

		if t, err := dateparse.ParseAny(raw); err == nil {
			return &t
		}
	}

	return nil
}
