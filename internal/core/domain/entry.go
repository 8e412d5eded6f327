package domain

import (
	"strings"
	"time"
)

const untitledExcerptLen = 50

// Entry is anything the filter engine can evaluate: a freshly fetched feed
// entry or a stored Article. Each accessor returns the raw field value; field
// resolution policy (fallback chains, HTML cleaning) lives with the callers.
type Entry interface {
	RawTitle() string
	RawContent() string
	RawLink() string
	PublishedAt() (time.Time, bool)
}

// GeneratedTitle returns the entry title, falling back to a short content
// excerpt, then the link, then "Untitled".
func GeneratedTitle(e Entry) string {
	if title := strings.TrimSpace(e.RawTitle()); title != "" {
		return title
	}

	if content := strings.TrimSpace(e.RawContent()); content != "" {
		runes := []rune(content)
		if len(runes) > untitledExcerptLen {
			return string(runes[:untitledExcerptLen])
		}

		return content
	}

	if link := e.RawLink(); link != "" {
		return link
	}

	return "Untitled"
}

// RawTitle implements Entry for stored articles.
func (a *Article) RawTitle() string { return a.Title }

// RawContent implements Entry for stored articles.
func (a *Article) RawContent() string { return a.Content }

// RawLink implements Entry for stored articles.
func (a *Article) RawLink() string { return a.Link }

// PublishedAt implements Entry for stored articles.
func (a *Article) PublishedAt() (time.Time, bool) {
	return a.PublishedDate, !a.PublishedDate.IsZero()
}
