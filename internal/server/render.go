package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
	"github.com/feedbrew/feedbrew/internal/core/filter"
	"github.com/feedbrew/feedbrew/internal/platform/htmlutils"
)

// renderBatchLimit bounds one article page while assembling feed items.
const renderBatchLimit = 500

// renderFeed builds the RSS document for a processed feed: the latest digest
// entry first when digests are enabled, then stored articles newest first,
// deduplicated by link, re-filtered and capped by the global setting.
func (s *Server) renderFeed(ctx context.Context, pf *domain.ProcessedFeed, authKey string) (string, error) {
	items, err := s.collectItems(ctx, pf, authKey)
	if err != nil {
		return "", err
	}

	urls := make([]string, 0, len(pf.Feeds))
	for _, sf := range pf.Feeds {
		urls = append(urls, sf.URL)
	}

	out := &feeds.Feed{
		Title: pf.Name,
		Link:  &feeds.Link{Href: "/feeds/" + pf.Name},
		Description: fmt.Sprintf(
			"Processed feed combining these original feeds: %s, with %d filter groups. "+
				"All rights of the content belong to the original authors.",
			strings.Join(urls, ", "), len(pf.FilterGroups)),
		Created: time.Now(),
		Items:   items,
	}

	return out.ToRss()
}

func (s *Server) collectItems(ctx context.Context, pf *domain.ProcessedFeed, authKey string) ([]*feeds.Item, error) {
	var items []*feeds.Item

	if pf.ToggleDigest {
		d, err := s.repo.LatestDigest(ctx, pf.ID)

		switch {
		case err == nil:
			items = append(items, digestItem(pf, d, authKey))
		case errors.Is(err, coreerrors.ErrNotFound):
		default:
			return nil, err
		}
	}

	if !pf.ToggleEntries {
		return items, nil
	}

	maxArticles, err := s.repo.MaxArticlesPerFeed(ctx)
	if err != nil {
		return nil, err
	}

	sourceIDs := make([]int64, 0, len(pf.Feeds))
	for _, sf := range pf.Feeds {
		sourceIDs = append(sourceIDs, sf.ID)
	}

	// Fetch in pages larger than the cap to absorb duplicates and filtered
	// rows without a second round trip in the common case.
	batchSize := maxArticles * 3
	if batchSize > renderBatchLimit {
		batchSize = renderBatchLimit
	}

	seen := make(map[string]bool)
	kept := 0

	for offset := 0; kept < maxArticles; offset += batchSize {
		batch, err := s.repo.RecentArticles(ctx, sourceIDs, batchSize, offset)
		if err != nil {
			return nil, err
		}

		if len(batch) == 0 {
			break
		}

		for i := range batch {
			if kept >= maxArticles {
				break
			}

			a := &batch[i]

			if !filter.Passes(a, pf, domain.UsageFeedFilter) {
				continue
			}

			if seen[a.Link] {
				continue
			}

			seen[a.Link] = true
			items = append(items, articleItem(a))
			kept++
		}
	}

	return items, nil
}

func articleItem(a *domain.Article) *feeds.Item {
	return &feeds.Item{
		Title:       htmlutils.StripControlChars(a.Title),
		Link:        &feeds.Link{Href: a.Link},
		Description: articleDescription(a),
		Created:     a.PublishedDate,
		Id:          a.Link,
	}
}

// articleDescription combines summaries with the original content. An
// unsummarized article renders its content alone.
func articleDescription(a *domain.Article) string {
	description := htmlutils.StripControlChars(a.Content)

	if a.Summary != "" {
		description = fmt.Sprintf("<br/><br/>%s<br/><br/>Original Content:<br/>%s", a.Summary, a.Content)
	}

	if a.SummaryOneLine != "" {
		description = fmt.Sprintf("%s<br/>%s", a.SummaryOneLine, description)
	}

	return description
}

func digestItem(pf *domain.ProcessedFeed, d *domain.Digest, authKey string) *feeds.Item {
	link := fmt.Sprintf("/feeds/%s/digest/%s", pf.Name, d.CreatedAt.Format("2006-01-02"))
	if authKey != "" {
		link += "?key=" + authKey
	}

	return &feeds.Item{
		Title: fmt.Sprintf("Digest for %s %s to %s", pf.Name,
			d.StartTime.Format("2006-01-02 15:04:05"), d.CreatedAt.Format("2006-01-02 15:04:05")),
		Link:        &feeds.Link{Href: link},
		Description: d.Content,
		Created:     d.CreatedAt,
		Id:          link,
	}
}

// renderDigestPage writes a minimal standalone HTML page for a digest.
func renderDigestPage(w io.Writer, feedName string, d *domain.Digest) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Digest for %[1]s</title></head>
<body>
<h1>Digest for %[1]s</h1>
<p>%[2]s - %[3]s</p>
%[4]s
</body>
</html>
`,
		html.EscapeString(feedName),
		d.StartTime.Format("2006-01-02 15:04"),
		d.CreatedAt.Format("2006-01-02 15:04"),
		d.Content,
	)
}
