package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
	"github.com/feedbrew/feedbrew/internal/core/llm"
)

type digestRepo struct {
	articles    []domain.Article
	digests     []*domain.Digest
	lastDigests map[int64]time.Time

	gotStart time.Time
	gotEnd   time.Time
	gotIDs   []int64
}

func newDigestRepo(articles ...domain.Article) *digestRepo {
	return &digestRepo{articles: articles, lastDigests: make(map[int64]time.Time)}
}

func (r *digestRepo) ArticlesBySourceWindow(_ context.Context, ids []int64, start, end time.Time) ([]domain.Article, error) {
	r.gotIDs, r.gotStart, r.gotEnd = ids, start, end

	allowed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}

	var out []domain.Article
	for _, a := range r.articles {
		if allowed[a.SourceFeedID] && !a.PublishedDate.Before(start) && !a.PublishedDate.After(end) {
			out = append(out, a)
		}
	}

	return out, nil
}

func (r *digestRepo) CreateDigest(_ context.Context, d *domain.Digest) error {
	d.ID = int64(len(r.digests) + 1)
	r.digests = append(r.digests, d)

	return nil
}

func (r *digestRepo) SetLastDigest(_ context.Context, pfID int64, at time.Time) error {
	r.lastDigests[pfID] = at
	return nil
}

func disabledClient() *llm.MockClient {
	return &llm.MockClient{
		SummarizeFunc: func(context.Context, llm.Request) (string, error) {
			return "", coreerrors.ErrClientDisabled
		},
	}
}

func composerAt(repo Repository, client llm.Client, now time.Time) *Composer {
	logger := zerolog.Nop()
	c := NewComposer(repo, client, &logger)
	c.now = func() time.Time { return now }

	return c
}

func TestDueThresholds(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		freq domain.DigestFrequency
		last *time.Time
		want bool
	}{
		{name: "never digested", freq: domain.DigestDaily, last: nil, want: true},
		{name: "daily just under threshold", freq: domain.DigestDaily, last: ptr(now.Add(-11 * time.Hour)), want: false},
		{name: "daily past threshold", freq: domain.DigestDaily, last: ptr(now.Add(-13 * time.Hour)), want: true},
		{name: "weekly just under threshold", freq: domain.DigestWeekly, last: ptr(now.Add(-6 * 24 * time.Hour)), want: false},
		{name: "weekly past threshold", freq: domain.DigestWeekly, last: ptr(now.Add(-7 * 24 * time.Hour)), want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pf := &domain.ProcessedFeed{DigestFrequency: tc.freq, LastDigest: tc.last}
			assert.Equal(t, tc.want, Due(pf, now))
		})
	}
}

func TestGenerateAdvancesWatermark(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newDigestRepo(domain.Article{
		SourceFeedID:  1,
		Title:         "fresh",
		Link:          "http://ex.com/a",
		PublishedDate: now.Add(-2 * time.Hour),
	})
	c := composerAt(repo, disabledClient(), now)

	pf := &domain.ProcessedFeed{
		ID:              7,
		Name:            "daily",
		DigestFrequency: domain.DigestDaily,
		Feeds:           []domain.SourceFeed{{ID: 1, URL: "http://src", Title: "Src"}},
	}

	require.NoError(t, c.Generate(context.Background(), pf, false))
	require.Len(t, repo.digests, 1)
	assert.Equal(t, now, repo.lastDigests[7])
	require.NotNil(t, pf.LastDigest)

	// First run covers one period plus pad of history.
	assert.Equal(t, now.Add(-24*time.Hour), repo.gotStart)
	assert.Equal(t, now, repo.gotEnd)
	assert.Equal(t, now.Add(-24*time.Hour), repo.digests[0].StartTime)

	// Immediately after, nothing is due.
	require.NoError(t, c.Generate(context.Background(), pf, false))
	assert.Len(t, repo.digests, 1)
}

func TestGenerateWindowStartsAtLastDigest(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	last := now.Add(-24 * time.Hour)

	repo := newDigestRepo(
		domain.Article{SourceFeedID: 1, Title: "in window", Link: "http://ex.com/a", PublishedDate: now.Add(-3 * time.Hour)},
		domain.Article{SourceFeedID: 1, Title: "before window", Link: "http://ex.com/b", PublishedDate: last.Add(-time.Hour)},
	)
	c := composerAt(repo, disabledClient(), now)

	pf := &domain.ProcessedFeed{
		ID:              1,
		Name:            "daily",
		DigestFrequency: domain.DigestDaily,
		LastDigest:      &last,
		Feeds:           []domain.SourceFeed{{ID: 1}},
	}

	require.NoError(t, c.Generate(context.Background(), pf, false))
	assert.Equal(t, last, repo.gotStart)
	require.Len(t, repo.digests, 1)
	assert.Contains(t, repo.digests[0].Content, "in window")
	assert.NotContains(t, repo.digests[0].Content, "before window")
}

func TestGenerateSkipsEmptyWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newDigestRepo()
	c := composerAt(repo, disabledClient(), now)

	pf := &domain.ProcessedFeed{
		ID:              3,
		Name:            "quiet",
		DigestFrequency: domain.DigestDaily,
		Feeds:           []domain.SourceFeed{{ID: 1}},
	}

	require.NoError(t, c.Generate(context.Background(), pf, false))
	assert.Empty(t, repo.digests)
	assert.Nil(t, pf.LastDigest, "empty window leaves the watermark untouched")
}

func TestGenerateForceIgnoresDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)

	repo := newDigestRepo(domain.Article{
		SourceFeedID: 1, Title: "a", Link: "http://ex.com/a", PublishedDate: now.Add(-30 * time.Minute),
	})
	c := composerAt(repo, disabledClient(), now)

	pf := &domain.ProcessedFeed{
		ID: 1, Name: "n", DigestFrequency: domain.DigestDaily,
		LastDigest: &last,
		Feeds:      []domain.SourceFeed{{ID: 1}},
	}

	require.NoError(t, c.Generate(context.Background(), pf, false))
	assert.Empty(t, repo.digests)

	require.NoError(t, c.Generate(context.Background(), pf, true))
	assert.Len(t, repo.digests, 1)
}

func TestRenderGroupsBySource(t *testing.T) {
	sources := []domain.SourceFeed{
		{ID: 1, URL: "http://one", Title: "One"},
		{ID: 2, URL: "http://two", Title: "Two"},
	}
	articles := []domain.Article{
		{SourceFeedID: 1, Title: "older", Link: "http://one/a", PublishedDate: time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)},
		{SourceFeedID: 2, Title: "other", Link: "http://two/a", PublishedDate: time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC)},
		{SourceFeedID: 1, Title: "newer", Link: "http://one/b", PublishedDate: time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC),
			SummaryOneLine: "gist"},
	}

	pf := &domain.ProcessedFeed{IncludeOneLineSummary: true}
	out := Render(pf, sources, articles)

	assert.Contains(t, out, "<h2><a href='http://one'>One</a></h2>")
	assert.Contains(t, out, "<h2><a href='http://two'>Two</a></h2>")
	assert.Contains(t, out, "<ul><blockquote>gist</blockquote></ul>")

	// Within a source, newest first; sources stay contiguous.
	assert.Less(t, strings.Index(out, "newer"), strings.Index(out, "older"))
	one := strings.Index(out, "One")
	two := strings.Index(out, "Two")
	older := strings.Index(out, "older")
	assert.Less(t, one, older)
	assert.Less(t, older, two)
}

func TestRenderHonorsIncludeFlags(t *testing.T) {
	sources := []domain.SourceFeed{{ID: 1, URL: "http://one", Title: "One"}}
	articles := []domain.Article{{
		SourceFeedID:   1,
		Title:          "a",
		Link:           "http://one/a",
		SummaryOneLine: "one line",
		Summary:        "long form",
		Content:        "full body",
	}}

	out := Render(&domain.ProcessedFeed{}, sources, articles)
	assert.NotContains(t, out, "one line")
	assert.NotContains(t, out, "long form")
	assert.NotContains(t, out, "full body")

	out = Render(&domain.ProcessedFeed{IncludeOneLineSummary: true, IncludeSummary: true, IncludeContent: true}, sources, articles)
	assert.Contains(t, out, "<ul><blockquote>one line</blockquote></ul>")
	assert.Contains(t, out, "<ul><blockquote>long form</blockquote></ul>")
	assert.Contains(t, out, "<ul><blockquote>full body</blockquote></ul>")
}

func TestGenerateAIDigestSection(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newDigestRepo(domain.Article{
		SourceFeedID: 1, Title: "a", Link: "http://ex.com/a", PublishedDate: now.Add(-time.Hour),
	})

	client := &llm.MockClient{
		SummarizeFunc: func(_ context.Context, req llm.Request) (string, error) {
			return "<p>themes of the day</p>", nil
		},
	}
	c := composerAt(repo, client, now)

	pf := &domain.ProcessedFeed{
		ID: 1, Name: "n",
		DigestFrequency: domain.DigestDaily,
		UseAIDigest:     true,
		DigestModel:     "gpt-4.1-mini",
		Feeds:           []domain.SourceFeed{{ID: 1, URL: "http://src", Title: "Src"}},
	}

	require.NoError(t, c.Generate(context.Background(), pf, false))
	require.Len(t, repo.digests, 1)
	assert.Contains(t, repo.digests[0].Content, "<h2>AI Digest</h2><p>themes of the day</p>")

	require.Len(t, client.Requests, 1)
	assert.Equal(t, "gpt-4.1-mini", client.Requests[0].Model)
	assert.Equal(t, llm.ModeHTML, client.Requests[0].Mode)
	assert.Contains(t, client.Requests[0].Content, "Title: a")
}

func ptr(t time.Time) *time.Time { return &t }
