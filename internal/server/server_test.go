package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
)

type repoStub struct {
	pingErr     error
	pf          *domain.ProcessedFeed
	articles    []domain.Article
	digest      *domain.Digest
	sources     []domain.SourceFeed
	authCode    string
	maxArticles int
}

func (r *repoStub) Ping(context.Context) error { return r.pingErr }

func (r *repoStub) GetProcessedFeedByName(_ context.Context, name string) (*domain.ProcessedFeed, error) {
	if r.pf == nil || r.pf.Name != name {
		return nil, coreerrors.ErrNotFound
	}

	return r.pf, nil
}

func (r *repoStub) RecentArticles(_ context.Context, _ []int64, limit, offset int) ([]domain.Article, error) {
	if offset >= len(r.articles) {
		return nil, nil
	}

	end := offset + limit
	if end > len(r.articles) {
		end = len(r.articles)
	}

	return r.articles[offset:end], nil
}

func (r *repoStub) LatestDigest(context.Context, int64) (*domain.Digest, error) {
	if r.digest == nil {
		return nil, coreerrors.ErrNotFound
	}

	return r.digest, nil
}

func (r *repoStub) DigestByDate(_ context.Context, _ int64, day time.Time) (*domain.Digest, error) {
	if r.digest == nil || !r.digest.CreatedAt.Truncate(24*time.Hour).Equal(day) {
		return nil, coreerrors.ErrNotFound
	}

	return r.digest, nil
}

func (r *repoStub) ListSourceFeeds(context.Context) ([]domain.SourceFeed, error) {
	return r.sources, nil
}

func (r *repoStub) AuthCode(context.Context) (string, error) { return r.authCode, nil }

func (r *repoStub) MaxArticlesPerFeed(context.Context) (int, error) {
	if r.maxArticles == 0 {
		return 100, nil
	}

	return r.maxArticles, nil
}

func newTestServer(repo Repository) *httptest.Server {
	logger := zerolog.Nop()
	return httptest.NewServer(New(repo, 0, &logger).Router())
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&repoStub{})
	defer srv.Close()

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)

	resp, _ = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyzReportsDBFailure(t *testing.T) {
	srv := newTestServer(&repoStub{pingErr: errors.New("down")})
	defer srv.Close()

	resp, body := get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "down")
}

func TestFeedNotFound(t *testing.T) {
	srv := newTestServer(&repoStub{})
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/feeds/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFeedRendersEntries(t *testing.T) {
	published := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	repo := &repoStub{
		pf: &domain.ProcessedFeed{
			ID:            1,
			Name:          "tech",
			ToggleEntries: true,
			Feeds:         []domain.SourceFeed{{ID: 1, URL: "http://src"}},
		},
		articles: []domain.Article{
			{ID: 1, SourceFeedID: 1, Title: "first\x07title", Link: "http://ex.com/a", PublishedDate: published,
				Content: "body a", Summary: "long sum", SummaryOneLine: "one line"},
			{ID: 2, SourceFeedID: 1, Title: "dup", Link: "http://ex.com/a", PublishedDate: published},
			{ID: 3, SourceFeedID: 1, Title: "second", Link: "http://ex.com/b", PublishedDate: published,
				Content: "body b"},
		},
	}
	srv := newTestServer(repo)
	defer srv.Close()

	resp, body := get(t, srv.URL+"/feeds/tech")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/rss+xml")

	assert.Contains(t, body, "firsttitle", "control characters stripped from titles")
	assert.Contains(t, body, "second")
	assert.NotContains(t, body, ">dup<", "same link renders once")
	assert.Contains(t, body, "one line")
	assert.Contains(t, body, "Original Content:")
}

func TestFeedAppliesGlobalCap(t *testing.T) {
	published := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	repo := &repoStub{
		pf: &domain.ProcessedFeed{
			ID: 1, Name: "tech", ToggleEntries: true,
			Feeds: []domain.SourceFeed{{ID: 1}},
		},
		maxArticles: 2,
		articles: []domain.Article{
			{ID: 1, SourceFeedID: 1, Title: "a1", Link: "http://ex.com/1", PublishedDate: published},
			{ID: 2, SourceFeedID: 1, Title: "a2", Link: "http://ex.com/2", PublishedDate: published},
			{ID: 3, SourceFeedID: 1, Title: "a3", Link: "http://ex.com/3", PublishedDate: published},
		},
	}
	srv := newTestServer(repo)
	defer srv.Close()

	_, body := get(t, srv.URL+"/feeds/tech")
	assert.Contains(t, body, "a1")
	assert.Contains(t, body, "a2")
	assert.NotContains(t, body, "a3")
}

func TestFeedReappliesFilters(t *testing.T) {
	published := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	repo := &repoStub{
		pf: &domain.ProcessedFeed{
			ID: 1, Name: "tech", ToggleEntries: true,
			Feeds:                       []domain.SourceFeed{{ID: 1}},
			FeedGroupRelationalOperator: domain.OperatorAll,
			FilterGroups: []domain.FilterGroup{{
				Usage:              domain.UsageFeedFilter,
				RelationalOperator: domain.OperatorAll,
				Filters: []domain.Filter{{
					Field:     domain.FieldTitle,
					MatchType: domain.MatchContains,
					Value:     "keep",
				}},
			}},
		},
		articles: []domain.Article{
			{ID: 1, SourceFeedID: 1, Title: "keep this", Link: "http://ex.com/1", PublishedDate: published},
			{ID: 2, SourceFeedID: 1, Title: "drop this", Link: "http://ex.com/2", PublishedDate: published},
		},
	}
	srv := newTestServer(repo)
	defer srv.Close()

	_, body := get(t, srv.URL+"/feeds/tech")
	assert.Contains(t, body, "keep this")
	assert.NotContains(t, body, "drop this")
}

func TestFeedDigestEntryFirst(t *testing.T) {
	created := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	published := created.Add(-2 * time.Hour)

	repo := &repoStub{
		pf: &domain.ProcessedFeed{
			ID: 1, Name: "tech", ToggleEntries: true, ToggleDigest: true,
			Feeds: []domain.SourceFeed{{ID: 1}},
		},
		digest: &domain.Digest{
			ID: 1, ProcessedFeedID: 1,
			Content:   "<h2>digest body</h2>",
			StartTime: created.Add(-24 * time.Hour),
			CreatedAt: created,
		},
		articles: []domain.Article{
			{ID: 1, SourceFeedID: 1, Title: "plain", Link: "http://ex.com/1", PublishedDate: published},
		},
	}
	srv := newTestServer(repo)
	defer srv.Close()

	_, body := get(t, srv.URL+"/feeds/tech")
	assert.Contains(t, body, "Digest for tech")
	assert.Contains(t, body, "/feeds/tech/digest/2025-05-02")
	assert.Less(t, strings.Index(body, "Digest for tech"), strings.Index(body, "plain"),
		"digest entry renders before articles")
}

func TestFeedAuthCode(t *testing.T) {
	repo := &repoStub{
		pf:       &domain.ProcessedFeed{ID: 1, Name: "tech", ToggleEntries: true},
		authCode: "secret",
	}
	srv := newTestServer(repo)
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/feeds/tech")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/feeds/tech?key=wrong")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/feeds/tech?key=secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDigestPage(t *testing.T) {
	created := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	repo := &repoStub{
		pf: &domain.ProcessedFeed{ID: 1, Name: "tech"},
		digest: &domain.Digest{
			ID: 1, ProcessedFeedID: 1,
			Content:   "<li>digest item</li>",
			StartTime: created.Add(-24 * time.Hour),
			CreatedAt: created,
		},
	}
	srv := newTestServer(repo)
	defer srv.Close()

	resp, body := get(t, srv.URL+"/feeds/tech/digest/2025-05-02")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<li>digest item</li>")
	assert.Contains(t, body, "Digest for tech")

	resp, _ = get(t, srv.URL+"/feeds/tech/digest/not-a-date")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/feeds/tech/digest/2025-05-03")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOPMLExport(t *testing.T) {
	repo := &repoStub{
		sources: []domain.SourceFeed{{ID: 1, URL: "http://src/rss", Title: "Src"}},
	}
	srv := newTestServer(repo)
	defer srv.Close()

	resp, body := get(t, srv.URL+"/opml")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/x-opml")
	assert.Contains(t, body, `xmlUrl="http://src/rss"`)
}
