package db

import (
	"context"
	"fmt"
	"time"

	"github.com/feedbrew/feedbrew/internal/core/domain"
)

const articleColumns = `
    id, source_feed_id, title, link, published_date, content,
    summary, summary_one_line, summarized, custom_prompt, created_at`

func scanArticle(row interface{ Scan(...any) error }) (*domain.Article, error) {
	var a domain.Article

	err := row.Scan(
		&a.ID, &a.SourceFeedID, &a.Title, &a.Link, &a.PublishedDate, &a.Content,
		&a.Summary, &a.SummaryOneLine, &a.Summarized, &a.CustomPrompt, &a.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return &a, nil
}

// ArticleByLink returns the article stored for a canonical link within a
// source feed.
func (db *DB) ArticleByLink(ctx context.Context, link string, sourceFeedID int64) (*domain.Article, error) {
	row := db.Pool.QueryRow(ctx, `
SELECT`+articleColumns+`
FROM articles
WHERE link = $1 AND source_feed_id = $2
`, link, sourceFeedID)

	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("article by link: %w", err)
	}

	return a, nil
}

// CreateArticle inserts a new article. Duplicate (link, source feed) pairs
// map to coreerrors.ErrAlreadyExists.
func (db *DB) CreateArticle(ctx context.Context, a *domain.Article) error {
	err := db.Pool.QueryRow(ctx, `
INSERT INTO articles (source_feed_id, title, link, published_date, content,
                      summary, summary_one_line, summarized, custom_prompt)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at
`,
		a.SourceFeedID, SanitizeUTF8(a.Title), a.Link, a.PublishedDate, SanitizeUTF8(a.Content),
		SanitizeUTF8(a.Summary), SanitizeUTF8(a.SummaryOneLine), a.Summarized, a.CustomPrompt,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create article: %w", mapError(err))
	}

	return nil
}

// UpdateArticle rewrites the mutable fields of a stored article.
func (db *DB) UpdateArticle(ctx context.Context, a *domain.Article) error {
	_, err := db.Pool.Exec(ctx, `
UPDATE articles
SET title = $2, content = $3, summary = $4, summary_one_line = $5,
    summarized = $6, custom_prompt = $7
WHERE id = $1
`,
		a.ID, SanitizeUTF8(a.Title), SanitizeUTF8(a.Content), SanitizeUTF8(a.Summary),
		SanitizeUTF8(a.SummaryOneLine), a.Summarized, a.CustomPrompt,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}

	return nil
}

// ArticlesBySourceWindow returns articles of the given source feeds published
// within [start, end], grouped by source feed with newest first inside each
// group. Digest composition depends on this ordering.
func (db *DB) ArticlesBySourceWindow(ctx context.Context, sourceFeedIDs []int64, start, end time.Time) ([]domain.Article, error) {
	if len(sourceFeedIDs) == 0 {
		return nil, nil
	}

	rows, err := db.Pool.Query(ctx, `
SELECT`+articleColumns+`
FROM articles
WHERE source_feed_id = ANY($1) AND published_date >= $2 AND published_date <= $3
ORDER BY source_feed_id, published_date DESC
`, sourceFeedIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("articles by window: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

// RecentArticles pages through articles of the given source feeds, newest
// first, for feed rendering.
func (db *DB) RecentArticles(ctx context.Context, sourceFeedIDs []int64, limit, offset int) ([]domain.Article, error) {
	if len(sourceFeedIDs) == 0 {
		return nil, nil
	}

	rows, err := db.Pool.Query(ctx, `
SELECT`+articleColumns+`
FROM articles
WHERE source_feed_id = ANY($1)
ORDER BY published_date DESC
LIMIT $2 OFFSET $3
`, sourceFeedIDs, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("recent articles: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

func collectArticles(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]domain.Article, error) {
	var articles []domain.Article

	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}

		articles = append(articles, *a)
	}

	return articles, rows.Err()
}

// PruneOldArticles deletes, per source feed, the oldest articles beyond the
// feed's retention cap. It returns the number of deleted rows.
func (db *DB) PruneOldArticles(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
DELETE FROM articles
WHERE id IN (
    SELECT a.id
    FROM (
        SELECT id,
               ROW_NUMBER() OVER (
                   PARTITION BY source_feed_id
                   ORDER BY published_date DESC, id DESC
               ) AS rank,
               source_feed_id
        FROM articles
    ) a
    JOIN source_feeds sf ON sf.id = a.source_feed_id
    WHERE a.rank > sf.max_articles_to_keep
)
`)
	if err != nil {
		return 0, fmt.Errorf("prune old articles: %w", err)
	}

	return tag.RowsAffected(), nil
}
