package db

import (
	"context"
	"fmt"
	"time"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	"github.com/feedbrew/feedbrew/internal/core/filter"
)

// CreateSourceFeed inserts a source feed, updating the title on URL conflict
// so repeated imports stay idempotent. An empty title falls back to the URL.
func (db *DB) CreateSourceFeed(ctx context.Context, sf *domain.SourceFeed) error {
	title := sf.Title
	if title == "" {
		title = sf.URL
	}

	maxKeep := sf.MaxArticlesToKeep
	if maxKeep <= 0 {
		maxKeep = domain.DefaultMaxArticlesToKeep
	}

	err := db.Pool.QueryRow(ctx, `
INSERT INTO source_feeds (url, title, max_articles_to_keep)
VALUES ($1, $2, $3)
ON CONFLICT (url) DO UPDATE SET title = EXCLUDED.title
RETURNING id
`, sf.URL, SanitizeUTF8(title), maxKeep).Scan(&sf.ID)
	if err != nil {
		return fmt.Errorf("create source feed: %w", mapError(err))
	}

	sf.Title = title
	sf.MaxArticlesToKeep = maxKeep

	return nil
}

// ListSourceFeeds returns all source feeds ordered by id.
func (db *DB) ListSourceFeeds(ctx context.Context) ([]domain.SourceFeed, error) {
	rows, err := db.Pool.Query(ctx, `
SELECT id, url, title, max_articles_to_keep, valid
FROM source_feeds
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list source feeds: %w", err)
	}
	defer rows.Close()

	var feeds []domain.SourceFeed

	for rows.Next() {
		var sf domain.SourceFeed
		if err := rows.Scan(&sf.ID, &sf.URL, &sf.Title, &sf.MaxArticlesToKeep, &sf.Valid); err != nil {
			return nil, fmt.Errorf("scan source feed: %w", err)
		}

		feeds = append(feeds, sf)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachSourceFeedTags(ctx, feeds); err != nil {
		return nil, err
	}

	return feeds, nil
}

func (db *DB) attachSourceFeedTags(ctx context.Context, feeds []domain.SourceFeed) error {
	if len(feeds) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.SourceFeed, len(feeds))
	for i := range feeds {
		byID[feeds[i].ID] = &feeds[i]
	}

	rows, err := db.Pool.Query(ctx, `
SELECT sft.source_feed_id, t.id, t.name
FROM source_feed_tags sft
JOIN tags t ON t.id = sft.tag_id
ORDER BY sft.source_feed_id, t.name
`)
	if err != nil {
		return fmt.Errorf("list source feed tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			feedID int64
			tag    domain.Tag
		)

		if err := rows.Scan(&feedID, &tag.ID, &tag.Name); err != nil {
			return fmt.Errorf("scan source feed tag: %w", err)
		}

		if sf, ok := byID[feedID]; ok {
			sf.Tags = append(sf.Tags, tag)
		}
	}

	return rows.Err()
}

// SetSourceFeedValidity flips the health flag updated after each fetch.
func (db *DB) SetSourceFeedValidity(ctx context.Context, feedID int64, valid bool) error {
	_, err := db.Pool.Exec(ctx, `UPDATE source_feeds SET valid = $2 WHERE id = $1`, feedID, valid)
	if err != nil {
		return fmt.Errorf("set source feed validity: %w", err)
	}

	return nil
}

// EnsureTag returns the id of the named tag, creating it if needed.
func (db *DB) EnsureTag(ctx context.Context, name string) (int64, error) {
	var id int64

	err := db.Pool.QueryRow(ctx, `
INSERT INTO tags (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id
`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure tag: %w", err)
	}

	return id, nil
}

// TagSourceFeed attaches a tag to a source feed.
func (db *DB) TagSourceFeed(ctx context.Context, feedID, tagID int64) error {
	_, err := db.Pool.Exec(ctx, `
INSERT INTO source_feed_tags (source_feed_id, tag_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, feedID, tagID)
	if err != nil {
		return fmt.Errorf("tag source feed: %w", err)
	}

	return nil
}

// CreateProcessedFeed inserts a processed feed with its settings.
func (db *DB) CreateProcessedFeed(ctx context.Context, pf *domain.ProcessedFeed) error {
	err := db.Pool.QueryRow(ctx, `
INSERT INTO processed_feeds (
    name, articles_to_summarize_per_interval, summary_language, model,
    additional_prompt, case_sensitive, translate_title,
    feed_group_relational_operator, summary_group_relational_operator,
    toggle_entries, toggle_digest, digest_frequency, digest_model,
    use_ai_digest, additional_prompt_for_digest,
    include_one_line_summary, include_summary, include_content, send_full_article
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
RETURNING id
`,
		pf.Name, pf.ArticlesToSummarizePerInterval, pf.SummaryLanguage, pf.Model,
		pf.AdditionalPrompt, pf.CaseSensitive, pf.TranslateTitle,
		string(pf.FeedGroupRelationalOperator), string(pf.SummaryGroupRelationalOperator),
		pf.ToggleEntries, pf.ToggleDigest, string(pf.DigestFrequency), pf.DigestModel,
		pf.UseAIDigest, pf.AdditionalPromptForDigest,
		pf.IncludeOneLineSummary, pf.IncludeSummary, pf.IncludeContent, pf.SendFullArticle,
	).Scan(&pf.ID)
	if err != nil {
		return fmt.Errorf("create processed feed: %w", mapError(err))
	}

	return nil
}

const processedFeedColumns = `
    id, name, articles_to_summarize_per_interval, summary_language, model,
    additional_prompt, case_sensitive, translate_title,
    feed_group_relational_operator, summary_group_relational_operator,
    toggle_entries, toggle_digest, digest_frequency, digest_model,
    use_ai_digest, additional_prompt_for_digest,
    include_one_line_summary, include_summary, include_content, send_full_article,
    last_modified, last_digest`

func (db *DB) scanProcessedFeed(row interface{ Scan(...any) error }) (*domain.ProcessedFeed, error) {
	var (
		pf                domain.ProcessedFeed
		feedOp, summaryOp string
		frequency         string
		lastMod, lastDig  *time.Time
	)

	err := row.Scan(
		&pf.ID, &pf.Name, &pf.ArticlesToSummarizePerInterval, &pf.SummaryLanguage, &pf.Model,
		&pf.AdditionalPrompt, &pf.CaseSensitive, &pf.TranslateTitle,
		&feedOp, &summaryOp,
		&pf.ToggleEntries, &pf.ToggleDigest, &frequency, &pf.DigestModel,
		&pf.UseAIDigest, &pf.AdditionalPromptForDigest,
		&pf.IncludeOneLineSummary, &pf.IncludeSummary, &pf.IncludeContent, &pf.SendFullArticle,
		&lastMod, &lastDig,
	)
	if err != nil {
		return nil, mapError(err)
	}

	pf.FeedGroupRelationalOperator = domain.Operator(feedOp)
	pf.SummaryGroupRelationalOperator = domain.Operator(summaryOp)
	pf.DigestFrequency = domain.DigestFrequency(frequency)
	pf.LastModified = lastMod
	pf.LastDigest = lastDig

	return &pf, nil
}

// GetProcessedFeedByID loads a processed feed with its resolved source feeds
// and filter groups.
func (db *DB) GetProcessedFeedByID(ctx context.Context, id int64) (*domain.ProcessedFeed, error) {
	row := db.Pool.QueryRow(ctx, `SELECT`+processedFeedColumns+` FROM processed_feeds WHERE id = $1`, id)
	return db.loadProcessedFeed(ctx, row)
}

// GetProcessedFeedByName loads a processed feed by its unique name.
func (db *DB) GetProcessedFeedByName(ctx context.Context, name string) (*domain.ProcessedFeed, error) {
	row := db.Pool.QueryRow(ctx, `SELECT`+processedFeedColumns+` FROM processed_feeds WHERE name = $1`, name)
	return db.loadProcessedFeed(ctx, row)
}

func (db *DB) loadProcessedFeed(ctx context.Context, row interface{ Scan(...any) error }) (*domain.ProcessedFeed, error) {
	pf, err := db.scanProcessedFeed(row)
	if err != nil {
		return nil, fmt.Errorf("load processed feed: %w", err)
	}

	if err = db.attachMembership(ctx, pf); err != nil {
		return nil, err
	}

	if err = db.attachFilterGroups(ctx, pf); err != nil {
		return nil, err
	}

	return pf, nil
}

// ListProcessedFeeds loads all processed feeds with memberships and filters.
func (db *DB) ListProcessedFeeds(ctx context.Context) ([]*domain.ProcessedFeed, error) {
	rows, err := db.Pool.Query(ctx, `SELECT`+processedFeedColumns+` FROM processed_feeds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list processed feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*domain.ProcessedFeed

	for rows.Next() {
		pf, err := db.scanProcessedFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processed feed: %w", err)
		}

		feeds = append(feeds, pf)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	for _, pf := range feeds {
		if err = db.attachMembership(ctx, pf); err != nil {
			return nil, err
		}

		if err = db.attachFilterGroups(ctx, pf); err != nil {
			return nil, err
		}
	}

	return feeds, nil
}

// attachMembership resolves the union of directly attached source feeds and
// those carried in via tags, deduplicated.
func (db *DB) attachMembership(ctx context.Context, pf *domain.ProcessedFeed) error {
	rows, err := db.Pool.Query(ctx, `
SELECT DISTINCT sf.id, sf.url, sf.title, sf.max_articles_to_keep, sf.valid
FROM source_feeds sf
WHERE sf.id IN (
        SELECT source_feed_id FROM processed_feed_feeds WHERE processed_feed_id = $1
    )
   OR sf.id IN (
        SELECT sft.source_feed_id
        FROM source_feed_tags sft
        JOIN processed_feed_tags pft ON pft.tag_id = sft.tag_id
        WHERE pft.processed_feed_id = $1
    )
ORDER BY sf.id
`, pf.ID)
	if err != nil {
		return fmt.Errorf("resolve membership: %w", err)
	}
	defer rows.Close()

	pf.Feeds = pf.Feeds[:0]

	for rows.Next() {
		var sf domain.SourceFeed
		if err := rows.Scan(&sf.ID, &sf.URL, &sf.Title, &sf.MaxArticlesToKeep, &sf.Valid); err != nil {
			return fmt.Errorf("scan member feed: %w", err)
		}

		pf.Feeds = append(pf.Feeds, sf)
	}

	if err = rows.Err(); err != nil {
		return err
	}

	tagRows, err := db.Pool.Query(ctx, `
SELECT tag_id FROM processed_feed_tags WHERE processed_feed_id = $1 ORDER BY tag_id
`, pf.ID)
	if err != nil {
		return fmt.Errorf("load membership tags: %w", err)
	}
	defer tagRows.Close()

	pf.TagIDs = pf.TagIDs[:0]

	for tagRows.Next() {
		var id int64
		if err := tagRows.Scan(&id); err != nil {
			return fmt.Errorf("scan membership tag: %w", err)
		}

		pf.TagIDs = append(pf.TagIDs, id)
	}

	return tagRows.Err()
}

func (db *DB) attachFilterGroups(ctx context.Context, pf *domain.ProcessedFeed) error {
	rows, err := db.Pool.Query(ctx, `
SELECT g.id, g.usage, g.relational_operator, f.id, f.field, f.match_type, f.value
FROM filter_groups g
LEFT JOIN filters f ON f.group_id = g.id
WHERE g.processed_feed_id = $1
ORDER BY g.id, f.id
`, pf.ID)
	if err != nil {
		return fmt.Errorf("load filter groups: %w", err)
	}
	defer rows.Close()

	pf.FilterGroups = pf.FilterGroups[:0]

	byID := make(map[int64]int)

	for rows.Next() {
		var (
			groupID          int64
			usage, op        string
			filterID         *int64
			field, matchType *string
			value            *string
		)

		if err := rows.Scan(&groupID, &usage, &op, &filterID, &field, &matchType, &value); err != nil {
			return fmt.Errorf("scan filter group: %w", err)
		}

		idx, ok := byID[groupID]
		if !ok {
			pf.FilterGroups = append(pf.FilterGroups, domain.FilterGroup{
				ID:                 groupID,
				ProcessedFeedID:    pf.ID,
				Usage:              domain.FilterUsage(usage),
				RelationalOperator: domain.Operator(op),
			})
			idx = len(pf.FilterGroups) - 1
			byID[groupID] = idx
		}

		if filterID != nil {
			pf.FilterGroups[idx].Filters = append(pf.FilterGroups[idx].Filters, domain.Filter{
				ID:        *filterID,
				GroupID:   groupID,
				Field:     domain.MatchField(*field),
				MatchType: domain.MatchType(*matchType),
				Value:     *value,
			})
		}
	}

	return rows.Err()
}

// CreateFilterGroup inserts a group and its filters. Rules are validated
// before the insert so evaluation never sees an ill-formed filter.
func (db *DB) CreateFilterGroup(ctx context.Context, g *domain.FilterGroup) error {
	for _, f := range g.Filters {
		if err := filter.Validate(f); err != nil {
			return err
		}
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
INSERT INTO filter_groups (processed_feed_id, usage, relational_operator)
VALUES ($1, $2, $3)
RETURNING id
`, g.ProcessedFeedID, string(g.Usage), string(g.RelationalOperator)).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("create filter group: %w", err)
	}

	for i := range g.Filters {
		f := &g.Filters[i]
		f.GroupID = g.ID

		err = tx.QueryRow(ctx, `
INSERT INTO filters (group_id, field, match_type, value)
VALUES ($1, $2, $3, $4)
RETURNING id
`, f.GroupID, string(f.Field), string(f.MatchType), f.Value).Scan(&f.ID)
		if err != nil {
			return fmt.Errorf("create filter: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SetLastModified stores the fetch watermark of a processed feed.
func (db *DB) SetLastModified(ctx context.Context, processedFeedID int64, at *time.Time) error {
	_, err := db.Pool.Exec(ctx, `UPDATE processed_feeds SET last_modified = $2 WHERE id = $1`,
		processedFeedID, toTimestamptzPtr(at))
	if err != nil {
		return fmt.Errorf("set last modified: %w", err)
	}

	return nil
}

// SetLastDigest advances the digest watermark of a processed feed.
func (db *DB) SetLastDigest(ctx context.Context, processedFeedID int64, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `UPDATE processed_feeds SET last_digest = $2 WHERE id = $1`,
		processedFeedID, at)
	if err != nil {
		return fmt.Errorf("set last digest: %w", err)
	}

	return nil
}

// ReplaceMembership rewrites the feed and tag join rows of a processed feed
// and, when the membership actually changed, clears both watermarks so the
// next cycle re-scans from scratch.
func (db *DB) ReplaceMembership(ctx context.Context, pf *domain.ProcessedFeed, feedIDs, tagIDs []int64, clearWatermarks bool) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `DELETE FROM processed_feed_feeds WHERE processed_feed_id = $1`, pf.ID); err != nil {
		return fmt.Errorf("clear feed membership: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM processed_feed_tags WHERE processed_feed_id = $1`, pf.ID); err != nil {
		return fmt.Errorf("clear tag membership: %w", err)
	}

	for _, id := range feedIDs {
		if _, err = tx.Exec(ctx, `
INSERT INTO processed_feed_feeds (processed_feed_id, source_feed_id) VALUES ($1, $2)
`, pf.ID, id); err != nil {
			return fmt.Errorf("add feed membership: %w", err)
		}
	}

	for _, id := range tagIDs {
		if _, err = tx.Exec(ctx, `
INSERT INTO processed_feed_tags (processed_feed_id, tag_id) VALUES ($1, $2)
`, pf.ID, id); err != nil {
			return fmt.Errorf("add tag membership: %w", err)
		}
	}

	if clearWatermarks {
		if _, err = tx.Exec(ctx, `
UPDATE processed_feeds SET last_modified = NULL, last_digest = NULL WHERE id = $1
`, pf.ID); err != nil {
			return fmt.Errorf("clear watermarks: %w", err)
		}
	}

	return tx.Commit(ctx)
}
