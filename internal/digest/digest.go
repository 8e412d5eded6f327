// Package digest composes periodic roll-up documents over the articles a
// processed feed collected since its last digest.
package digest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
	"github.com/feedbrew/feedbrew/internal/core/llm"
	"github.com/feedbrew/feedbrew/internal/platform/observability"
)

// Digest cadence slack. The schedule may drift or skip a run, so the due
// threshold sits half a day short of the nominal period.
const (
	dailyDelta  = 12 * time.Hour
	weeklyDelta = 6*24*time.Hour + 12*time.Hour
	firstRunPad = 12 * time.Hour
)

// Repository is the storage surface digest composition needs.
type Repository interface {
	// ArticlesBySourceWindow returns articles of the given source feeds with
	// published_date in [start, end], ordered by source feed then newest first.
	ArticlesBySourceWindow(ctx context.Context, sourceFeedIDs []int64, start, end time.Time) ([]domain.Article, error)
	CreateDigest(ctx context.Context, d *domain.Digest) error
	SetLastDigest(ctx context.Context, processedFeedID int64, at time.Time) error
}

// Composer builds and persists digests.
type Composer struct {
	repo   Repository
	llm    llm.Client
	logger *zerolog.Logger
	now    func() time.Time
}

func NewComposer(repo Repository, client llm.Client, logger *zerolog.Logger) *Composer {
	return &Composer{
		repo:   repo,
		llm:    client,
		logger: logger,
		now:    time.Now,
	}
}

// delta returns the due threshold for a frequency.
func delta(freq domain.DigestFrequency) time.Duration {
	if freq == domain.DigestWeekly {
		return weeklyDelta
	}

	return dailyDelta
}

// Due reports whether the feed's next digest is due at the given instant.
func Due(pf *domain.ProcessedFeed, now time.Time) bool {
	if pf.LastDigest == nil {
		return true
	}

	return now.Sub(*pf.LastDigest) > delta(pf.DigestFrequency)
}

// Generate composes a digest for the feed if one is due, or unconditionally
// when force is set. It returns coreerrors.ErrNotFound-free nil when the feed
// is simply not due or has no new articles.
func (c *Composer) Generate(ctx context.Context, pf *domain.ProcessedFeed, force bool) error {
	now := c.now()

	if !force && !Due(pf, now) {
		c.logger.Debug().Str("feed", pf.Name).Msg("digest not due yet")
		return nil
	}

	start := startTime(pf, now)

	sourceIDs := make([]int64, 0, len(pf.Feeds))
	for _, sf := range pf.Feeds {
		sourceIDs = append(sourceIDs, sf.ID)
	}

	articles, err := c.repo.ArticlesBySourceWindow(ctx, sourceIDs, start, now)
	if err != nil {
		return fmt.Errorf("load digest window: %w", err)
	}

	if len(articles) == 0 {
		c.logger.Info().Str("feed", pf.Name).Msg("no new articles since last digest")
		return nil
	}

	content := Render(pf, pf.Feeds, articles)

	if pf.UseAIDigest {
		if aiSection := c.aiSection(ctx, pf, articles); aiSection != "" {
			content = "<h2>AI Digest</h2>" + aiSection + "</br>" + content
		}
	}

	d := &domain.Digest{
		ProcessedFeedID: pf.ID,
		Content:         content,
		StartTime:       start,
		CreatedAt:       now,
	}

	if err = c.repo.CreateDigest(ctx, d); err != nil {
		return fmt.Errorf("store digest: %w", err)
	}

	if err = c.repo.SetLastDigest(ctx, pf.ID, now); err != nil {
		return fmt.Errorf("advance last digest: %w", err)
	}

	pf.LastDigest = &now

	observability.DigestsCreatedTotal.Inc()
	c.logger.Info().Str("feed", pf.Name).Time("start", start).Msg("digest created")

	return nil
}

// startTime resolves the window start. A feed with no digest yet gets one
// nominal period plus pad of history so its first digest is not empty.
func startTime(pf *domain.ProcessedFeed, now time.Time) time.Time {
	if pf.LastDigest != nil {
		return *pf.LastDigest
	}

	return now.Add(-delta(pf.DigestFrequency) - firstRunPad)
}

// Render formats the digest body: per source feed a linked heading, then one
// list item per article with its summaries quoted beneath.
func Render(pf *domain.ProcessedFeed, sources []domain.SourceFeed, articles []domain.Article) string {
	bySource := make(map[int64]domain.SourceFeed, len(sources))
	for _, sf := range sources {
		bySource[sf.ID] = sf
	}

	// Group by source, newest first within each group.
	sorted := make([]domain.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SourceFeedID != sorted[j].SourceFeedID {
			return sorted[i].SourceFeedID < sorted[j].SourceFeedID
		}

		return sorted[i].PublishedDate.After(sorted[j].PublishedDate)
	})

	var (
		b         strings.Builder
		currentID int64 = -1
	)

	for _, a := range sorted {
		if a.SourceFeedID != currentID {
			if currentID != -1 {
				b.WriteString("</br>")
			}

			currentID = a.SourceFeedID
			sf := bySource[currentID]
			fmt.Fprintf(&b, "<h2><a href='%s'>%s</a></h2>", sf.URL, html.EscapeString(sf.Title))
		}

		fmt.Fprintf(&b, "<li><a href='%s'>%s</a></li>", a.Link, html.EscapeString(a.Title))

		if pf.IncludeOneLineSummary && a.SummaryOneLine != "" {
			fmt.Fprintf(&b, "<ul><blockquote>%s</blockquote></ul>", a.SummaryOneLine)
		}

		if pf.IncludeSummary && a.Summary != "" {
			fmt.Fprintf(&b, "<ul><blockquote>%s</blockquote></ul>", a.Summary)
		}

		if pf.IncludeContent && a.Content != "" {
			fmt.Fprintf(&b, "<ul><blockquote>%s</blockquote></ul>", a.Content)
		}

		b.WriteString("</br>")
	}

	return b.String()
}

// aiSection asks the model for a consolidated overview of the window. A
// disabled client or a failed call drops the section without failing the
// digest.
func (c *Composer) aiSection(ctx context.Context, pf *domain.ProcessedFeed, articles []domain.Article) string {
	var b strings.Builder

	for _, a := range articles {
		fmt.Fprintf(&b, "Title: %s\n", a.Title)

		if a.SummaryOneLine != "" {
			fmt.Fprintf(&b, "Summary: %s\n", a.SummaryOneLine)
		}

		b.WriteString("\n")
	}

	prompt := pf.AdditionalPromptForDigest
	if prompt == "" {
		prompt = llm.DefaultDigestPrompt(pf.SummaryLanguage)
	}

	out, err := c.llm.Summarize(ctx, llm.Request{
		Model:   pf.DigestModel,
		Mode:    llm.ModeHTML,
		Title:   pf.Name,
		Content: b.String(),
		Prompt:  prompt,
	})
	if err != nil {
		if !errors.Is(err, coreerrors.ErrClientDisabled) {
			c.logger.Warn().Err(err).Str("feed", pf.Name).Msg("ai digest section failed")
		}

		return ""
	}

	return out
}
