package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
	"github.com/feedbrew/feedbrew/internal/core/filter"
	"github.com/feedbrew/feedbrew/internal/core/links"
	"github.com/feedbrew/feedbrew/internal/core/llm"
	"github.com/feedbrew/feedbrew/internal/fetch"
	"github.com/feedbrew/feedbrew/internal/platform/observability"
	"github.com/feedbrew/feedbrew/internal/platform/worker"
)

// Repository is the storage surface ingestion needs.
type Repository interface {
	// ArticleByLink returns the article stored for a canonical link within a
	// source feed, or coreerrors.ErrNotFound.
	ArticleByLink(ctx context.Context, link string, sourceFeedID int64) (*domain.Article, error)
	CreateArticle(ctx context.Context, article *domain.Article) error
	UpdateArticle(ctx context.Context, article *domain.Article) error
}

// ContentExtractor pulls readable full-page content for a link.
type ContentExtractor interface {
	FullContent(ctx context.Context, link string) (string, error)
}

// Stats summarizes one ingestion run over a batch of fetched entries.
type Stats struct {
	Created    int
	Duplicates int
	Filtered   int
	Summarized int
}

// Ingestor turns fetched entries into stored articles, applying feed filters,
// link-based dedup and the per-interval summarization quota.
type Ingestor struct {
	repo      Repository
	llm       llm.Client
	extractor ContentExtractor
	logger    *zerolog.Logger
	now       func() time.Time
}

func New(repo Repository, client llm.Client, extractor ContentExtractor, logger *zerolog.Logger) *Ingestor {
	return &Ingestor{
		repo:      repo,
		llm:       client,
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessEntries processes a fetched batch in order. A failing entry is
// logged and skipped; it never aborts the batch.
func (in *Ingestor) ProcessEntries(ctx context.Context, pf *domain.ProcessedFeed, entries []fetch.Entry) Stats {
	var stats Stats

	quota := 0

	for _, entry := range entries {
		if err := in.processEntry(ctx, pf, entry, &quota, &stats); err != nil {
			in.logger.Error().Err(err).
				Str("feed", pf.Name).
				Str("link", entry.RawLink()).
				Msg("failed to process entry")
		}
	}

	return stats
}

func (in *Ingestor) processEntry(ctx context.Context, pf *domain.ProcessedFeed, entry fetch.Entry, quota *int, stats *Stats) (err error) {
	defer worker.RecoverPanic(in.logger, "process entry")

	if !filter.Passes(entry, pf, domain.UsageFeedFilter) {
		stats.Filtered++
		return nil
	}

	link := links.Canonicalize(entry.RawLink())

	_, err = in.repo.ArticleByLink(ctx, link, entry.Source.ID)
	if err == nil {
		stats.Duplicates++
		in.logger.Debug().Str("link", link).Msg("article already stored")

		return nil
	}

	if !errors.Is(err, coreerrors.ErrNotFound) {
		return fmt.Errorf("lookup article: %w", err)
	}

	article := in.buildArticle(ctx, pf, entry, link)

	if err = in.repo.CreateArticle(ctx, article); err != nil {
		if errors.Is(err, coreerrors.ErrAlreadyExists) {
			stats.Duplicates++
			return nil
		}

		return fmt.Errorf("create article: %w", err)
	}

	stats.Created++
	observability.ArticlesCreatedTotal.Inc()

	dirty := false

	if pf.TranslateTitle {
		dirty = in.translateTitle(ctx, pf, article) || dirty
	}

	if *quota < pf.ArticlesToSummarizePerInterval && filter.Passes(entry, pf, domain.UsageSummaryFilter) {
		spent := in.summarize(ctx, pf, article)
		if spent {
			*quota++
			stats.Summarized++
			dirty = true
		}
	}

	if dirty {
		if err = in.repo.UpdateArticle(ctx, article); err != nil {
			return fmt.Errorf("update article: %w", err)
		}
	}

	return nil
}

func (in *Ingestor) buildArticle(ctx context.Context, pf *domain.ProcessedFeed, entry fetch.Entry, link string) *domain.Article {
	published, ok := entry.PublishedAt()
	if !ok {
		published = in.now()
	}

	content := entry.RawContent()

	if pf.SendFullArticle && in.extractor != nil {
		full, err := in.extractor.FullContent(ctx, link)
		if err != nil {
			in.logger.Warn().Err(err).Str("link", link).Msg("full content extraction failed, keeping feed content")
		} else {
			content = full
		}
	}

	return &domain.Article{
		SourceFeedID:  entry.Source.ID,
		Title:         domain.GeneratedTitle(entry),
		Link:          link,
		PublishedDate: published,
		Content:       content,
	}
}

// summarize runs the configured summarization against the article and stores
// the result on it. It reports whether a quota slot was spent, which happens
// only when the model actually produced output.
func (in *Ingestor) summarize(ctx context.Context, pf *domain.ProcessedFeed, article *domain.Article) bool {
	req := llm.Request{
		Model:   pf.Model,
		Mode:    llm.ModeJSON,
		Title:   article.Title,
		Content: article.Content,
		Prompt:  llm.DefaultSummaryPrompt(pf.SummaryLanguage),
	}
	if pf.AdditionalPrompt != "" {
		req.Mode = llm.ModeHTML
		req.Prompt = pf.AdditionalPrompt
	}

	out, err := in.llm.Summarize(ctx, req)
	if err != nil {
		if errors.Is(err, coreerrors.ErrClientDisabled) {
			in.logger.Debug().Str("title", article.Title).Msg("summarization disabled, skipping")
			return false
		}

		observability.SummariesTotal.WithLabelValues(observability.OutcomeFailed).Inc()
		in.logger.Error().Err(err).Str("title", article.Title).Msg("summarization failed")

		return false
	}

	if req.Mode == llm.ModeJSON {
		parsed, perr := llm.ParseSummary(out)
		if perr != nil {
			// Unparseable output is still kept, rendered as-is later.
			article.Summary = out
			article.CustomPrompt = true
		} else {
			article.Summary = parsed.Long
			article.SummaryOneLine = parsed.OneLine
			article.CustomPrompt = false
		}
	} else {
		article.Summary = out
		article.CustomPrompt = true
	}

	article.Summarized = true

	observability.SummariesTotal.WithLabelValues(observability.OutcomeOK).Inc()
	in.logger.Info().Str("title", article.Title).Msg("summary generated")

	return true
}

// translateTitle rewrites the article title into the feed's summary language.
// Failures keep the original title.
func (in *Ingestor) translateTitle(ctx context.Context, pf *domain.ProcessedFeed, article *domain.Article) bool {
	out, err := in.llm.Summarize(ctx, llm.Request{
		Model:  pf.Model,
		Mode:   llm.ModeTranslate,
		Title:  article.Title,
		Prompt: llm.TranslateTitlePrompt(pf.SummaryLanguage),
	})
	if err != nil {
		if !errors.Is(err, coreerrors.ErrClientDisabled) {
			in.logger.Warn().Err(err).Str("title", article.Title).Msg("title translation failed")
		}

		return false
	}

	if out == "" || out == article.Title {
		return false
	}

	article.Title = out

	return true
}
