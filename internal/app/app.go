// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Serve mode: HTTP server for rendered feeds, health and metrics
//   - Update mode: Fetch source feeds and ingest new articles
//   - Digest mode: Compose due digests
//   - Prune mode: Enforce per-source article retention
//   - Import mode: Load source feeds from an OPML file
//   - All mode: Cron-scheduled update and digest runs plus the HTTP server
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	"github.com/feedbrew/feedbrew/internal/core/llm"
	"github.com/feedbrew/feedbrew/internal/digest"
	"github.com/feedbrew/feedbrew/internal/fetch"
	"github.com/feedbrew/feedbrew/internal/ingest"
	"github.com/feedbrew/feedbrew/internal/opml"
	"github.com/feedbrew/feedbrew/internal/platform/config"
	"github.com/feedbrew/feedbrew/internal/platform/observability"
	"github.com/feedbrew/feedbrew/internal/platform/worker"
	"github.com/feedbrew/feedbrew/internal/server"
	db "github.com/feedbrew/feedbrew/internal/storage"
)

// Advisory lock ids serializing scheduled runs across instances.
const (
	updateLockID = int64(52801)
	digestLockID = int64(52802)
)

// taskTimeout bounds one scheduled run so a hung fetch or model call cannot
// hold the advisory lock past the next tick indefinitely.
const taskTimeout = 30 * time.Minute

const logFieldCorrelationID = "correlation_id"

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger

	coordinator *fetch.Coordinator
	ingestor    *ingest.Ingestor
	composer    *digest.Composer
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	client := llm.NewOpenAI(llm.Settings{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		DefaultModel: cfg.DefaultModel,
		Enabled:      cfg.AIEnabled,
	}, float64(cfg.RateLimitRPS), logger)

	fetcher := fetch.NewFetcher(cfg.FetchTimeout, logger)
	coordinator := fetch.NewCoordinator(fetcher, database, cfg.FetchConcurrency, logger)
	ingestor := ingest.New(database, client, fetch.NewExtractor(logger), logger)
	composer := digest.NewComposer(database, client, logger)

	return &App{
		cfg:         cfg,
		database:    database,
		logger:      logger,
		coordinator: coordinator,
		ingestor:    ingestor,
		composer:    composer,
	}
}

// RunServe runs the HTTP server until the context is cancelled.
func (a *App) RunServe(ctx context.Context) error {
	srv := server.New(a.database, a.cfg.HTTPPort, a.logger)
	return srv.Start(ctx)
}

// RunUpdate fetches and ingests all processed feeds once, then prunes old
// articles. A non-zero feedID restricts the run to one processed feed.
func (a *App) RunUpdate(ctx context.Context, feedID int64) error {
	start := time.Now()
	defer func() {
		observability.UpdateRunDuration.Observe(time.Since(start).Seconds())
	}()

	correlationID := uuid.New().String()
	logger := a.logger.With().Str(logFieldCorrelationID, correlationID).Logger()

	if feedID != 0 {
		pf, err := a.database.GetProcessedFeedByID(ctx, feedID)
		if err != nil {
			return fmt.Errorf("load processed feed %d: %w", feedID, err)
		}

		a.updateFeed(ctx, &logger, pf)

		return nil
	}

	feeds, err := a.database.ListProcessedFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list processed feeds: %w", err)
	}

	for _, pf := range feeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		a.updateFeed(ctx, &logger, pf)
	}

	pruned, err := a.database.PruneOldArticles(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to prune old articles")
	} else if pruned > 0 {
		observability.ArticlesPrunedTotal.Add(float64(pruned))
		logger.Info().Int64("pruned", pruned).Msg("old articles pruned")
	}

	return nil
}

func (a *App) updateFeed(ctx context.Context, logger *zerolog.Logger, pf *domain.ProcessedFeed) {
	logger.Info().Str("feed", pf.Name).Msg("processing feed")

	batch := a.coordinator.FetchAll(ctx, pf)

	if batch.NewLastModified != nil {
		if err := a.database.SetLastModified(ctx, pf.ID, batch.NewLastModified); err != nil {
			logger.Error().Err(err).Str("feed", pf.Name).Msg("failed to store fetch watermark")
		} else {
			pf.LastModified = batch.NewLastModified
		}
	}

	stats := a.ingestor.ProcessEntries(ctx, pf, batch.Entries)

	logger.Info().
		Str("feed", pf.Name).
		Int("created", stats.Created).
		Int("duplicates", stats.Duplicates).
		Int("filtered", stats.Filtered).
		Int("summarized", stats.Summarized).
		Msg("feed processed")
}

// RunDigest composes digests for all digest-enabled processed feeds, or for
// one feed when feedID is non-zero. force skips the due check.
func (a *App) RunDigest(ctx context.Context, feedID int64, force bool) error {
	correlationID := uuid.New().String()
	logger := a.logger.With().Str(logFieldCorrelationID, correlationID).Logger()

	if feedID != 0 {
		pf, err := a.database.GetProcessedFeedByID(ctx, feedID)
		if err != nil {
			return fmt.Errorf("load processed feed %d: %w", feedID, err)
		}

		return a.composer.Generate(ctx, pf, force)
	}

	feeds, err := a.database.ListProcessedFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list processed feeds: %w", err)
	}

	for _, pf := range feeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !pf.ToggleDigest {
			continue
		}

		if err := a.composer.Generate(ctx, pf, force); err != nil {
			logger.Error().Err(err).Str("feed", pf.Name).Msg("failed to generate digest")
		}
	}

	return nil
}

// RunPrune enforces the per-source retention caps once.
func (a *App) RunPrune(ctx context.Context) error {
	pruned, err := a.database.PruneOldArticles(ctx)
	if err != nil {
		return fmt.Errorf("prune old articles: %w", err)
	}

	observability.ArticlesPrunedTotal.Add(float64(pruned))
	a.logger.Info().Int64("pruned", pruned).Msg("old articles pruned")

	return nil
}

// RunImport loads source feeds and tags from an OPML file.
func (a *App) RunImport(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open opml file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	result, err := opml.Import(ctx, a.database, f)
	if err != nil {
		return fmt.Errorf("import opml: %w", err)
	}

	a.logger.Info().
		Int("feeds", result.FeedsSeen).
		Int("tags_attached", result.TagsAttached).
		Msg("opml import finished")

	return nil
}

// RunAll schedules update and digest runs on their cron expressions and
// serves HTTP until the context is cancelled.
func (a *App) RunAll(ctx context.Context) error {
	scheduler := cron.New()

	if _, err := scheduler.AddFunc(a.cfg.UpdateCron, func() {
		a.runWithLock(ctx, updateLockID, "update", func(ctx context.Context) error {
			return a.RunUpdate(ctx, 0)
		})
	}); err != nil {
		return fmt.Errorf("schedule update cron %q: %w", a.cfg.UpdateCron, err)
	}

	if _, err := scheduler.AddFunc(a.cfg.DigestCron, func() {
		a.runWithLock(ctx, digestLockID, "digest", func(ctx context.Context) error {
			return a.RunDigest(ctx, 0, false)
		})
	}); err != nil {
		return fmt.Errorf("schedule digest cron %q: %w", a.cfg.DigestCron, err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	a.logger.Info().
		Str("update_cron", a.cfg.UpdateCron).
		Str("digest_cron", a.cfg.DigestCron).
		Msg("scheduler started")

	return a.RunServe(ctx)
}

// runWithLock runs fn under a Postgres advisory lock so overlapping schedules
// and multiple instances never run the same task concurrently.
func (a *App) runWithLock(ctx context.Context, lockID int64, task string, fn func(ctx context.Context) error) {
	logger := a.logger.With().Str("task", task).Logger()

	acquired, err := a.database.TryAcquireAdvisoryLock(ctx, lockID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to acquire lock")
		return
	}

	if !acquired {
		logger.Info().Msg("did not acquire lock, another instance is probably running, skipping")
		return
	}

	defer func() {
		if err := a.database.ReleaseAdvisoryLock(ctx, lockID); err != nil {
			logger.Warn().Err(err).Msg("failed to release advisory lock")
		}
	}()

	if err := worker.RunWithTimeout(ctx, taskTimeout, fn); err != nil {
		logger.Error().Err(err).Msg("scheduled task failed")
	}
}
