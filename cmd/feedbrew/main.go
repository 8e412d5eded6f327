package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedbrew/feedbrew/internal/app"
	"github.com/feedbrew/feedbrew/internal/platform/config"
	db "github.com/feedbrew/feedbrew/internal/storage"
)

func main() {
	mode := flag.String("mode", "", "Service mode (serve, update, digest, prune, import, all)")
	feedID := flag.Int64("feed", 0, "Restrict update or digest to one processed feed id")
	force := flag.Bool("force", false, "Generate digests even when not yet due (for digest mode)")
	opmlPath := flag.String("opml", "", "Path to an OPML file (for import mode)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := db.DefaultPoolOptions()
	poolOpts.MaxConns = cfg.DBMaxConns
	poolOpts.MinConns = cfg.DBMinConns

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	if err := runMode(ctx, application, *mode, *feedID, *force, *opmlPath); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string, feedID int64, force bool, opmlPath string) error {
	switch mode {
	case "serve":
		return application.RunServe(ctx)
	case "update":
		return application.RunUpdate(ctx, feedID)
	case "digest":
		return application.RunDigest(ctx, feedID, force)
	case "prune":
		return application.RunPrune(ctx)
	case "import":
		if opmlPath == "" {
			return errors.New("import mode requires -opml")
		}

		return application.RunImport(ctx, opmlPath)
	case "all":
		return application.RunAll(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[serve|update|digest|prune|import|all]", os.Args[0])

		return nil
	}
}
