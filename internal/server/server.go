// Package server exposes the rendered feeds over HTTP along with health and
// metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
	"github.com/feedbrew/feedbrew/internal/opml"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Repository is the storage surface feed rendering needs.
type Repository interface {
	Ping(ctx context.Context) error
	GetProcessedFeedByName(ctx context.Context, name string) (*domain.ProcessedFeed, error)
	RecentArticles(ctx context.Context, sourceFeedIDs []int64, limit, offset int) ([]domain.Article, error)
	LatestDigest(ctx context.Context, processedFeedID int64) (*domain.Digest, error)
	DigestByDate(ctx context.Context, processedFeedID int64, day time.Time) (*domain.Digest, error)
	ListSourceFeeds(ctx context.Context) ([]domain.SourceFeed, error)
	AuthCode(ctx context.Context) (string, error)
	MaxArticlesPerFeed(ctx context.Context) (int, error)
}

// Server serves processed feeds as RSS plus operational endpoints.
type Server struct {
	repo   Repository
	port   int
	logger *zerolog.Logger
}

func New(repo Repository, port int, logger *zerolog.Logger) *Server {
	return &Server{repo: repo, port: port, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := s.repo.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "DB error: %v", err)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/feeds/{name}", s.handleFeed)
	r.Get("/feeds/{name}/digest/{date}", s.handleDigest)
	r.Get("/opml", s.handleOPMLExport)

	return r
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("HTTP server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// authorize checks the shared access code when one is configured.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	expected, err := s.repo.AuthCode(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load auth code")
		http.Error(w, "internal error", http.StatusInternalServerError)

		return false
	}

	if expected == "" {
		return true
	}

	if r.URL.Query().Get("key") != expected {
		http.NotFound(w, r)
		return false
	}

	return true
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	name := chi.URLParam(r, "name")

	pf, err := s.repo.GetProcessedFeedByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, coreerrors.ErrNotFound) {
			http.NotFound(w, r)
			return
		}

		s.logger.Error().Err(err).Str("feed", name).Msg("failed to load processed feed")
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	out, err := s.renderFeed(r.Context(), pf, r.URL.Query().Get("key"))
	if err != nil {
		s.logger.Error().Err(err).Str("feed", name).Msg("failed to render feed")
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")

	if _, err = w.Write([]byte(out)); err != nil {
		s.logger.Error().Err(err).Msg("failed to write feed response")
	}
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	name := chi.URLParam(r, "name")

	day, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	pf, err := s.repo.GetProcessedFeedByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, coreerrors.ErrNotFound) {
			http.NotFound(w, r)
			return
		}

		s.logger.Error().Err(err).Str("feed", name).Msg("failed to load processed feed")
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	d, err := s.repo.DigestByDate(r.Context(), pf.ID, day)
	if err != nil {
		if errors.Is(err, coreerrors.ErrNotFound) {
			http.NotFound(w, r)
			return
		}

		s.logger.Error().Err(err).Str("feed", name).Msg("failed to load digest")
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderDigestPage(w, pf.Name, d)
}

func (s *Server) handleOPMLExport(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	sources, err := s.repo.ListSourceFeeds(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list source feeds")
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	out, err := opml.Export(sources)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to export opml")
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/x-opml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="feeds.opml"`)

	if _, err = w.Write(out); err != nil {
		s.logger.Error().Err(err).Msg("failed to write opml response")
	}
}
