// Package observability exposes Prometheus metrics for the pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFetchesTotal counts source feed fetch attempts by outcome.
	SourceFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbrew_source_fetches_total",
		Help: "Source feed fetch attempts by outcome (updated, not_modified, failed).",
	}, []string{"outcome"})

	// ArticlesCreatedTotal counts new articles persisted by ingestion.
	ArticlesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedbrew_articles_created_total",
		Help: "New articles persisted by ingestion.",
	})

	// SummariesTotal counts summarization attempts by outcome.
	SummariesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbrew_summaries_total",
		Help: "Summarization attempts by outcome (ok, failed, skipped).",
	}, []string{"outcome"})

	// DigestsCreatedTotal counts persisted digests.
	DigestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedbrew_digests_created_total",
		Help: "Digests persisted by the composer.",
	})

	// ArticlesPrunedTotal counts articles removed by retention pruning.
	ArticlesPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedbrew_articles_pruned_total",
		Help: "Articles removed by retention pruning.",
	})

	// UpdateRunDuration observes the duration of one processed feed update.
	UpdateRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedbrew_update_run_duration_seconds",
		Help:    "Duration of one processed feed update run.",
		Buckets: prometheus.DefBuckets,
	})
)

// Fetch outcome label values.
const (
	OutcomeUpdated     = "updated"
	OutcomeNotModified = "not_modified"
	OutcomeFailed      = "failed"
	OutcomeOK          = "ok"
	OutcomeSkipped     = "skipped"
)
