package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RepositoryQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_queries_total",
			Help: "The total number of queries sent to the content repository",
		},
		[]string{"backend", "status"},
	)

	RepositoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_query_duration_seconds",
			Help:    "Duration of content repository queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	DocumentsTransformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_transformed_total",
			Help: "The total number of documents transformed into posts",
		},
		[]string{"status"},
	)

	FeedOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_operations_total",
			Help: "Feed controller operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	FeedSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_sessions_active",
			Help: "Number of live feed sessions",
		},
	)

	DLQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_published_total",
			Help: "Total number of messages published to DLQ",
		},
		[]string{"type"},
	)

	DocumentSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "document_sync_duration_seconds",
			Help:    "Duration of document synchronization into the content store",
			Buckets: prometheus.DefBuckets,
		},
	)

	DocumentSyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_sync_errors_total",
			Help: "Total number of document sync errors",
		},
		[]string{"type"},
	)

	DocumentSyncSuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_sync_processed_total",
			Help: "Total number of documents successfully synced to the content store",
		},
		[]string{"type"},
	)
)
