package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Economy Metrics
	SavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_saves_total",
		Help: "The total number of save requests by outcome",
	}, []string{"outcome"})
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_loads_total",
		Help: "The total number of load requests by outcome",
	}, []string{"outcome"})
	LivesRefilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_lives_refilled_total",
		Help: "The total number of lives granted by elapsed-time regeneration",
	})
	AnchorAdvancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_anchor_advances_total",
		Help: "The total number of refill anchor advances by trigger",
	}, []string{"trigger"})
	CommitConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_commit_conflicts_total",
		Help: "The total number of optimistic commit conflicts by operation",
	}, []string{"operation"})
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifeline_operation_latency_seconds",
		Help:    "Latency of save, load and ranking operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// Nickname Metrics
	NicknameCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_nickname_collisions_total",
		Help: "The total number of generated nicknames that were already taken",
	})
	NicknameFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_nickname_fallbacks_total",
		Help: "The total number of nicknames built from the clock after all attempts collided",
	})

	// Ranking Metrics
	RankingCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_ranking_cache_hits_total",
		Help: "The total number of ranking windows served from cache",
	})
	RankingCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_ranking_cache_misses_total",
		Help: "The total number of ranking windows read from the record store",
	})

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_events_published_total",
		Help: "The total number of player events published to Kafka by type",
	}, []string{"type"})
	EventPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_event_publish_errors_total",
		Help: "The total number of errors occurred while publishing to Kafka",
	})

	// Syncer Metrics
	SyncerMessagesConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_syncer_messages_consumed_total",
		Help: "The total number of player events consumed from Kafka",
	})
	SyncerBatchWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_syncer_batch_writes_total",
		Help: "The total number of batch write operations to PostgreSQL",
	})
	SyncerWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_syncer_write_errors_total",
		Help: "The total number of errors occurred during PostgreSQL writes",
	})
	SyncerUpsertLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lifeline_syncer_upsert_latency_seconds",
		Help:    "Latency of PostgreSQL UPSERT operations",
		Buckets: prometheus.DefBuckets,
	})
)
