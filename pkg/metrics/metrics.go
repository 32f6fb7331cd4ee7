// Package metrics provides Prometheus metrics for the storematch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DuplicateChecksTotal tracks duplicate checks by outcome (name, handle, social_link, none, error)
	DuplicateChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storematch",
			Subsystem: "duplicates",
			Name:      "checks_total",
			Help:      "Total number of duplicate checks by result",
		},
		[]string{"result"},
	)

	// DuplicateCheckDuration tracks how long a full duplicate check takes
	DuplicateCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storematch",
			Subsystem: "duplicates",
			Name:      "check_duration_seconds",
			Help:      "Duration of duplicate checks in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CandidatesScanned tracks the size of the active store pool scanned by name matching
	CandidatesScanned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storematch",
			Subsystem: "duplicates",
			Name:      "name_candidates_scanned",
			Help:      "Number of active stores scanned per name lookup",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	// StoreSubmissionsTotal tracks store submissions by outcome (created, duplicate, error)
	StoreSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storematch",
			Subsystem: "submissions",
			Name:      "total",
			Help:      "Total number of store submissions by outcome",
		},
		[]string{"outcome"},
	)

	// SubmissionLockWaits tracks submissions that could not take the name lock
	SubmissionLockWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storematch",
			Subsystem: "submissions",
			Name:      "lock_not_acquired_total",
			Help:      "Total number of submissions rejected because the name lock was held",
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storematch",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"event_type", "status"},
	)
)
