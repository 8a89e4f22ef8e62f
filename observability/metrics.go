// Package observability exposes the Prometheus metrics shared by the
// coordination and swarm packages. Grounded on
// control_plane/observability/metrics.go's promauto-registered
// Gauge/GaugeVec/Counter/CounterVec/Histogram pattern, renamed for this
// domain's concerns (message publishes/acks, presence, swarm sessions,
// findings) in place of FluxForge's scheduler/leader metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesPublished counts successful publishes by message type.
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coord_messages_published_total",
		Help: "Total number of coordination messages published",
	}, []string{"type"})

	// MessagesAcknowledged counts successful acknowledge calls.
	MessagesAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coord_messages_acknowledged_total",
		Help: "Total number of coordination messages acknowledged",
	})

	// DuplicatePublishRejected counts duplicate-id publish attempts.
	DuplicatePublishRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coord_duplicate_publish_rejected_total",
		Help: "Total number of publishes rejected due to a duplicate message id",
	})

	// OfflineQueueDepth tracks the per-instance offline notification queue length.
	OfflineQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coord_offline_queue_depth",
		Help: "Current length of an instance's offline notification queue",
	}, []string{"instance"})

	// ActiveInstances tracks the number of instances presently active.
	ActiveInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coord_active_instances",
		Help: "Current number of instances considered active on read",
	})

	// RedisLatency tracks Redis round-trip latency for coordination operations.
	RedisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coord_redis_roundtrip_latency_seconds",
		Help:    "Redis operation latency for the coordination substrate",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})

	// SwarmSessionsStarted counts swarm sessions dispatched.
	SwarmSessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarm_sessions_started_total",
		Help: "Total number of swarm sessions started",
	})

	// SwarmSessionsCompleted counts swarm sessions by terminal status.
	SwarmSessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_sessions_completed_total",
		Help: "Total number of swarm sessions reaching a terminal state",
	}, []string{"status"})

	// SwarmReviewerDuration tracks per-reviewer execution time.
	SwarmReviewerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swarm_reviewer_duration_seconds",
		Help:    "Execution duration of an individual reviewer task",
		Buckets: prometheus.DefBuckets,
	}, []string{"reviewer_type", "status"})

	// SwarmFindingsEmitted counts findings surviving aggregation, by severity.
	SwarmFindingsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_findings_emitted_total",
		Help: "Total number of findings in unified reports, by severity",
	}, []string{"severity"})

	// SwarmDuplicatesRemoved counts findings merged away during aggregation.
	SwarmDuplicatesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarm_duplicates_removed_total",
		Help: "Total number of findings removed as duplicates during aggregation",
	})

	// SwarmAdmissionRejections counts dispatches refused by the concurrency gate.
	SwarmAdmissionRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarm_admission_rejections_total",
		Help: "Total number of swarm dispatches rejected by the concurrent-swarm admission gate",
	})

	// SwarmSlotJanitorReclaims counts stale admission-gate slots force-released.
	SwarmSlotJanitorReclaims = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarm_slot_janitor_reclaims_total",
		Help: "Total number of stale swarm admission slots force-released by the janitor",
	})
)
