package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeQueued   = "queued"
	OutcomeApplied  = "applied"
	OutcomeIgnored  = "ignored"

	DirectionOut = "out"
	DirectionIn  = "in"
)

// EngineMetrics records the pad engine's operations, sync traffic and persistence.
type EngineMetrics struct {
	operations   *prometheus.CounterVec
	syncMessages *prometheus.CounterVec
	offlineQueue prometheus.Gauge
	activePads   prometheus.Gauge
	persist      *prometheus.HistogramVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cuisync_operations_total",
		Help: "Engine entry point invocations by outcome.",
	}, []string{"operation", "outcome"})
	syncMessages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cuisync_sync_messages_total",
		Help: "Sync messages published or received, by type and outcome.",
	}, []string{"direction", "type", "outcome"})
	offlineQueue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cuisync_sync_offline_queue",
		Help: "Messages waiting in the offline queue.",
	})
	activePads := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cuisync_active_pads",
		Help: "Pads currently held in the active collection.",
	})
	persist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cuisync_persist_duration_seconds",
		Help:    "Duration of debounced state writes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(operations, syncMessages, offlineQueue, activePads, persist)
	return &EngineMetrics{
		operations:   operations,
		syncMessages: syncMessages,
		offlineQueue: offlineQueue,
		activePads:   activePads,
		persist:      persist,
	}
}

// IncOperation counts one engine entry point call.
func (m *EngineMetrics) IncOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// IncSyncMessage counts one sync message in the given direction.
func (m *EngineMetrics) IncSyncMessage(direction, msgType, outcome string) {
	if m == nil || m.syncMessages == nil {
		return
	}
	m.syncMessages.WithLabelValues(normalizeLabel(direction), normalizeLabel(msgType), normalizeLabel(outcome)).Inc()
}

func (m *EngineMetrics) SetOfflineQueue(n int) {
	if m == nil || m.offlineQueue == nil {
		return
	}
	m.offlineQueue.Set(float64(n))
}

func (m *EngineMetrics) SetActivePads(n int) {
	if m == nil || m.activePads == nil {
		return
	}
	m.activePads.Set(float64(n))
}

// ObservePersist records the duration of one persistence flush.
func (m *EngineMetrics) ObservePersist(outcome string, duration time.Duration) {
	if m == nil || m.persist == nil {
		return
	}
	m.persist.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
