// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Journal metrics
	NotificationsReceived prometheus.Counter
	TransactionsProcessed *prometheus.CounterVec
	OperationsJournaled   *prometheus.CounterVec
	DuplicatesSkipped     prometheus.Counter
	SupplySnapshots       prometheus.Counter
	JournalErrors         *prometheus.CounterVec
	HighestSlotSeen       prometheus.Gauge
	BackfillDuration      prometheus.Histogram

	// Client metrics
	TransactionsSubmitted *prometheus.CounterVec
	ConfirmationLatency   prometheus.Histogram

	// Transport metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Health metrics
	LastSuccessfulBackfill prometheus.Gauge
	UptimeSeconds          prometheus.Counter

	mu          sync.Mutex
	highestSlot int64
}

// NewMetrics creates a new Metrics instance with all metrics registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_token_manager"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Journal metrics
		NotificationsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "notifications_received_total",
			Help:      "Total number of program log notifications received",
		}),
		TransactionsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "transactions_processed_total",
			Help:      "Total number of transactions journaled by origin",
		}, []string{"origin"}),
		OperationsJournaled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "operations_total",
			Help:      "Total number of operations stored by kind and status",
		}, []string{"kind", "status"}),
		DuplicatesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of operations already journaled",
		}),
		SupplySnapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "supply_snapshots_total",
			Help:      "Total number of supply snapshots stored",
		}),
		JournalErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Total number of journal errors by stage",
		}, []string{"stage"}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number journaled",
		}),
		BackfillDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "backfill_duration_seconds",
			Help:      "Duration of backfill passes",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		// Client metrics
		TransactionsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "transactions_submitted_total",
			Help:      "Total number of transactions submitted by operation and status",
		}, []string{"op", "status"}),
		ConfirmationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to confirmation",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		// Transport metrics
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "Latency of RPC calls by method",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of failed RPC calls by method",
		}, []string{"method"}),

		// Health metrics
		LastSuccessfulBackfill: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backfill_timestamp",
			Help:      "Unix timestamp of last successful backfill pass",
		}),
		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordOperation counts a journaled operation.
func (m *Metrics) RecordOperation(kind string, success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.OperationsJournaled.WithLabelValues(kind, status).Inc()
}

// RecordJournalError counts a journal failure at stage.
func (m *Metrics) RecordJournalError(stage string) {
	m.JournalErrors.WithLabelValues(stage).Inc()
}

// UpdateHighestSlot raises the highest slot gauge; a lower slot from a
// backfill page leaves it unchanged.
func (m *Metrics) UpdateHighestSlot(slot int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot > m.highestSlot {
		m.highestSlot = slot
		m.HighestSlotSeen.Set(float64(slot))
	}
}

// RecordBackfill records a completed backfill pass.
func (m *Metrics) RecordBackfill(elapsed time.Duration) {
	m.BackfillDuration.Observe(elapsed.Seconds())
	m.LastSuccessfulBackfill.SetToCurrentTime()
}

// RecordSubmission records a submitted transaction.
func (m *Metrics) RecordSubmission(op string, elapsed time.Duration, err error) {
	status := "confirmed"
	if err != nil {
		status = "failed"
	} else {
		m.ConfirmationLatency.Observe(elapsed.Seconds())
	}
	m.TransactionsSubmitted.WithLabelValues(op, status).Inc()
}

// ObserveRPC records RPC call latency; it matches solana.CallObserver.
func (m *Metrics) ObserveRPC(method string, elapsed time.Duration, err error) {
	m.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// TrackUptime increments the uptime counter every interval until done is closed.
func (m *Metrics) TrackUptime(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.UptimeSeconds.Add(interval.Seconds())
		}
	}
}
