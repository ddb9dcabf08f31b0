package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for TxStream.
type Metrics struct {
	// --- Record processing ---
	RecordsApplied  *prometheus.CounterVec
	RecordsIgnored  *prometheus.CounterVec
	RecordsSkipped  *prometheus.CounterVec
	RecordDuration  *prometheus.HistogramVec
	AccountsCreated prometheus.Counter
	AccountsTotal   prometheus.Gauge
	AccountsLocked  prometheus.Gauge
	DisputesOpen    prometheus.Gauge

	// --- Ingestion ---
	NATSRecords   *prometheus.CounterVec
	NATSParseFail prometheus.Counter

	// --- Persistence ---
	SnapshotsPersisted prometheus.Counter
	SnapshotPersistDur prometheus.Histogram
	PersistErrors      *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	applyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001,
	}

	return &Metrics{
		RecordsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tx_records_applied_total",
			Help: "Records that mutated account state",
		}, []string{"kind"}),

		RecordsIgnored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tx_records_ignored_total",
			Help: "Well-formed records rejected by a state-machine precondition",
		}, []string{"kind"}),

		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tx_records_skipped_total",
			Help: "Malformed records dropped by the run loop",
		}, []string{"reason"}),

		RecordDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tx_record_apply_duration_seconds",
			Help:    "Time to route and apply a single record",
			Buckets: applyBuckets,
		}, []string{"kind"}),

		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tx_accounts_created_total",
			Help: "Client accounts created on first sight",
		}),

		AccountsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tx_accounts",
			Help: "Known client accounts",
		}),

		AccountsLocked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tx_accounts_locked",
			Help: "Accounts frozen by a chargeback",
		}),

		DisputesOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tx_disputes_open",
			Help: "History entries currently in disputed state",
		}),

		NATSRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tx_nats_records_total",
			Help: "Records received over NATS by subject",
		}, []string{"subject"}),

		NATSParseFail: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tx_nats_parse_failures_total",
			Help: "NATS payloads that failed to parse",
		}),

		SnapshotsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tx_snapshots_persisted_total",
			Help: "Client snapshot rows written to Postgres",
		}),

		SnapshotPersistDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tx_snapshot_persist_duration_seconds",
			Help:    "Time to persist one run's snapshot set",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tx_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),
	}
}
