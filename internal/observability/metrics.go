// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Command metrics
	CommandsTotal    *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	CommandErrors    *prometheus.CounterVec
	ContentionTotal  *prometheus.CounterVec
	MintedTotal      prometheus.Counter
	TransferredTotal prometheus.Counter
	ClaimedTotal     prometheus.Counter

	// Settlement metrics
	SettlementEventsApplied   *prometheus.CounterVec
	SettlementEventsDuplicate prometheus.Counter
	SettlementEventsRejected  *prometheus.CounterVec
	FeedReconnects            prometheus.Counter

	// Staking metrics
	StakedGauge        prometheus.Gauge
	PositionsReleased  prometheus.Counter
	PositionsSwept     prometheus.Counter

	// Scheduler metrics
	SnapshotsTaken   prometheus.Counter
	AccountsArchived prometheus.Counter
	SchedulerErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSnapshot prometheus.Gauge
	LastSettlementEvent    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tola_ledger"
	}

	return &Metrics{
		// Command metrics
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "commands_total",
			Help:      "Total number of ledger commands executed by type and status",
		}, []string{"command", "status"}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "command_duration_seconds",
			Help:      "Ledger command execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		CommandErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "command_errors_total",
			Help:      "Total number of ledger command errors by type and error code",
		}, []string{"command", "code"}),
		ContentionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "contention_total",
			Help:      "Total number of commands aborted on lock contention",
		}, []string{"command"}),
		MintedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "minted_units_total",
			Help:      "Total token units minted",
		}),
		TransferredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transferred_units_total",
			Help:      "Total token units transferred",
		}),
		ClaimedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "claimed_units_total",
			Help:      "Total token units claimed from reward grants",
		}),

		// Settlement metrics
		SettlementEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "events_applied_total",
			Help:      "Total number of settlement events applied by kind",
		}, []string{"kind"}),
		SettlementEventsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "events_duplicate_total",
			Help:      "Total number of settlement events skipped as duplicates",
		}),
		SettlementEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "events_rejected_total",
			Help:      "Total number of settlement events rejected by reason",
		}, []string{"reason"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "feed_reconnects_total",
			Help:      "Total number of settlement feed reconnects",
		}),

		// Staking metrics
		StakedGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "staking",
			Name:      "staked_units",
			Help:      "Current total staked token units",
		}),
		PositionsReleased: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staking",
			Name:      "positions_released_total",
			Help:      "Total number of stake positions released after cooldown",
		}),
		PositionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staking",
			Name:      "sweep_runs_total",
			Help:      "Total number of unstake sweeper runs",
		}),

		// Scheduler metrics
		SnapshotsTaken: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "snapshots_taken_total",
			Help:      "Total number of supply snapshots written",
		}),
		AccountsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "accounts_archived_total",
			Help:      "Total number of accounts archived for inactivity",
		}),
		SchedulerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "errors_total",
			Help:      "Total number of scheduler run errors by job",
		}, []string{"job"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSnapshot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_snapshot_timestamp",
			Help:      "Unix timestamp of last successful supply snapshot",
		}),
		LastSettlementEvent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_settlement_event_timestamp",
			Help:      "Unix timestamp of last settlement event received",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCommand records one executed ledger command.
func RecordCommand(command, status string, seconds float64) {
	DefaultMetrics.CommandsTotal.WithLabelValues(command, status).Inc()
	DefaultMetrics.CommandDuration.WithLabelValues(command).Observe(seconds)
}

// RecordCommandError records a ledger command failure by error code.
func RecordCommandError(command, code string) {
	DefaultMetrics.CommandErrors.WithLabelValues(command, code).Inc()
	if code == "Contention" {
		DefaultMetrics.ContentionTotal.WithLabelValues(command).Inc()
	}
}

// RecordSettlementApplied records an applied settlement event.
func RecordSettlementApplied(kind string) {
	DefaultMetrics.SettlementEventsApplied.WithLabelValues(kind).Inc()
}

// RecordSettlementDuplicate records a settlement event skipped as a replay.
func RecordSettlementDuplicate() {
	DefaultMetrics.SettlementEventsDuplicate.Inc()
}

// RecordSettlementRejected records a settlement event rejected before apply.
func RecordSettlementRejected(reason string) {
	DefaultMetrics.SettlementEventsRejected.WithLabelValues(reason).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
