package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "openidm"
)

var (
	syncDurationBuckets = []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600}

	// Sync Metrics
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Time taken for one sync pass of a resource system object class.",
		Buckets:   syncDurationBuckets,
	}, []string{"system", "object_class"})

	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Count of sync passes.",
	}, []string{"system", "object_class", "status"})

	SyncDeltasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_deltas_total",
		Help:      "Number of sync deltas delivered to consumers.",
	}, []string{"system", "object_class", "delta_type"})

	SyncLastSuccessTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful sync pass.",
	}, []string{"system", "object_class"})

	// Connector Metrics
	ConnectorOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "connector_operation_duration_seconds",
		Help:      "Time taken for connector operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"connector", "operation", "location"})

	ConnectorOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connector_operations_total",
		Help:      "Count of connector operations.",
	}, []string{"connector", "operation", "location", "status"})

	ConnectorPoolObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connector_pool_objects",
		Help:      "Pooled connector sessions by state.",
	}, []string{"pool", "state"})

	ConnectorPoolWaitTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connector_pool_wait_timeouts_total",
		Help:      "Number of pool acquisitions that gave up waiting for a free session.",
	}, []string{"pool"})

	ConnectorServerSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connector_server_sessions",
		Help:      "Open sessions on the connector host.",
	})

	// Startup Metrics
	StartupTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "startup_tasks_total",
		Help:      "Count of startup task executions.",
	}, []string{"task", "status"})

	RemoteServersConsolidatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_servers_consolidated_total",
		Help:      "Resource systems rewired to a standalone remote server.",
	}, []string{"outcome"})
)
