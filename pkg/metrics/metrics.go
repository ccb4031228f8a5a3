package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Inventory metrics
	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterupgrade_clusters_total",
			Help: "Total number of clusters",
		},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterupgrade_nodes_total",
			Help: "Total number of nodes by status",
		},
		[]string{"status"},
	)

	RelationsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterupgrade_relations_total",
			Help: "Total number of active upgrade relations",
		},
	)

	// Upgrade operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterupgrade_operations_total",
			Help: "Total number of upgrade operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterupgrade_operation_duration_seconds",
			Help:    "Upgrade operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Transformation metrics
	TransformationsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterupgrade_transformations_applied_total",
			Help: "Total number of version buckets applied by domain and version",
		},
		[]string{"domain", "version"},
	)

	TransformationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterupgrade_transformation_duration_seconds",
			Help:    "Time taken to apply a domain's transformations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"domain"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterupgrade_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterupgrade_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(RelationsTotal)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(TransformationsApplied)
	prometheus.MustRegister(TransformationDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation counts a finished upgrade operation and observes its duration
func RecordOperation(operation string, timer *Timer, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	timer.ObserveDurationVec(OperationDuration, operation)
}
