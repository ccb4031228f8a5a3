/*
Package metrics exposes Prometheus metrics and health endpoints of the
upgrade service.

# Metrics

All collectors are registered with the default Prometheus registry on
package initialization and served by Handler at /metrics:

	clusterupgrade_clusters_total                       gauge
	clusterupgrade_nodes_total{status}                  gauge
	clusterupgrade_relations_total                      gauge
	clusterupgrade_operations_total{operation,status}   counter
	clusterupgrade_operation_duration_seconds{operation} histogram
	clusterupgrade_transformations_applied_total{domain,version} counter
	clusterupgrade_transformation_duration_seconds{domain} histogram
	clusterupgrade_api_requests_total{method,status}    counter
	clusterupgrade_api_request_duration_seconds{method} histogram

Inventory gauges are refreshed every 15 seconds by a Collector. Operation
metrics are recorded with a Timer:

	timer := metrics.NewTimer()
	seed, err := helper.CloneCluster(orig, req)
	metrics.RecordOperation("clone", timer, err)

# Health

Components report their state with RegisterComponent. /health is unhealthy
while any registered component is unhealthy; /ready additionally requires
the critical components (storage, transformations, api) to be registered.
*/
package metrics
