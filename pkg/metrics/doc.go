/*
Package metrics provides Prometheus instrumentation and a minimal health
endpoint for clusterd.

# Metrics

	clusterd_clusters_total{status}                gauge
	clusterd_nodes_total{status}                    gauge
	clusterd_actions_total{status}                   gauge
	clusterd_action_queue_depth                      gauge
	clusterd_action_duration_seconds{action,status}  histogram
	clusterd_lock_contention_total{scope,outcome}    counter
	clusterd_lock_hold_duration_seconds              histogram
	clusterd_policy_check_duration_seconds{policy_type,stage} histogram
	clusterd_dispatcher_backlog                      gauge
	clusterd_dispatcher_workers_active               gauge

Collector samples the first four gauges above from storage.Store on a 15s
ticker, the same immediate-then-tick loop clusterd's other background
workers use. The dispatcher gauges, histograms and counters are updated
inline by pkg/engine, pkg/clusterlock and pkg/policy; pkg/policy times its
pipeline stages with the Timer helper:

	t := metrics.NewTimer()
	// ... do work ...
	t.ObserveDurationVec(metrics.PolicyCheckDuration, policyType, string(phase))

# Health

HealthHandler/ReadyHandler/LivenessHandler back the ambient /health,
/ready, and /live endpoints mounted by cmd/clusterd's serve command.
Readiness considers "storage" and "dispatcher" critical components;
callers register their status via RegisterComponent/UpdateComponent
during startup.

# See Also

  - pkg/storage for the gauges' data source
  - cmd/clusterd/serve.go for where these handlers are mounted
*/
package metrics
