package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_clusters_total",
			Help: "Total number of clusters by status",
		},
		[]string{"status"},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_nodes_total",
			Help: "Total number of nodes by status",
		},
		[]string{"status"},
	)

	ActionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_actions_total",
			Help: "Total number of actions by status",
		},
		[]string{"status"},
	)

	ActionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterd_action_queue_depth",
			Help: "Number of actions currently READY but not yet claimed by a worker",
		},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterd_action_duration_seconds",
			Help:    "Time from RUNNING to a terminal status, by action verb",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action", "status"},
	)

	LockContention = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterd_lock_contention_total",
			Help: "Total lock acquisition attempts, by scope and outcome",
		},
		[]string{"scope", "outcome"}, // outcome: blocked, forced, acquired
	)

	LockHoldDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterd_lock_hold_duration_seconds",
			Help:    "Time a cluster or node lock was held before release",
			Buckets: prometheus.DefBuckets,
		},
	)

	PolicyCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterd_policy_check_duration_seconds",
			Help:    "Time taken to run a policy pipeline stage, by policy type and stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"policy_type", "stage"}, // stage: BEFORE, AFTER
	)

	DispatcherBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterd_dispatcher_backlog",
			Help: "Number of READY actions waiting for a free dispatcher worker slot",
		},
	)

	DispatcherWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterd_dispatcher_workers_active",
			Help: "Number of dispatcher worker goroutines currently executing an action",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ClustersTotal,
		NodesTotal,
		ActionsTotal,
		ActionQueueDepth,
		ActionDuration,
		LockContention,
		LockHoldDuration,
		PolicyCheckDuration,
		DispatcherBacklog,
		DispatcherWorkersActive,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
