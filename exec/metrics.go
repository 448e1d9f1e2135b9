package exec

import "github.com/prometheus/client_golang/prometheus"

var (
	executionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratpack_executions_started_total",
			Help: "Total number of executions forked.",
		},
	)

	executionsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratpack_executions_completed_total",
			Help: "Total number of executions that reached completion.",
		},
	)

	executionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratpack_executions_active",
			Help: "Number of executions that have started but not completed.",
		},
	)

	segmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratpack_segments_total",
			Help: "Total number of execution segments processed, by kind.",
		},
		[]string{"kind"},
	)

	blockingOperationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratpack_blocking_operations_total",
			Help: "Total number of operations submitted to the blocking pool.",
		},
	)

	poolRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratpack_pool_rejections_total",
			Help: "Total number of submissions rejected by a closed pool.",
		},
		[]string{"pool"},
	)
)

func init() {
	prometheus.MustRegister(executionsStarted)
	prometheus.MustRegister(executionsCompleted)
	prometheus.MustRegister(executionsActive)
	prometheus.MustRegister(segmentsTotal)
	prometheus.MustRegister(blockingOperationsTotal)
	prometheus.MustRegister(poolRejectionsTotal)
}
