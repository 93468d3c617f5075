package engine

import "github.com/prometheus/client_golang/prometheus"

// Run outcomes used as the "outcome" label.
const (
	outcomeCompleted = "completed"
	outcomeNodeError = "node_error"
	outcomeLoopGuard = "loop_guard"
	outcomeAborted   = "aborted"
)

// unregisteredTool labels dispatches whose fn did not resolve, so that
// arbitrary fn names from graph definitions cannot grow label cardinality.
const unregisteredTool = "unregistered"

var (
	runsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphrun_runs_started_total",
			Help: "Total number of graph runs started.",
		},
	)

	runsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrun_runs_finished_total",
			Help: "Total number of graph runs finished, by outcome.",
		},
		[]string{"outcome"},
	)

	activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrun_active_runs",
			Help: "Number of graph runs currently executing.",
		},
	)

	nodeExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrun_node_executions_total",
			Help: "Total number of node executions.",
		},
		[]string{"tool", "mode", "status"},
	)

	nodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrun_node_duration_seconds",
			Help:    "Tool call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool", "mode"},
	)

	loopGuardTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphrun_loop_guard_trips_total",
			Help: "Total number of runs aborted by the loop guard.",
		},
	)

	blockingPoolInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrun_blocking_pool_in_use",
			Help: "Number of blocking tool calls holding a worker pool slot.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsStarted)
	prometheus.MustRegister(runsFinished)
	prometheus.MustRegister(activeRuns)
	prometheus.MustRegister(nodeExecutions)
	prometheus.MustRegister(nodeDuration)
	prometheus.MustRegister(loopGuardTrips)
	prometheus.MustRegister(blockingPoolInUse)
}
