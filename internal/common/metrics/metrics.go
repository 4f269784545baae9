// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AgentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_agent_runs_total",
			Help: "Total number of agent runs by team and outcome",
		},
		[]string{"team", "status"},
	)

	AgentRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_agent_run_duration_seconds",
			Help:    "Duration of agent runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		},
		[]string{"team"},
	)

	CapabilityInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capability_invocations_total",
			Help: "Total number of capability invocations by outcome",
		},
		[]string{"capability", "status"},
	)

	CapabilityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "capability_duration_seconds",
			Help: "Duration of capability invocations in seconds",
		},
		[]string{"capability"},
	)

	EventLogTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_log_timeouts_total",
			Help: "Total number of events moved to error by the timeout sweep",
		},
	)

	IngressEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_events_total",
			Help: "Inbound events by source and outcome (accepted, duplicate, ignored, rejected)",
		},
		[]string{"source", "outcome"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
