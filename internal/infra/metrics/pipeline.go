package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		pipelineJobs,
		pipelineStepLatencyMs,
		pipelineStepsTotal,
		checkpointSaves,
		checkpointCleanups,
	)
}

var (
	pipelineJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_total",
			Help: "Finished pipeline jobs per workflow and terminal status.",
		},
		[]string{"workflow", "status"},
	)

	pipelineStepLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_step_latency_ms",
			Help:    "Per-step execution time in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000, 180000},
		},
		[]string{"agent"},
	)

	pipelineStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_steps_total",
			Help: "Executed steps per agent type and outcome.",
		},
		[]string{"agent", "status"},
	)

	checkpointSaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_saves_total",
			Help: "Checkpoint records written.",
		},
	)

	checkpointCleanups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_cleanups_total",
			Help: "Cleanup passes that deleted at least one checkpoint.",
		},
	)
)

func IncPipelineJob(workflow, status string) {
	pipelineJobs.WithLabelValues(workflow, status).Inc()
}

func ObserveStep(agent, status string, latencyMs int) {
	pipelineStepsTotal.WithLabelValues(agent, status).Inc()
	pipelineStepLatencyMs.WithLabelValues(agent).Observe(float64(latencyMs))
}

func IncCheckpointSave()    { checkpointSaves.Inc() }
func IncCheckpointCleanup() { checkpointCleanups.Inc() }
