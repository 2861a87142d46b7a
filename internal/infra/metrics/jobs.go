package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsInFlight, jobDurationSeconds, claimsTotal) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcode_jobs_processed_total",
		Help: "Total number of transcode jobs processed, labeled by outcome.",
	},
	[]string{"outcome"}, // 'completed', 'requeued', 'failed'
)

var jobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "transcode_jobs_in_flight",
		Help: "Number of jobs this worker process is currently executing.",
	},
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "transcode_job_duration_seconds",
		Help:    "Wall-clock duration of whole job runs.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	},
)

var claimsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcode_claims_total",
		Help: "Claim attempts by result.",
	},
	[]string{"result"}, // 'claimed', 'empty', 'error'
)

func IncJob(outcome string) {
	jobsProcessedTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncClaim(result string) {
	claimsTotal.WithLabelValues(norm(result)).Inc()
}

func JobStarted()  { jobsInFlight.Inc() }
func JobFinished() { jobsInFlight.Dec() }

func ObserveJobDuration(seconds float64) {
	jobDurationSeconds.Observe(seconds)
}
