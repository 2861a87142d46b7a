package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(stageDurationSeconds, stageFailuresTotal, uploadedFilesTotal) }

var stageDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "transcode_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	},
	[]string{"stage"}, // 'download', 'transcode', 'upload', 'finalize'
)

var stageFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcode_stage_failures_total",
		Help: "Stage failures by stage.",
	},
	[]string{"stage"},
)

var uploadedFilesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "transcode_uploaded_files_total",
		Help: "Total files published to the output store.",
	},
)

func ObserveStage(stage string, seconds float64) {
	stageDurationSeconds.WithLabelValues(norm(stage)).Observe(seconds)
}

func IncStageFailure(stage string) {
	stageFailuresTotal.WithLabelValues(norm(stage)).Inc()
}

func AddUploadedFiles(n int) {
	uploadedFilesTotal.Add(float64(n))
}
