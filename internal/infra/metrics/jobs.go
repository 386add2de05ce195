package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(remoteJobs, analysisJobs, chartBlocks)
}

var (
	remoteJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_jobs_total",
			Help: "Remote run outcomes by terminal state.",
		},
		[]string{"state"},
	)

	analysisJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_jobs_total",
			Help: "Queued analysis job outcomes by status.",
		},
		[]string{"status"},
	)

	chartBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_blocks_total",
			Help: "Chart block extraction outcomes (attempted, accepted, skipped).",
		},
		[]string{"outcome"},
	)
)

func IncRemoteJob(state string) { remoteJobs.WithLabelValues(norm(state)).Inc() }

func IncAnalysisJob(status string) { analysisJobs.WithLabelValues(norm(status)).Inc() }

func ObserveChartBlocks(attempted, accepted int) {
	chartBlocks.WithLabelValues("attempted").Add(float64(attempted))
	chartBlocks.WithLabelValues("accepted").Add(float64(accepted))
	if skipped := attempted - accepted; skipped > 0 {
		chartBlocks.WithLabelValues("skipped").Add(float64(skipped))
	}
}
