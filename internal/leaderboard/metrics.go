package leaderboard

import "github.com/prometheus/client_golang/prometheus"

var (
	computeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "runleague",
		Subsystem: "leaderboard",
		Name:      "compute_duration_seconds",
		Help:      "Time spent fetching, aggregating and ranking a leaderboard, labeled by period.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"period"})

	degradedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runleague",
		Subsystem: "leaderboard",
		Name:      "degraded_reads_total",
		Help:      "Number of leaderboard computations that returned empty because the run store was unreachable.",
	}, []string{"period"})
)

func init() {
	prometheus.MustRegister(computeDuration, degradedCounter)
}
