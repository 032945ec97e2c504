package sync

import "github.com/prometheus/client_golang/prometheus"

var (
	runsSyncedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runleague",
		Subsystem: "sync",
		Name:      "runs_synced_total",
		Help:      "Number of provider runs upserted into the run store.",
	})

	refreshCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runleague",
		Subsystem: "sync",
		Name:      "token_refreshes_total",
		Help:      "Number of successful provider token refreshes.",
	})

	syncFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runleague",
		Subsystem: "sync",
		Name:      "failures_total",
		Help:      "Number of per-user sync attempts that ended in error.",
	})
)

func init() {
	prometheus.MustRegister(runsSyncedCounter, refreshCounter, syncFailureCounter)
}
