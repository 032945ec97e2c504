// Package observability holds service-wide watermark gauges.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runPersistedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "runleague",
		Subsystem: "persistence",
		Name:      "last_run_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent run written to Postgres.",
	})
	syncCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "runleague",
		Subsystem: "sync",
		Name:      "last_sync_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful provider sync.",
	})
	leaderboardComputedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "runleague",
		Subsystem: "leaderboard",
		Name:      "last_computed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent leaderboard computation.",
	})
)

func init() {
	prometheus.MustRegister(runPersistedGauge, syncCompletedGauge, leaderboardComputedGauge)
}

// RecordRunPersisted updates the persistence watermark gauge.
func RecordRunPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	runPersistedGauge.Set(float64(ts.Unix()))
}

// RecordSyncCompleted updates the sync watermark gauge.
func RecordSyncCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	syncCompletedGauge.Set(float64(ts.Unix()))
}

// RecordLeaderboardComputed updates the leaderboard watermark gauge.
func RecordLeaderboardComputed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	leaderboardComputedGauge.Set(float64(ts.Unix()))
}
