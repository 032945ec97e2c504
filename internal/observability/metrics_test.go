package observability

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, gauge interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	g := metric.GetGauge()
	require.NotNil(t, g)
	return g.GetValue()
}

func TestWatermarkGaugesTrackLatestTimestamp(t *testing.T) {
	ts := time.Date(2025, time.March, 12, 8, 30, 0, 0, time.UTC)

	RecordRunPersisted(ts)
	require.Equal(t, float64(ts.Unix()), gaugeValue(t, runPersistedGauge))

	RecordSyncCompleted(ts.Add(time.Minute))
	require.Equal(t, float64(ts.Add(time.Minute).Unix()), gaugeValue(t, syncCompletedGauge))

	RecordLeaderboardComputed(ts.Add(2 * time.Minute))
	require.Equal(t, float64(ts.Add(2*time.Minute).Unix()), gaugeValue(t, leaderboardComputedGauge))
}

func TestZeroTimestampIsIgnored(t *testing.T) {
	ts := time.Date(2025, time.March, 12, 8, 30, 0, 0, time.UTC)
	RecordRunPersisted(ts)

	RecordRunPersisted(time.Time{})
	require.Equal(t, float64(ts.Unix()), gaugeValue(t, runPersistedGauge))
}
