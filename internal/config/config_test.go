package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "run_events", cfg.RunEventsTopic)
	require.Equal(t, "UTC", cfg.Timezone)
	require.Equal(t, 10*time.Second, cfg.StravaTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("OUTBOX_BATCH_SIZE", "50")
	t.Setenv("SYNC_INTERVAL", "5m")

	cfg := Load()
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 50, cfg.OutboxBatchSize)
	require.Equal(t, 5*time.Minute, cfg.SyncInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Load()

	cfg := base
	cfg.PostgresURL = ""
	require.Error(t, cfg.Validate())

	cfg = base
	cfg.OutboxBatchSize = 0
	require.Error(t, cfg.Validate())

	cfg = base
	cfg.Timezone = "Mars/Olympus"
	require.Error(t, cfg.Validate())

	cfg = base
	cfg.StravaClientID = "id-without-secret"
	require.Error(t, cfg.Validate())
}

func TestStravaEnabled(t *testing.T) {
	cfg := Load()
	require.False(t, cfg.StravaEnabled())

	cfg.StravaClientID = "id"
	cfg.StravaClientSecret = "secret"
	require.True(t, cfg.StravaEnabled())
}
