package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 200, cfg.WindowCapacity)
	require.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	require.Equal(t, time.Second, cfg.FPSWindow)
	require.Equal(t, 3*time.Second, cfg.MemoryInterval)
	require.Equal(t, 5*time.Second, cfg.PingInterval)
	require.Equal(t, 30, cfg.MinFPS)
	require.Equal(t, 400, cfg.MaxMemoryMB)
	require.Equal(t, int64(200), cfg.MaxLatencyMs)
	require.Empty(t, cfg.AlertJournalPath)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("WINDOW_CAPACITY", "50")
	t.Setenv("RECONNECT_DELAY", "500ms")
	t.Setenv("SOURCE_URL", "ws://example.test/stream")
	t.Setenv("ALERT_JOURNAL_PATH", "/tmp/alerts.db")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 50, cfg.WindowCapacity)
	require.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	require.Equal(t, "ws://example.test/stream", cfg.SourceURL)
	require.Equal(t, "/tmp/alerts.db", cfg.AlertJournalPath)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("WINDOW_CAPACITY", "lots")
	t.Setenv("RECONNECT_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 200, cfg.WindowCapacity)
	require.Equal(t, 3*time.Second, cfg.ReconnectDelay)
}

func TestValidationRejectsNonsense(t *testing.T) {
	t.Setenv("WINDOW_CAPACITY", "-5")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "WINDOW_CAPACITY")
}
