package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
engine:
  tick_interval_seconds: 1
  max_in_flight: 16
influxdb:
  enabled: true
  url: http://localhost:8086
  bucket: netwatch
logging:
  level: info
  file_path: /var/log/netwatch.log
  retention_lines: 500
pushover:
  enabled: true
  token: tok
  user_key: user
  throttling_enabled: true
  alert_threshold: 5
  alert_window: 60
`

func TestLoadParsesNestedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, f.Engine.MaxInFlight)
	assert.True(t, f.InfluxDB.Enabled)
	assert.Equal(t, "netwatch", f.InfluxDB.Bucket)
	assert.Equal(t, 500, f.Logging.Retention)
	assert.Equal(t, 5, f.Pushover.AlertThreshold)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// The watcher reloads the parsed File after a write, debounced so repeated
// saves in quick succession yield one reload.
func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloads, errs := w.Watch(ctx)

	updated := sampleYAML + "\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case f := <-reloads:
		require.NotNil(t, f)
		assert.Equal(t, 16, f.Engine.MaxInFlight)
	case err := <-errs:
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherStopTearsDownCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = w.Watch(ctx)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "a second Stop is a no-op, not an error")
}
