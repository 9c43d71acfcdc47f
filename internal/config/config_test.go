package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1024, cfg.Engine.PersistChanSize)
	assert.Equal(t, 50, cfg.Persistence.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Persistence.FlushTimeout)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
postgres:
  dsn: postgres://optx@db:5432/optionstats
engine:
  persist_chan_size: 256
markets:
  registered:
    - "0x00000000000000000000000000000000000000aa"
    - "0x00000000000000000000000000000000000000bb"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "postgres://optx@db:5432/optionstats", cfg.Postgres.DSN)
	assert.Equal(t, 256, cfg.Engine.PersistChanSize)
	assert.Len(t, cfg.Markets.Registered, 2)

	// Untouched sections keep their defaults.
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
nats:
  url: nats://file:4222
`)
	t.Setenv("OPTX_NATS_URL", "nats://env:4222")
	t.Setenv("OPTX_PERSIST_BATCH_SIZE", "200")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, 200, cfg.Persistence.BatchSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
persistence:
  batch_size: -1
`)
	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
