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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10, cfg.Engine.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Engine.InterBatchDelay)
	assert.Equal(t, 50, cfg.Engine.HistoryLimit)
	assert.Equal(t, 50, cfg.Engine.UndoDepth)
	assert.Equal(t, 20, cfg.Engine.PersistedUndoLimit)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
engine:
  batch_size: 25
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Engine.BatchSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	// Untouched values keep their defaults.
	assert.Equal(t, 50, cfg.Engine.UndoDepth)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
engine:
  batch_size: 25
`)

	t.Setenv("DESKOPS_SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	// Env did not set this; the file value wins over the default.
	assert.Equal(t, 25, cfg.Engine.BatchSize)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad port", yaml: "server:\n  port: 70000\n"},
		{name: "zero batch via env", yaml: ""},
		{name: "bad log format", yaml: "logging:\n  format: xml\n"},
		{name: "persisted undo exceeds depth", yaml: "engine:\n  undo_depth: 10\n  persisted_undo_limit: 30\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "zero batch via env" {
				t.Setenv("DESKOPS_ENGINE_BATCH_SIZE", "-3")
			}
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}
