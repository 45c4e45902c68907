package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clusterd/pkg/log"
)

func TestLoad_DefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, 4, cfg.Workers)
}

func TestLoad_OverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clusterd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/clusterd
workers: 8
default_action_timeout_seconds: 120
log:
  level: debug
  json: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/clusterd", cfg.DataDir)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, 120, cfg.DefaultActionTimeout)
	require.Equal(t, log.DebugLevel, cfg.LogLevel())
	require.True(t, cfg.Log.JSON)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/clusterd.yaml")
	require.Error(t, err)
}
