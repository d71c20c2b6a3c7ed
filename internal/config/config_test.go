package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.BaseURL != "http://localhost:8080/api" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "http://localhost:8080/api")
	}
	if cfg.UI.ToastDuration != 2500*time.Millisecond {
		t.Errorf("UI.ToastDuration = %v, want 2.5s", cfg.UI.ToastDuration)
	}
	if cfg.API.SendBearer {
		t.Error("API.SendBearer should be false by default")
	}
	if !cfg.UI.RestoreLastProject {
		t.Error("UI.RestoreLastProject should be true by default")
	}
	require.NoError(t, cfg.Validate())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	v := viper.New()

	require.NoError(t, Init(v, ""))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  base_url: https://tasks.example.com/api/
  timeout: 3s
ui:
  toast_duration: 1s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("TASKBOARD_API_SEND_BEARER", "true")

	v := viper.New()
	require.NoError(t, Init(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "https://tasks.example.com/api", cfg.API.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Second, cfg.UI.ToastDuration)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.API.SendBearer)
}

func TestInit_ExplicitFileMissing(t *testing.T) {
	v := viper.New()
	err := Init(v, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }},
		{"relative base url", func(c *Config) { c.API.BaseURL = "not a url" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"zero toast", func(c *Config) { c.UI.ToastDuration = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")

	assert.Equal(t, "/tmp/state/taskboard/taskboard.log", LoggingConfig{}.LogFile())
	assert.Equal(t, "/var/log/tb.log", LoggingConfig{File: "/var/log/tb.log"}.LogFile())
}

func TestTelemetry_DefaultsAndEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", "/tmp/state")

	v := viper.New()
	require.NoError(t, Init(v, ""))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "/tmp/state/taskboard/telemetry.jsonl", cfg.Telemetry.ExportFile())

	t.Setenv("TASKBOARD_TELEMETRY_ENABLED", "false")
	v = viper.New()
	require.NoError(t, Init(v, ""))
	cfg, err = Load(v)
	require.NoError(t, err)
	assert.False(t, cfg.Telemetry.Enabled)
}
