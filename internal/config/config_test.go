package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DB)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.JSONLogs())

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"ROUTINE_DB":           "/tmp/events.db",
		"ROUTINE_LOG_LEVEL":    "debug",
		"ROUTINE_LOG_FORMAT":   "JSON",
		"ROUTINE_BASE_URL":     "http://api.local",
		"ROUTINE_HTTP_TIMEOUT": "5s",
		"ROUTINE_METRICS_ADDR": ":9090",
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/events.db", cfg.DB)
	assert.True(t, cfg.JSONLogs())
	assert.Equal(t, "http://api.local", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ":9090", cfg.MetricsAddr)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"bad duration", map[string]string{"ROUTINE_HTTP_TIMEOUT": "soon"}, "parse"},
		{"bad level", map[string]string{"ROUTINE_LOG_LEVEL": "loud"}, "ROUTINE_LOG_LEVEL"},
		{"bad format", map[string]string{"ROUTINE_LOG_FORMAT": "xml"}, "ROUTINE_LOG_FORMAT"},
		{"negative timeout", map[string]string{"ROUTINE_HTTP_TIMEOUT": "-1s"}, "ROUTINE_HTTP_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ROUTINE_METRICS_ADDR=:7070\n"), 0o644))

	t.Setenv("ROUTINE_METRICS_ADDR", "")
	require.NoError(t, os.Unsetenv("ROUTINE_METRICS_ADDR"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.MetricsAddr)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
