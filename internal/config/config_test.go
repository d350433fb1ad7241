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

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "auto", cfg.AI.Provider)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "clientpilot", cfg.Telemetry.ServiceName)
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("ai:\n  provider: mock\nlog:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.AI.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
}

func TestFromYAMLRejectsUnknownProvider(t *testing.T) {
	_, err := FromYAML([]byte("ai:\n  provider: claude-in-a-box\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.ai.provider")
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientpilot.yml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/x.db\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CLIENTPILOT_JWT_SECRET": "s3cret",
		"GEMINI_API_KEY":         "g-key",
		"LOG_LEVEL":              "WARN",
		"CLIENTPILOT_AI_TIMEOUT": "5s",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "g-key", cfg.AI.GeminiAPIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
}

func TestApplyEnvBadDuration(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "CLIENTPILOT_TOKEN_TTL" {
			return "forever", true
		}
		return "", false
	})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
