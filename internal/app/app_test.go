package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientpilot/internal/ai"
	"clientpilot/internal/config"
)

func TestSelectGenerator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := []struct {
		name string
		cfg  config.AIConfig
		want string
		mock bool
	}{
		{"auto without keys", config.AIConfig{Provider: "auto"}, "mock", true},
		{"auto prefers gemini", config.AIConfig{Provider: "auto", GeminiAPIKey: "g", OpenAIAPIKey: "o"}, "gemini", false},
		{"auto falls back to openai", config.AIConfig{Provider: "auto", OpenAIAPIKey: "o"}, "openai", false},
		{"named without key", config.AIConfig{Provider: "openai"}, "mock", true},
		{"explicit mock ignores keys", config.AIConfig{Provider: "mock", GeminiAPIKey: "g"}, "mock", true},
		{"ollama needs no key", config.AIConfig{Provider: "ollama"}, "ollama", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen, provider := SelectGenerator(tc.cfg, logger)
			assert.Equal(t, tc.want, provider)
			assert.Equal(t, tc.mock, gen == nil)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(config.LogConfig{Level: "loud", Format: "json"}, &buf)
	assert.Error(t, err)
}

func TestOpenMigratesAndUsesMockWithoutKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "cp.db")
	cfg.AI.Provider = "auto"
	cfg.AI.GeminiAPIKey = ""
	cfg.AI.OpenAIAPIKey = ""

	a, err := Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, ai.Mock{}, a.Backend)
	users, err := a.Auth.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}
