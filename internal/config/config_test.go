package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/headkit/internal/engine"
	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/ir"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "headkit.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "|", cfg.Engine.Separator)
	assert.Equal(t, ir.RenderServer, cfg.RenderContext())
	assert.Zero(t, cfg.Engine.AsyncTimeout)
	assert.False(t, cfg.Engine.StatePayload)
	assert.Equal(t, 1024, cfg.Engine.TemplateCacheSize)
	assert.Equal(t, 10*time.Minute, cfg.Engine.TemplateCacheTTL)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[engine]
render_context = "client"
async_timeout = "250ms"
state_payload = true

[store]
path = "/var/lib/headkit.db"
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ir.RenderClient, cfg.RenderContext())
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.AsyncTimeout)
	assert.True(t, cfg.Engine.StatePayload)
	assert.Equal(t, "/var/lib/headkit.db", cfg.Store.Path)
	assert.Equal(t, "|", cfg.Engine.Separator, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[engine]
async_timeout = "1s"
`)
	t.Setenv("HEADKIT_ENGINE_ASYNC_TIMEOUT", "2s")
	t.Setenv("HEADKIT_LOG_LEVEL", "debug")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Engine.AsyncTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Setenv("HEADKIT_ENGINE_RENDER_CONTEXT", "client")

	cfg, err := Load("", map[string]any{
		"engine.render_context": "server",
		"store.path":            "head.db",
	})
	require.NoError(t, err)
	assert.Equal(t, ir.RenderServer, cfg.RenderContext())
	assert.Equal(t, "head.db", cfg.Store.Path)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		path      func(t *testing.T) string
		overrides map[string]any
		contains  string
	}{
		{
			name:     "missing file",
			path:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.toml") },
			contains: "config file",
		},
		{
			name:     "malformed toml",
			path:     func(t *testing.T) string { return writeConfig(t, "[engine\n") },
			contains: "failed to load config",
		},
		{
			name:      "bad render context",
			overrides: map[string]any{"engine.render_context": "edge"},
			contains:  "engine.render_context",
		},
		{
			name:      "negative timeout",
			overrides: map[string]any{"engine.async_timeout": "-1s"},
			contains:  "engine.async_timeout",
		},
		{
			name:      "bad level",
			overrides: map[string]any{"log.level": "loud"},
			contains:  "log.level",
		},
		{
			name:      "bad format",
			overrides: map[string]any{"log.format": "xml"},
			contains:  "log.format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.path != nil {
				path = tt.path(t)
			}
			_, err := Load(path, tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	level, err := LogConfig{Level: "DEBUG"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestEngineOptions(t *testing.T) {
	cfg, err := Load("", map[string]any{"engine.separator": "·"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := engine.New(cfg.EngineOptions(logger)...)
	h.Push(ir.Obj(
		ir.O("title", ir.String("Home")),
		ir.O("titleTemplate", ir.String("%s %separator Site")),
	), entry.Options{})

	tags, err := h.ResolveTags(context.Background(), cfg.RenderContext())
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "Home · Site", tags[0].TextContent)
}
