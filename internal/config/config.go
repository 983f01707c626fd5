// Package config loads headkit's layered configuration: embedded defaults,
// then an optional TOML file, then HEADKIT_ environment variables, then
// explicit overrides (typically CLI flags).
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/headkit/internal/engine"
	"github.com/roach88/headkit/internal/ir"
	"github.com/roach88/headkit/internal/template"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HEADKIT_"

// Config is the merged configuration.
type Config struct {
	Engine EngineConfig `koanf:"engine"`
	Store  StoreConfig  `koanf:"store"`
	Log    LogConfig    `koanf:"log"`
}

// EngineConfig configures resolution passes.
type EngineConfig struct {
	Separator         string        `koanf:"separator"`
	RenderContext     string        `koanf:"render_context"`
	AsyncTimeout      time.Duration `koanf:"async_timeout"`
	StatePayload      bool          `koanf:"state_payload"`
	TemplateCacheSize int           `koanf:"template_cache_size"`
	TemplateCacheTTL  time.Duration `koanf:"template_cache_ttl"`
}

// StoreConfig configures the snapshot store.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load merges the configuration layers. path may be empty; a non-empty path
// must exist. overrides are dotted keys (e.g. "engine.render_context").
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// 3. Environment: HEADKIT_ENGINE_ASYNC_TIMEOUT -> engine.async_timeout
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Explicit overrides
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := ir.ParseRenderContext(c.Engine.RenderContext); err != nil {
		return fmt.Errorf("engine.render_context: %w", err)
	}
	if c.Engine.AsyncTimeout < 0 {
		return fmt.Errorf("engine.async_timeout: must not be negative, got %s", c.Engine.AsyncTimeout)
	}
	if c.Engine.TemplateCacheSize < 0 {
		return fmt.Errorf("engine.template_cache_size: must not be negative, got %d", c.Engine.TemplateCacheSize)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// RenderContext returns the validated default render context.
func (c *Config) RenderContext() ir.RenderContext {
	return ir.RenderContext(c.Engine.RenderContext)
}

// EngineOptions translates the engine section into Head options.
func (c *Config) EngineOptions(logger *slog.Logger) []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithSeparator(c.Engine.Separator),
		engine.WithAsyncTimeout(c.Engine.AsyncTimeout),
		engine.WithSubstitutor(template.NewSubstitutor(c.Engine.TemplateCacheSize, c.Engine.TemplateCacheTTL)),
	}
	if c.Engine.StatePayload {
		opts = append(opts, engine.WithStatePayload())
	}
	return opts
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the configured slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
