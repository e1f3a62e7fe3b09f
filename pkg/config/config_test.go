package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
)

// clearEnv neutralizes environment overrides for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TERMFRAME_HOST", "TERMFRAME_COLOR_PROFILE", "NO_COLOR", "TERMFRAME_ALT_SCREEN",
		"TERMFRAME_FALLBACK_WIDTH", "TERMFRAME_FALLBACK_HEIGHT", "TERMFRAME_STORE",
		"TERMFRAME_FRAME_RATE", "TERMFRAME_ROW_SCAN_LIMIT", "TERMFRAME_LOG_LEVEL",
		"TERMFRAME_LOG_FORMAT", "TERMFRAME_LOG_FILE", "TERMFRAME_METRICS",
		"TERMFRAME_TRACING", "TERMFRAME_TRACE_FILE",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultFallbackWidth, cfg.Terminal.FallbackWidth)
	assert.Equal(t, DefaultFallbackHeight, cfg.Terminal.FallbackHeight)
	assert.Equal(t, "truecolor", cfg.Terminal.ColorProfile)
	assert.True(t, cfg.Terminal.AltScreen)
	assert.Equal(t, "accelerated", cfg.Render.Store)
	assert.Equal(t, 30, cfg.Render.FrameRate)
	assert.Equal(t, 0, cfg.Render.RowScanLimit)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_Merge(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), `
terminal:
  alt_screen: false
  color_profile: "256"
render:
  store: reference
  row_scan_limit: 64
logging:
  level: debug
metrics:
  enabled: false
theme:
  accent: "#ff8800"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.False(t, cfg.Terminal.AltScreen, "explicit false must override the default")
	assert.Equal(t, "256", cfg.Terminal.ColorProfile)
	assert.Equal(t, "reference", cfg.Render.Store)
	assert.Equal(t, 64, cfg.Render.RowScanLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "#ff8800", cfg.Theme.Accent)

	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultFrameRate, cfg.Render.FrameRate)
	assert.Equal(t, DefaultFallbackWidth, cfg.Terminal.FallbackWidth)
	assert.Equal(t, "gray", cfg.Theme.Muted)
}

func TestLoadFromPath_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigLoad))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "render: [unterminated\n")
		_, err := LoadFromPath(path)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigParse))
	})

	t.Run("invalid value", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "render:\n  frame_rate: 0\n")
		_, err := LoadFromPath(path)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
		assert.Contains(t, err.Error(), "render.frame_rate")
	})
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TERMFRAME_HOST", "tty")
	t.Setenv("TERMFRAME_ALT_SCREEN", "off")
	t.Setenv("TERMFRAME_FALLBACK_WIDTH", "132")
	t.Setenv("TERMFRAME_FRAME_RATE", "not-a-number")
	t.Setenv("TERMFRAME_LOG_FORMAT", "text")
	t.Setenv("TERMFRAME_TRACING", "1")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "tty", cfg.Terminal.Host)
	assert.False(t, cfg.Terminal.AltScreen)
	assert.Equal(t, 132, cfg.Terminal.FallbackWidth)
	assert.Equal(t, DefaultFrameRate, cfg.Render.FrameRate, "unparsable ints are ignored")
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestEnvOverrides_NoColor(t *testing.T) {
	clearEnv(t)
	t.Setenv("NO_COLOR", "1")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, "ascii", cfg.Terminal.ColorProfile)

	t.Setenv("TERMFRAME_COLOR_PROFILE", "16")
	cfg = DefaultConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, "16", cfg.Terminal.ColorProfile, "explicit profile wins over NO_COLOR")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero fallback", func(c *Config) { c.Terminal.FallbackHeight = 0 }, "terminal.fallback_width/height"},
		{"bad profile", func(c *Config) { c.Terminal.ColorProfile = "sepia" }, "terminal.color_profile"},
		{"bad host", func(c *Config) { c.Terminal.Host = "serial" }, "terminal.host"},
		{"bad store", func(c *Config) { c.Render.Store = "btree" }, "render.store"},
		{"frame rate too high", func(c *Config) { c.Render.FrameRate = 1000 }, "render.frame_rate"},
		{"negative scan limit", func(c *Config) { c.Render.RowScanLimit = -1 }, "render.row_scan_limit"},
		{"zero cache", func(c *Config) { c.Render.SGRCacheSize = 0 }, "render.sgr_cache_size"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad color", func(c *Config) { c.Theme.Accent = "#zzz" }, "theme.accent"},
		{"unknown color name", func(c *Config) { c.Theme.Muted = "blurple" }, "theme.muted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestFieldSet(t *testing.T) {
	raw := map[string]any{
		"render": map[string]any{"frame_rate": 0},
		"flat":   1,
	}
	assert.True(t, fieldSet(raw, "render", "frame_rate"))
	assert.False(t, fieldSet(raw, "render", "store"))
	assert.False(t, fieldSet(raw, "flat", "nested"))
	assert.False(t, fieldSet(nil, "render"))
	assert.False(t, fieldSet(raw))
}

func TestExpandHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs", "x.log"), expandHomeDir("~/logs/x.log"))
	assert.Equal(t, home, expandHomeDir("~"))
	assert.Equal(t, "/var/log/x.log", expandHomeDir("/var/log/x.log"))
	assert.Equal(t, "", expandHomeDir("  "))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "render:\n  frame_rate: 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := Watch(ctx, path)
	require.NoError(t, err)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("render:\n  frame_rate: 60\n"), 0o644))

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		require.NotNil(t, u.Config)
		assert.Equal(t, 60, u.Config.Render.FrameRate)
	case <-time.After(5 * time.Second):
		t.Fatal("no update after config write")
	}

	cancel()
	for range updates {
	}
}

func TestWatch_ReportsInvalidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), "render:\n  frame_rate: 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := Watch(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("render:\n  store: btree\n"), 0o644))

	select {
	case u := <-updates:
		require.Error(t, u.Err)
		assert.Nil(t, u.Config)
		assert.True(t, apperrors.IsCode(u.Err, apperrors.ErrCodeConfigInvalid))
	case <-time.After(5 * time.Second):
		t.Fatal("no update after config write")
	}
}
