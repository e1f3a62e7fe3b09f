package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Strings override when non-empty;
// numbers and bools override only when the YAML actually set them, so an
// explicit 0 or false is honored.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if fieldSet(raw, "terminal", "fallback_width") {
		base.Terminal.FallbackWidth = override.Terminal.FallbackWidth
	}
	if fieldSet(raw, "terminal", "fallback_height") {
		base.Terminal.FallbackHeight = override.Terminal.FallbackHeight
	}
	if override.Terminal.ColorProfile != "" {
		base.Terminal.ColorProfile = override.Terminal.ColorProfile
	}
	if fieldSet(raw, "terminal", "alt_screen") {
		base.Terminal.AltScreen = override.Terminal.AltScreen
	}
	if override.Terminal.Host != "" {
		base.Terminal.Host = override.Terminal.Host
	}

	if override.Render.Store != "" {
		base.Render.Store = override.Render.Store
	}
	if fieldSet(raw, "render", "frame_rate") {
		base.Render.FrameRate = override.Render.FrameRate
	}
	if fieldSet(raw, "render", "row_scan_limit") {
		base.Render.RowScanLimit = override.Render.RowScanLimit
	}
	if fieldSet(raw, "render", "sgr_cache_size") {
		base.Render.SGRCacheSize = override.Render.SGRCacheSize
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if fieldSet(raw, "metrics", "enabled") {
		base.Metrics.Enabled = override.Metrics.Enabled
	}
	if fieldSet(raw, "tracing", "enabled") {
		base.Tracing.Enabled = override.Tracing.Enabled
	}
	if override.Tracing.File != "" {
		base.Tracing.File = override.Tracing.File
	}

	if override.Theme.Foreground != "" {
		base.Theme.Foreground = override.Theme.Foreground
	}
	if override.Theme.Background != "" {
		base.Theme.Background = override.Theme.Background
	}
	if override.Theme.Accent != "" {
		base.Theme.Accent = override.Theme.Accent
	}
	if override.Theme.Muted != "" {
		base.Theme.Muted = override.Theme.Muted
	}
}

// fieldSet reports whether the raw YAML document contains path.
func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
