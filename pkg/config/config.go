package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
	"github.com/odvcencio/termframe/pkg/logging"
	"github.com/odvcencio/termframe/pkg/ui/compositor"
)

// Default configuration values exported for documentation and validation
const (
	DefaultFallbackWidth  = 80
	DefaultFallbackHeight = 24
	DefaultColorProfile   = "truecolor"
	DefaultHost           = "stdio"
	DefaultStore          = "accelerated"
	DefaultFrameRate      = 30
	DefaultRowScanLimit   = 0 // always pre-scan
	DefaultSGRCacheSize   = 256
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"

	maxFrameRate = 240
)

// Config represents the complete termframe configuration
type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
	Render   RenderConfig   `yaml:"render"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Theme    ThemeConfig    `yaml:"theme"`
}

// TerminalConfig describes the terminal host.
type TerminalConfig struct {
	// FallbackWidth and FallbackHeight are used when the size query fails.
	FallbackWidth  int    `yaml:"fallback_width"`
	FallbackHeight int    `yaml:"fallback_height"`
	ColorProfile   string `yaml:"color_profile"` // auto, truecolor, 256, 16, ascii
	AltScreen      bool   `yaml:"alt_screen"`
	Host           string `yaml:"host"` // stdio, tty
}

// RenderConfig tunes the compositor.
type RenderConfig struct {
	Store     string `yaml:"store"` // reference, accelerated
	FrameRate int    `yaml:"frame_rate"`
	// RowScanLimit caps the run length WriteRow pre-scans before taking the
	// per-cell path directly. 0 means no cap.
	RowScanLimit int `yaml:"row_scan_limit"`
	SGRCacheSize int `yaml:"sgr_cache_size"`
}

// LoggingConfig selects the log destination and verbosity.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// MetricsConfig toggles Prometheus collectors.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// ThemeConfig holds color specs parsed by compositor.ParseColor.
type ThemeConfig struct {
	Foreground string `yaml:"foreground"`
	Background string `yaml:"background"`
	Accent     string `yaml:"accent"`
	Muted      string `yaml:"muted"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Terminal: TerminalConfig{
			FallbackWidth:  DefaultFallbackWidth,
			FallbackHeight: DefaultFallbackHeight,
			ColorProfile:   DefaultColorProfile,
			AltScreen:      true,
			Host:           DefaultHost,
		},
		Render: RenderConfig{
			Store:        DefaultStore,
			FrameRate:    DefaultFrameRate,
			RowScanLimit: DefaultRowScanLimit,
			SGRCacheSize: DefaultSGRCacheSize,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			File:   filepath.Join("~", ".termframe", "logs", "termframe.log"),
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			Enabled: false,
			File:    filepath.Join("~", ".termframe", "logs", "trace.jsonl"),
		},
		Theme: ThemeConfig{
			Foreground: "default",
			Background: "default",
			Accent:     "#5fafff",
			Muted:      "gray",
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, then ~/.termframe/config.yaml, then ./.termframe/config.yaml,
// then TERMFRAME_* environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".termframe", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, wrapLoadError(err, userConfigPath)
		}
	}

	projectConfigPath := filepath.Join(".", ".termframe", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, wrapLoadError(err, projectConfigPath)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, wrapLoadError(err, path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func wrapLoadError(err error, path string) error {
	if apperrors.IsCode(err, apperrors.ErrCodeConfigParse) {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "loading config").WithContext("path", path)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TERMFRAME_HOST"); v != "" {
		cfg.Terminal.Host = v
	}
	if v := os.Getenv("TERMFRAME_COLOR_PROFILE"); v != "" {
		cfg.Terminal.ColorProfile = v
	} else if os.Getenv("NO_COLOR") != "" {
		cfg.Terminal.ColorProfile = "ascii"
	}
	if val, ok := envBool("TERMFRAME_ALT_SCREEN"); ok {
		cfg.Terminal.AltScreen = val
	}
	if val, ok := envInt("TERMFRAME_FALLBACK_WIDTH"); ok {
		cfg.Terminal.FallbackWidth = val
	}
	if val, ok := envInt("TERMFRAME_FALLBACK_HEIGHT"); ok {
		cfg.Terminal.FallbackHeight = val
	}

	if v := os.Getenv("TERMFRAME_STORE"); v != "" {
		cfg.Render.Store = v
	}
	if val, ok := envInt("TERMFRAME_FRAME_RATE"); ok {
		cfg.Render.FrameRate = val
	}
	if val, ok := envInt("TERMFRAME_ROW_SCAN_LIMIT"); ok {
		cfg.Render.RowScanLimit = val
	}

	if v := os.Getenv("TERMFRAME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TERMFRAME_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TERMFRAME_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	if val, ok := envBool("TERMFRAME_METRICS"); ok {
		cfg.Metrics.Enabled = val
	}
	if val, ok := envBool("TERMFRAME_TRACING"); ok {
		cfg.Tracing.Enabled = val
	}
	if v := os.Getenv("TERMFRAME_TRACE_FILE"); v != "" {
		cfg.Tracing.File = v
	}
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func envInt(key string) (int, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for values the renderer cannot use.
func (c *Config) Validate() error {
	invalid := func(field string, value any, msg string) error {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, msg).
			WithContext("field", field).
			WithContext("value", value)
	}

	if c.Terminal.FallbackWidth <= 0 || c.Terminal.FallbackHeight <= 0 {
		return invalid("terminal.fallback_width/height",
			strconv.Itoa(c.Terminal.FallbackWidth)+"x"+strconv.Itoa(c.Terminal.FallbackHeight),
			"fallback size must be positive")
	}
	if _, err := compositor.ParseProfile(c.Terminal.ColorProfile); err != nil {
		return invalid("terminal.color_profile", c.Terminal.ColorProfile, "unknown color profile")
	}
	switch c.Terminal.Host {
	case "stdio", "tty":
	default:
		return invalid("terminal.host", c.Terminal.Host, "host must be stdio or tty")
	}

	if _, err := compositor.ParseGridKind(c.Render.Store); err != nil {
		return invalid("render.store", c.Render.Store, "store must be reference or accelerated")
	}
	if c.Render.FrameRate <= 0 || c.Render.FrameRate > maxFrameRate {
		return invalid("render.frame_rate", c.Render.FrameRate, "frame rate must be between 1 and 240")
	}
	if c.Render.RowScanLimit < 0 {
		return invalid("render.row_scan_limit", c.Render.RowScanLimit, "row scan limit cannot be negative")
	}
	if c.Render.SGRCacheSize <= 0 {
		return invalid("render.sgr_cache_size", c.Render.SGRCacheSize, "SGR cache size must be positive")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", c.Logging.Level, "unknown log level")
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatText:
	default:
		return invalid("logging.format", c.Logging.Format, "log format must be json or text")
	}

	for field, spec := range map[string]string{
		"theme.foreground": c.Theme.Foreground,
		"theme.background": c.Theme.Background,
		"theme.accent":     c.Theme.Accent,
		"theme.muted":      c.Theme.Muted,
	} {
		if _, err := compositor.ParseColor(spec); err != nil {
			return invalid(field, spec, "invalid color")
		}
	}

	return nil
}

// LogFilePath returns the log file path with ~ expanded.
func (c *Config) LogFilePath() string {
	return expandHomeDir(c.Logging.File)
}

// TraceFilePath returns the trace file path with ~ expanded.
func (c *Config) TraceFilePath() string {
	return expandHomeDir(c.Tracing.File)
}
