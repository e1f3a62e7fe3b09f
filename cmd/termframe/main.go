// Command termframe runs a live dashboard on the compositor, or prints one
// frame as ANSI text with -snapshot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/odvcencio/termframe/pkg/config"
	apperrors "github.com/odvcencio/termframe/pkg/errors"
	"github.com/odvcencio/termframe/pkg/logging"
	"github.com/odvcencio/termframe/pkg/observability"
	"github.com/odvcencio/termframe/pkg/ui/backend"
	"github.com/odvcencio/termframe/pkg/ui/backend/stdio"
	"github.com/odvcencio/termframe/pkg/ui/backend/tty"
	"github.com/odvcencio/termframe/pkg/ui/compositor"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

type cliOptions struct {
	configPath string
	logLevel   string
	store      string
	host       string
	frames     int
	snapshot   string
	version    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("termframe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to config file (default: ~/.termframe/config.yaml)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.store, "store", "", "cell store: reference or accelerated")
	fs.StringVar(&opts.host, "host", "", "terminal host: stdio or tty")
	fs.IntVar(&opts.frames, "frames", 0, "stop after this many frames (0 runs until interrupted)")
	fs.StringVar(&opts.snapshot, "snapshot", "", "print one frame of the given size (WxH) and exit")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.frames < 0 {
		return opts, fmt.Errorf("-frames must not be negative")
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

// parseSize parses "WxH".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: bad width: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: bad height: %w", s, err)
	}
	return w, h, nil
}

func loadConfig(opts cliOptions) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.store != "" {
		cfg.Render.Store = opts.store
	}
	if opts.host != "" {
		cfg.Terminal.Host = opts.host
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// engineOptions maps config onto compositor options.
func engineOptions(cfg *config.Config) ([]compositor.Option, error) {
	kind, err := compositor.ParseGridKind(cfg.Render.Store)
	if err != nil {
		return nil, err
	}
	profile, err := compositor.ParseProfile(cfg.Terminal.ColorProfile)
	if err != nil {
		return nil, err
	}
	return []compositor.Option{
		compositor.WithStore(kind),
		compositor.WithColorProfile(profile),
		compositor.WithSGRCache(cfg.Render.SGRCacheSize),
		compositor.WithRowScanLimit(cfg.Render.RowScanLimit),
		compositor.WithFallbackSize(cfg.Terminal.FallbackWidth, cfg.Terminal.FallbackHeight),
		compositor.WithAltScreen(cfg.Terminal.AltScreen),
	}, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "termframe %s (commit %s, built %s)\n", version, commit, buildDate)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 2
	}

	if opts.snapshot != "" {
		if err := writeSnapshot(stdout, cfg, opts.snapshot); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := runLive(cfg, opts); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if apperrors.IsCode(err, apperrors.ErrCodeTerminalIO) {
			return 3
		}
		return 1
	}
	return 0
}

func writeSnapshot(w io.Writer, cfg *config.Config, size string) error {
	width, height, err := parseSize(size)
	if err != nil {
		return err
	}
	engOpts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	start := time.Now()
	dash := newDashboard(newPalette(cfg.Theme), start)
	out, err := compositor.RenderToString(width, height, func(e *compositor.Engine) {
		dash.draw(e, start)
	}, engOpts...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out+"\n")
	return err
}

func newHost(name string) backend.Host {
	if name == "tty" {
		return tty.New()
	}
	return stdio.New()
}

func openLogger(cfg *config.Config) (*slog.Logger, func()) {
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logOpts := logging.Options{
		Level:     level,
		Format:    logging.Format(cfg.Logging.Format),
		Component: "termframe",
	}
	logger, closer, err := logging.Open(cfg.LogFilePath(), logOpts)
	if err != nil {
		// The terminal belongs to the renderer; without a file there is
		// nowhere safe to log.
		return logging.Discard(), func() {}
	}
	return logger, func() { _ = closer.Close() }
}

func openTracer(cfg *config.Config, logger *slog.Logger) (trace.Tracer, func()) {
	if !cfg.Tracing.Enabled {
		return observability.NoopTracer(), func() {}
	}
	path := cfg.TraceFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("tracing disabled", "error", err, "path", path)
		return observability.NoopTracer(), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Warn("tracing disabled", "error", err, "path", path)
		return observability.NoopTracer(), func() {}
	}
	tp, err := observability.NewTracerProvider(f, "termframe", version)
	if err != nil {
		_ = f.Close()
		logger.Warn("tracing disabled", "error", err)
		return observability.NoopTracer(), func() {}
	}
	return tp.Tracer(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
		_ = f.Close()
	}
}

func runLive(cfg *config.Config, opts cliOptions) error {
	logger, closeLog := openLogger(cfg)
	defer closeLog()

	registry := prometheus.NewRegistry()
	var metrics *observability.FrameMetrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewFrameMetrics(registry)
	}
	defer logMetricsSummary(logger, registry)

	tracer, stopTracing := openTracer(cfg, logger)
	defer stopTracing()

	engOpts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	engOpts = append(engOpts,
		compositor.WithLogger(logger),
		compositor.WithMetrics(metrics),
		compositor.WithTracer(tracer),
	)

	host := newHost(cfg.Terminal.Host)
	engine := compositor.NewEngine(host, engOpts...)
	if err := engine.Initialize(); err != nil {
		return err
	}
	defer engine.Cleanup()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	loop := &renderLoop{
		engine:  engine,
		log:     logger,
		cfg:     cfg,
		frames:  opts.frames,
		resize:  make(chan struct{}, 1),
		input:   make(chan byte, 16),
		configs: make(chan *config.Config, 1),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.watchResize(gctx, host) })
	if path := opts.configPath; path != "" {
		g.Go(func() error { return loop.watchConfig(gctx, path) })
	}
	if in, ok := host.(backend.InputReader); ok {
		// Reads block until input arrives, so the reader is not part of
		// the group; it exits with the process.
		go loop.readInput(in)
	}
	g.Go(func() error {
		defer cancel()
		return loop.run(gctx)
	})

	return g.Wait()
}

// logMetricsSummary writes the final counter values to the log.
func logMetricsSummary(logger *slog.Logger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logger.Warn("gather metrics failed", "error", err)
		return
	}
	attrs := make([]any, 0, 2*len(families))
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		attrs = append(attrs, mf.GetName(), total)
	}
	logger.Info("render metrics", attrs...)
}

// frameLimit converts a configured frame rate to a limiter rate.
func frameLimit(fps int) rate.Limit {
	return rate.Limit(max(fps, 1))
}
