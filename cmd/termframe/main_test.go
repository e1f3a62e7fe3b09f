package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/odvcencio/termframe/pkg/config"
	"github.com/odvcencio/termframe/pkg/logging"
	"github.com/odvcencio/termframe/pkg/ui/backend/sim"
	"github.com/odvcencio/termframe/pkg/ui/compositor"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TERMFRAME_HOST", "TERMFRAME_COLOR_PROFILE", "TERMFRAME_ALT_SCREEN",
		"TERMFRAME_FALLBACK_WIDTH", "TERMFRAME_FALLBACK_HEIGHT", "TERMFRAME_STORE",
		"TERMFRAME_FRAME_RATE", "TERMFRAME_ROW_SCAN_LIMIT", "TERMFRAME_LOG_LEVEL",
		"TERMFRAME_LOG_FORMAT", "TERMFRAME_LOG_FILE", "TERMFRAME_METRICS",
		"TERMFRAME_TRACING", "TERMFRAME_TRACE_FILE", "NO_COLOR",
	} {
		t.Setenv(key, "")
	}
}

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{"-config", "c.yaml", "-frames", "5", "-store", "reference", "-host", "tty", "-log-level", "debug"}, &stderr)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.configPath != "c.yaml" || opts.frames != 5 || opts.store != "reference" || opts.host != "tty" || opts.logLevel != "debug" {
		t.Errorf("opts = %+v", opts)
	}

	if _, err := parseFlags([]string{"-frames", "-1"}, &stderr); err == nil {
		t.Error("negative frames accepted")
	}
	if _, err := parseFlags([]string{"extra"}, &stderr); err == nil {
		t.Error("positional argument accepted")
	}
	if _, err := parseFlags([]string{"-bogus"}, &stderr); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"80x24", 80, 24, false},
		{"120X40", 120, 40, false},
		{"80", 0, 0, true},
		{"ax24", 0, 0, true},
		{"80xb", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseSize(tt.in)
		if (err != nil) != tt.wantErr || w != tt.w || h != tt.h {
			t.Errorf("parseSize(%q) = %d, %d, %v", tt.in, w, h, err)
		}
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "termframe "+version) {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_Snapshot(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, "terminal:\n  color_profile: truecolor\ntheme:\n  accent: \"#00ff00\"\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", path, "-store", "reference", "-snapshot", "60x16"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, compositor.ANSIClearScreen+compositor.ANSICursorHome) {
		t.Errorf("snapshot does not start with a clear: %q", out[:min(len(out), 20)])
	}
	for _, want := range []string{"frame 0", "60x16", "q quit", "layered panel"} {
		if !strings.Contains(out, want) {
			t.Errorf("snapshot missing %q", want)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer

	if code := run([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr); code != 2 {
		t.Errorf("missing config exit code = %d", code)
	}

	path := writeTestConfig(t, "render:\n  frame_rate: 5\n")
	if code := run([]string{"-config", path, "-store", "btree"}, &stdout, &stderr); code != 2 {
		t.Errorf("invalid store exit code = %d", code)
	}
	if code := run([]string{"-config", path, "-snapshot", "wide"}, &stdout, &stderr); code != 1 {
		t.Errorf("bad snapshot size exit code = %d", code)
	}
}

func TestDashboard_DrawsConvergedFrames(t *testing.T) {
	host := sim.New(70, 20)
	e := compositor.NewEngine(host)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	pal := newPalette(config.DefaultConfig().Theme)
	start := time.Unix(0, 0)
	dash := newDashboard(pal, start)

	for i := 0; i < 40; i++ {
		if i == 20 {
			host.Resize(50, 14)
			e.UpdateDimensions()
		}
		if err := e.BeginFrame(); err != nil {
			t.Fatal(err)
		}
		dash.draw(e, start.Add(time.Duration(i)*time.Second))
		e.EndFrame()
	}

	if !host.ContainsText("frame 39") {
		t.Errorf("stat column missing:\n%s", host.Capture())
	}
	if !host.ContainsText("50x14") {
		t.Errorf("size not updated after resize:\n%s", host.Capture())
	}
	if len(dash.samples) > 50-4 {
		t.Errorf("samples not trimmed to chart width: %d", len(dash.samples))
	}
}

func TestDashboard_TooSmall(t *testing.T) {
	out, err := compositor.RenderToString(10, 3, func(e *compositor.Engine) {
		newDashboard(palette{}, time.Now()).draw(e, time.Now())
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "terminal t") {
		t.Errorf("out = %q", out)
	}
}

func newTestLoop(t *testing.T, frames int) (*renderLoop, *sim.Host) {
	t.Helper()
	host := sim.New(60, 16)
	e := compositor.NewEngine(host)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Render.FrameRate = 240
	return &renderLoop{
		engine:  e,
		log:     logging.Discard(),
		cfg:     cfg,
		frames:  frames,
		resize:  make(chan struct{}, 1),
		input:   make(chan byte, 16),
		configs: make(chan *config.Config, 1),
	}, host
}

func TestRenderLoop_FrameBudget(t *testing.T) {
	loop, host := newTestLoop(t, 3)
	if err := loop.run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if loop.engine.Frame() != 3 {
		t.Errorf("frames = %d, want 3", loop.engine.Frame())
	}
	if !host.ContainsText("frame 2") {
		t.Errorf("last frame not shown:\n%s", host.Capture())
	}
}

func TestRenderLoop_QuitKey(t *testing.T) {
	loop, _ := newTestLoop(t, 0)
	loop.input <- 'q'
	done := make(chan error, 1)
	go func() { done <- loop.run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on q")
	}
	if loop.engine.Frame() != 0 {
		t.Errorf("frames drawn before quit = %d", loop.engine.Frame())
	}
}

func TestRenderLoop_ContextCancel(t *testing.T) {
	loop, _ := newTestLoop(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loop.run(ctx); err != nil {
		t.Fatalf("run after cancel = %v", err)
	}
}

func TestRenderLoop_DrainEvents(t *testing.T) {
	loop, host := newTestLoop(t, 0)
	limiter := rate.NewLimiter(frameLimit(30), 1)
	dash := newDashboard(palette{}, time.Now())

	host.Resize(40, 12)
	loop.resize <- struct{}{}
	loop.input <- 'x'

	next := config.DefaultConfig()
	next.Render.FrameRate = 5
	next.Theme.Accent = "#ff0000"
	loop.configs <- next

	if quit := loop.drainEvents(limiter, dash); quit {
		t.Fatal("unexpected quit")
	}
	if w, h := loop.engine.Size(); w != 40 || h != 12 {
		t.Errorf("size = %dx%d, want 40x12", w, h)
	}
	if limiter.Limit() != 5 {
		t.Errorf("limit = %v, want 5", limiter.Limit())
	}
	if dash.pal.accent != compositor.ColorRed {
		t.Errorf("accent = %v", dash.pal.accent)
	}
	if loop.cfg != next {
		t.Error("config not swapped")
	}

	loop.input <- 0x03
	if !loop.drainEvents(limiter, dash) {
		t.Error("ctrl-c did not quit")
	}
}

func TestFrameLimit(t *testing.T) {
	if frameLimit(0) != 1 || frameLimit(60) != 60 {
		t.Errorf("frameLimit = %v, %v", frameLimit(0), frameLimit(60))
	}
}
