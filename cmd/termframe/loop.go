package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/odvcencio/termframe/pkg/config"
	"github.com/odvcencio/termframe/pkg/logging"
	"github.com/odvcencio/termframe/pkg/ui/backend"
	"github.com/odvcencio/termframe/pkg/ui/compositor"
)

// renderLoop owns the engine. Watchers run on their own goroutines and
// hand events over channels; only run touches the engine.
type renderLoop struct {
	engine *compositor.Engine
	log    *slog.Logger
	cfg    *config.Config
	frames int

	resize  chan struct{}
	input   chan byte
	configs chan *config.Config
}

// notify performs a non-blocking send; one pending resize is enough.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// watchResize forwards SIGWINCH and host resize callbacks until ctx ends.
func (l *renderLoop) watchResize(ctx context.Context, host backend.Host) error {
	if rn, ok := host.(backend.ResizeNotifier); ok {
		rn.NotifyResize(func() { notify(l.resize) })
	}

	sigCh := make(chan os.Signal, 1)
	registerTerminalResize(sigCh)
	defer unregisterTerminalResize(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			notify(l.resize)
		}
	}
}

// watchConfig forwards valid config reloads. Invalid files are logged and
// the running config is kept.
func (l *renderLoop) watchConfig(ctx context.Context, path string) error {
	log := logging.WithCategory(l.log, logging.CategoryConfig)
	updates, err := config.Watch(ctx, path)
	if err != nil {
		log.Warn("config watch unavailable", "error", err, "path", path)
		return nil
	}
	for u := range updates {
		if u.Err != nil {
			log.Warn("config reload rejected", "error", u.Err)
			continue
		}
		select {
		case l.configs <- u.Config:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// readInput forwards raw input bytes until the reader fails.
func (l *renderLoop) readInput(in backend.InputReader) {
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		for _, b := range buf[:n] {
			select {
			case l.input <- b:
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

// run draws frames at the configured rate until ctx ends or the user quits.
// A non-zero frames value caps the number of frames drawn.
func (l *renderLoop) run(ctx context.Context) error {
	limiter := rate.NewLimiter(frameLimit(l.cfg.Render.FrameRate), 1)
	dash := newDashboard(newPalette(l.cfg.Theme), time.Now())

	for n := 0; l.frames == 0 || n < l.frames; n++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		if quit := l.drainEvents(limiter, dash); quit {
			return nil
		}

		if err := l.engine.BeginFrame(); err != nil {
			return err
		}
		dash.draw(l.engine, time.Now())
		l.engine.EndFrame()
	}
	return nil
}

// drainEvents applies everything that arrived since the last frame. It
// reports whether the user asked to quit.
func (l *renderLoop) drainEvents(limiter *rate.Limiter, dash *dashboard) bool {
	for {
		select {
		case <-l.resize:
			if l.engine.UpdateDimensions() {
				w, h := l.engine.Size()
				l.log.Debug("resize applied", "width", w, "height", h)
			}
		case b := <-l.input:
			switch b {
			case 'q', 0x03, 0x04:
				return true
			case 'r':
				l.engine.RequestClear()
			}
		case cfg := <-l.configs:
			l.applyConfig(cfg, limiter, dash)
		default:
			return false
		}
	}
}

// applyConfig applies the settings that can change while running. Host,
// store and screen mode need a restart.
func (l *renderLoop) applyConfig(cfg *config.Config, limiter *rate.Limiter, dash *dashboard) {
	if cfg.Render.FrameRate != l.cfg.Render.FrameRate {
		limiter.SetLimit(frameLimit(cfg.Render.FrameRate))
	}
	if cfg.Theme != l.cfg.Theme {
		dash.pal = newPalette(cfg.Theme)
		l.engine.RequestClear()
	}
	if cfg.Render.Store != l.cfg.Render.Store || cfg.Terminal.Host != l.cfg.Terminal.Host ||
		cfg.Terminal.AltScreen != l.cfg.Terminal.AltScreen {
		l.log.Info("config change needs a restart to take effect")
	}
	l.log.Info("config reloaded", "frame_rate", cfg.Render.FrameRate)
	l.cfg = cfg
}
