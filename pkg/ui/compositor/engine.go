package compositor

import (
	"context"
	"log/slog"

	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
	"github.com/odvcencio/termframe/pkg/logging"
	"github.com/odvcencio/termframe/pkg/observability"
	"github.com/odvcencio/termframe/pkg/ui/backend"
)

// Options configures an Engine.
type Options struct {
	Store          GridKind
	Profile        termenv.Profile
	SGRCacheSize   int
	RowScanLimit   int // 0 means WriteRow always pre-scans
	FallbackWidth  int
	FallbackHeight int
	AltScreen      bool
	Logger         *slog.Logger
	Metrics        *observability.FrameMetrics
	Tracer         trace.Tracer
}

// Option mutates Options.
type Option func(*Options)

// WithStore selects the grid implementation.
func WithStore(kind GridKind) Option { return func(o *Options) { o.Store = kind } }

// WithColorProfile selects how colors are encoded on the wire.
func WithColorProfile(p termenv.Profile) Option { return func(o *Options) { o.Profile = p } }

// WithSGRCache bounds the cache of encoded color sequences.
func WithSGRCache(n int) Option { return func(o *Options) { o.SGRCacheSize = n } }

// WithRowScanLimit caps how long a WriteRow run may be before it skips the
// pre-scan and goes straight to per-cell writes.
func WithRowScanLimit(n int) Option { return func(o *Options) { o.RowScanLimit = n } }

// WithFallbackSize sets the size used when the host cannot report one.
func WithFallbackSize(w, h int) Option {
	return func(o *Options) { o.FallbackWidth, o.FallbackHeight = w, h }
}

// WithAltScreen makes Initialize switch to the alternate screen.
func WithAltScreen(on bool) Option { return func(o *Options) { o.AltScreen = on } }

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithMetrics records frame metrics.
func WithMetrics(m *observability.FrameMetrics) Option { return func(o *Options) { o.Metrics = m } }

// WithTracer records a span per EndFrame.
func WithTracer(t trace.Tracer) Option { return func(o *Options) { o.Tracer = t } }

func defaultOptions() Options {
	return Options{
		Store:          GridAccelerated,
		Profile:        termenv.TrueColor,
		SGRCacheSize:   defaultSGRCacheSz,
		FallbackWidth:  80,
		FallbackHeight: 24,
	}
}

// Engine is the frame compositor. Between BeginFrame and EndFrame callers
// draw into the back grid; EndFrame diffs it against the front grid (what
// the terminal shows), writes the difference and promotes back to front.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	host    backend.Host
	opts    Options
	log     *slog.Logger
	metrics *observability.FrameMetrics
	tracer  trace.Tracer

	back   Grid
	front  Grid
	zbuf   *ZBuffer
	differ *DiffEngine
	layout *Layout

	width, height int
	initialized   bool
	inFrame       bool
	frame         uint64 // completed frames
	generation    uint64 // bumped by every BeginFrame

	currentZ int
	dx, dy   int
	clip     Rect
	clipped  bool
	layers   []int
	clips    []clipState
	offsets  []offsetState

	dirty   Bounds
	painted Bounds // dirty box of the previous frame

	clearPending   bool
	invalidPending bool
	invalidMinY    int
	invalidMaxY    int

	cursorX, cursorY int
	cursorPending    bool
	cursorVisible    bool
	cursorShown      bool

	out      []byte
	rowCells []Cell
	rowRunes []rune
}

// NewEngine creates an engine drawing to host. Call Initialize before the
// first frame.
func NewEngine(host backend.Host, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Tracer == nil {
		o.Tracer = observability.NoopTracer()
	}
	if o.SGRCacheSize <= 0 {
		o.SGRCacheSize = defaultSGRCacheSz
	}
	if o.FallbackWidth <= 0 || o.FallbackHeight <= 0 {
		o.FallbackWidth, o.FallbackHeight = 80, 24
	}

	return &Engine{
		host:    host,
		opts:    o,
		log:     logging.WithCategory(o.Logger, logging.CategoryRender),
		metrics: o.Metrics,
		tracer:  o.Tracer,
		differ:  NewDiffEngine(WithProfile(o.Profile), WithSGRCacheSize(o.SGRCacheSize)),
		layout:  NewLayout(),
		dirty:   EmptyBounds(),
		painted: EmptyBounds(),
	}
}

// Initialize prepares the terminal and allocates grids at the host's size.
// Calling it again is a no-op.
func (e *Engine) Initialize() error {
	if e.initialized {
		return nil
	}
	if err := e.host.Init(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTerminalIO, "initialize terminal")
	}

	w, h := e.querySize()
	if err := e.allocate(w, h); err != nil {
		e.host.Fini()
		return err
	}
	e.initialized = true

	seq := make([]byte, 0, 64)
	if e.opts.AltScreen {
		seq = append(seq, ANSIAltScreen...)
	}
	seq = append(seq, ANSICursorHide...)
	seq = append(seq, ANSIAutoWrapOff...)
	seq = append(seq, ANSIReset...)
	seq = append(seq, ANSIClearScreen...)
	e.writeRaw(seq)

	e.log.Info("compositor initialized",
		"width", w, "height", h,
		"store", e.opts.Store.String(),
		"alt_screen", e.opts.AltScreen)
	return nil
}

// Cleanup restores the terminal. It is safe to call more than once.
func (e *Engine) Cleanup() {
	if !e.initialized {
		return
	}

	seq := make([]byte, 0, 64)
	seq = append(seq, ANSIReset...)
	seq = append(seq, ANSIAutoWrapOn...)
	seq = append(seq, ANSICursorShow...)
	if e.opts.AltScreen {
		seq = append(seq, ANSIMainScreen...)
	} else {
		seq = appendCursorTo(seq, 0, e.height-1)
		seq = append(seq, "\r\n"...)
	}
	e.writeRaw(seq)
	e.host.Fini()

	e.initialized = false
	e.inFrame = false
	e.log.Info("compositor cleaned up", "frames", e.frame)
}

func (e *Engine) allocate(w, h int) error {
	back, err := NewGrid(e.opts.Store, w, h)
	if err != nil {
		return err
	}
	front, err := NewGrid(e.opts.Store, w, h)
	if err != nil {
		return err
	}
	zbuf, err := NewZBuffer(w, h)
	if err != nil {
		return err
	}
	e.back, e.front, e.zbuf = back, front, zbuf
	e.width, e.height = w, h
	return nil
}

// querySize asks the host for its size, falling back to the configured
// size when the query fails or reports nonsense.
func (e *Engine) querySize() (int, int) {
	w, h, err := e.host.Size()
	if err == nil && w > 0 && h > 0 {
		return w, h
	}
	e.metrics.SizeFallback()
	e.log.Warn("terminal size unavailable, using fallback",
		"error", err,
		"reported_width", w, "reported_height", h,
		"fallback_width", e.opts.FallbackWidth,
		"fallback_height", e.opts.FallbackHeight)
	return e.opts.FallbackWidth, e.opts.FallbackHeight
}

// UpdateDimensions re-queries the terminal size and resizes every grid when
// it changed. It reports whether a resize happened. Calls made while a
// frame is open are ignored.
func (e *Engine) UpdateDimensions() bool {
	if !e.initialized || e.inFrame {
		return false
	}

	w, h := e.querySize()
	if w == e.width && h == e.height {
		return false
	}

	for _, g := range []Grid{e.back, e.front} {
		if err := g.Resize(w, h); err != nil {
			e.log.Error("grid resize failed", "error", err, "width", w, "height", h)
			return false
		}
	}
	if err := e.zbuf.Resize(w, h); err != nil {
		e.log.Error("zbuffer resize failed", "error", err, "width", w, "height", h)
		return false
	}

	e.log.Debug("terminal resized", "from_width", e.width, "from_height", e.height, "width", w, "height", h)
	e.width, e.height = w, h
	e.painted = e.painted.Clamp(w, h)
	e.invalidPending = false
	e.RequestClear()
	e.metrics.Resize()
	return true
}

// RequestClear makes the next EndFrame clear the terminal and repaint.
func (e *Engine) RequestClear() {
	e.clearPending = true
}

// InvalidateCachedRegion marks rows minY..maxY as unknown on the terminal.
// The next EndFrame erases them and repaints their content.
func (e *Engine) InvalidateCachedRegion(minY, maxY int) {
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	minY = max(minY, 0)
	maxY = min(maxY, e.height-1)
	if minY > maxY {
		return
	}
	if e.invalidPending {
		minY = min(minY, e.invalidMinY)
		maxY = max(maxY, e.invalidMaxY)
	}
	e.invalidMinY, e.invalidMaxY = minY, maxY
	e.invalidPending = true
}

// BeginFrame resets the back grid and scope stacks for a new frame.
// Beginning a frame while one is open discards the open frame's drawing.
func (e *Engine) BeginFrame() error {
	if !e.initialized {
		return apperrors.New(apperrors.ErrCodeNotInitialized, "BeginFrame before Initialize")
	}
	if e.inFrame {
		e.log.Debug("frame restarted before EndFrame", "frame", e.frame)
	}

	e.back.Clear()
	e.zbuf.Clear()
	e.resetScopes()
	e.dirty = EmptyBounds()
	e.generation++
	e.inFrame = true
	return nil
}

// EndFrame writes the difference between the frame just drawn and what the
// terminal shows, then promotes the frame. Calls outside a frame are
// ignored.
func (e *Engine) EndFrame() {
	if !e.inFrame {
		return
	}

	_, span := e.tracer.Start(context.Background(), "compositor.EndFrame")
	defer span.End()

	e.checkBalance()

	out := e.out[:0]
	box := e.dirty.Union(e.painted)
	fullClear := e.clearPending

	switch {
	case e.clearPending:
		out = append(out, ANSIReset...)
		out = append(out, ANSIClearScreen...)
		e.front.Clear()
		e.metrics.FullRepaint()
	case e.invalidPending:
		out = append(out, ANSIReset...)
		blank := DefaultCell()
		for y := e.invalidMinY; y <= e.invalidMaxY; y++ {
			out = appendCursorTo(out, 0, y)
			out = append(out, ANSIClearLine...)
		}
		e.front.Fill(0, e.invalidMinY, e.width, e.invalidMaxY-e.invalidMinY+1, blank)
		box = box.Union(Bounds{MinX: 0, MinY: e.invalidMinY, MaxX: e.width - 1, MaxY: e.invalidMaxY})
	}

	out = e.differ.AppendDiff(out, e.back, e.front, box)
	out = e.appendCursor(out)

	ok := true
	if len(out) > 0 {
		if err := backend.WriteAll(e.host, out); err != nil {
			ok = false
			e.metrics.WriteError()
			span.RecordError(err)
			span.SetStatus(codes.Error, "terminal write failed")
			e.log.Warn("frame write failed, scheduling full repaint",
				"error", err, "frame", e.frame, "bytes", len(out))
		}
	}
	if ok {
		e.clearPending = false
		e.invalidPending = false
	} else {
		// The terminal's contents are unknown after a partial write.
		e.clearPending = true
	}

	if err := e.front.CopyFrom(e.back); err != nil {
		e.log.Error("promote frame failed", "error", err)
		e.clearPending = true
	}

	dirtyCells := e.dirty.Cells()
	e.painted = e.dirty
	e.inFrame = false
	e.frame++
	e.out = out[:0]

	e.metrics.ObserveFrame(dirtyCells, len(out))
	span.SetAttributes(
		observability.AttrFrame.Int64(int64(e.frame)),
		observability.AttrDirtyCells.Int(dirtyCells),
		observability.AttrDiffBytes.Int(len(out)),
		observability.AttrFullClear.Bool(fullClear),
		observability.AttrWidth.Int(e.width),
		observability.AttrHeight.Int(e.height),
	)
}

// appendCursor applies pending cursor position and visibility.
func (e *Engine) appendCursor(out []byte) []byte {
	if e.cursorPending {
		out = appendCursorTo(out, e.cursorX, e.cursorY)
		e.cursorPending = false
	}
	if e.cursorVisible != e.cursorShown {
		if e.cursorVisible {
			out = append(out, ANSICursorShow...)
		} else {
			out = append(out, ANSICursorHide...)
		}
		e.cursorShown = e.cursorVisible
	}
	return out
}

// SetCursor positions the terminal cursor, in screen coordinates, after the
// next frame is written.
func (e *Engine) SetCursor(x, y int) {
	e.cursorX = min(max(x, 0), max(e.width-1, 0))
	e.cursorY = min(max(y, 0), max(e.height-1, 0))
	e.cursorPending = true
	e.flushCursorIdle()
}

// ShowCursor makes the cursor visible.
func (e *Engine) ShowCursor() {
	e.cursorVisible = true
	e.flushCursorIdle()
}

// HideCursor hides the cursor.
func (e *Engine) HideCursor() {
	e.cursorVisible = false
	e.flushCursorIdle()
}

// flushCursorIdle writes cursor changes immediately when no frame is open.
func (e *Engine) flushCursorIdle() {
	if !e.initialized || e.inFrame {
		return
	}
	if out := e.appendCursor(nil); len(out) > 0 {
		e.writeRaw(out)
	}
}

// writeRaw writes control sequences outside the diff. A failure schedules a
// full repaint.
func (e *Engine) writeRaw(p []byte) {
	if err := backend.WriteAll(e.host, p); err != nil {
		e.metrics.WriteError()
		e.log.Warn("terminal write failed", "error", err, "bytes", len(p))
		e.clearPending = true
	}
}

// Size returns the current grid dimensions.
func (e *Engine) Size() (int, int) {
	return e.width, e.height
}

// Cell returns the back grid cell at screen coordinates.
func (e *Engine) Cell(x, y int) Cell {
	if e.back == nil {
		return DefaultCell()
	}
	return e.back.Get(x, y)
}

// Back returns the grid being drawn.
func (e *Engine) Back() Grid { return e.back }

// Front returns the grid the terminal is believed to show.
func (e *Engine) Front() Grid { return e.front }

// Frame returns the number of completed frames.
func (e *Engine) Frame() uint64 { return e.frame }

// InFrame reports whether a frame is open.
func (e *Engine) InFrame() bool { return e.inFrame }

// Initialized reports whether Initialize succeeded and Cleanup has not run.
func (e *Engine) Initialized() bool { return e.initialized }

// DiffStats returns the statistics of the last frame's diff.
func (e *Engine) DiffStats() DiffStats { return e.differ.Stats() }

// Dirty returns the box of cells written in the open frame.
func (e *Engine) Dirty() Bounds { return e.dirty }
