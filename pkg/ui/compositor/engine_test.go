package compositor

import (
	"errors"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
	"github.com/odvcencio/termframe/pkg/observability"
	"github.com/odvcencio/termframe/pkg/ui/backend/sim"
)

// newTestEngine returns an initialized engine on a simulated terminal with
// the initialization output discarded.
func newTestEngine(t *testing.T, w, h int, opts ...Option) (*Engine, *sim.Host) {
	t.Helper()
	host := sim.New(w, h)
	e := NewEngine(host, opts...)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	host.ResetOutput()
	return e, host
}

func mustBegin(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
}

// simColor is the color a terminal shows for c once it is encoded for
// profile p.
func simColor(p termenv.Profile, c Color) sim.Color {
	v, ok := c.Packed()
	switch {
	case !ok || p == termenv.Ascii:
		return sim.Color{}
	case p == termenv.TrueColor:
		return sim.Color{RGB: v, Valid: true}
	}
	r, g, b := termenv.ConvertToRGB(p.Convert(termenv.RGBColor(c.String()))).RGB255()
	return sim.Color{RGB: uint32(r)<<16 | uint32(g)<<8 | uint32(b), Valid: true}
}

func simCell(p termenv.Profile, c Cell) sim.Cell {
	r := printable(c.Rune)
	if c.IsContinuation() {
		r = 0
	}
	return sim.Cell{Rune: r, FG: simColor(p, c.FG), BG: simColor(p, c.BG), Attrs: uint8(c.Attrs)}
}

// assertConverged checks that the simulated terminal shows exactly what the
// engine believes it shows.
func assertConverged(t *testing.T, e *Engine, h *sim.Host) {
	t.Helper()
	w, hgt := e.Size()
	for y := 0; y < hgt; y++ {
		for x := 0; x < w; x++ {
			want := simCell(e.opts.Profile, e.Front().Get(x, y))
			if got := h.CellAt(x, y); got != want {
				t.Fatalf("cell (%d,%d): terminal has %+v, front has %+v\nscreen:\n%s", x, y, got, want, h.Capture())
			}
		}
	}
}

func TestEngine_ScenarioA(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)

	mustBegin(t, e)
	e.WriteAt(0, 0, "AB", ColorRed, ColorBlack)
	e.EndFrame()

	want := "\x1b[1;1H\x1b[38;2;255;0;0m\x1b[48;2;0;0;0mAB\x1b[0m"
	if got := string(h.Output()); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if h.Writes() != 1 {
		t.Errorf("writes = %d, want 1", h.Writes())
	}
	assertConverged(t, e, h)
}

func TestEngine_IdenticalFrameWritesNothing(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)

	draw := func() {
		mustBegin(t, e)
		e.WriteAt(1, 1, "same", ColorGreen, ColorDefault)
		e.EndFrame()
	}
	draw()
	h.ResetOutput()
	draw()

	if h.Writes() != 0 {
		t.Errorf("second identical frame wrote %q", h.Output())
	}
	if e.Frame() != 2 {
		t.Errorf("Frame() = %d, want 2", e.Frame())
	}
}

func TestEngine_StaleContentErased(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)

	mustBegin(t, e)
	e.WriteText(0, 0, "Hello")
	e.EndFrame()
	h.ResetOutput()

	mustBegin(t, e)
	e.EndFrame()

	if got, want := string(h.Output()), "\x1b[1;1H     "; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if h.ContainsText("Hello") {
		t.Errorf("stale text still on screen:\n%s", h.Capture())
	}
	assertConverged(t, e, h)
}

func TestEngine_ScenarioB_Occlusion(t *testing.T) {
	tests := []struct {
		name  string
		order func(e *Engine)
	}{
		{"low then high", func(e *Engine) {
			e.WriteText(2, 1, "X")
			e.WithLayer(5, func() { e.WriteText(2, 1, "Y") })
		}},
		{"high then low", func(e *Engine) {
			e.WithLayer(5, func() { e.WriteText(2, 1, "Y") })
			e.WriteText(2, 1, "X")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, h := newTestEngine(t, 10, 3)
			mustBegin(t, e)
			tt.order(e)
			e.EndFrame()

			if got := e.Cell(2, 1).Rune; got != 'Y' {
				t.Errorf("cell rune = %q, want 'Y'", got)
			}
			if got := h.CellAt(2, 1).Rune; got != 'Y' {
				t.Errorf("terminal rune = %q, want 'Y'", got)
			}
		})
	}
}

func TestEngine_EqualDepthLaterWins(t *testing.T) {
	e, _ := newTestEngine(t, 5, 1)
	mustBegin(t, e)
	e.WriteText(0, 0, "a")
	e.WriteText(0, 0, "b")
	e.BeginLayer(-1)
	e.WriteText(0, 0, "c")
	e.EndLayer()
	e.EndFrame()

	if got := e.Cell(0, 0).Rune; got != 'b' {
		t.Errorf("rune = %q, want 'b'", got)
	}
}

func TestEngine_ScenarioC_Clip(t *testing.T) {
	e, _ := newTestEngine(t, 10, 5)
	mustBegin(t, e)

	e.PushClip(2, 2, 3, 3)
	e.WriteText(0, 0, "Z")
	e.WriteText(1, 2, "abcdef")
	e.PopClip()
	e.WriteText(0, 4, "free")

	if got := e.Cell(0, 0); got != DefaultCell() {
		t.Errorf("cell outside clip = %+v, want blank", got)
	}
	var row strings.Builder
	for x := 0; x < 7; x++ {
		row.WriteRune(e.Cell(x, 2).Rune)
	}
	if got, want := row.String(), "  bcd  "; got != want {
		t.Errorf("clipped row = %q, want %q", got, want)
	}
	if got := e.Cell(0, 4).Rune; got != 'f' {
		t.Errorf("write after PopClip = %q, want 'f'", got)
	}
	e.EndFrame()
}

func TestEngine_ClipBlocksHighLayers(t *testing.T) {
	e, h := newTestEngine(t, 10, 5)
	mustBegin(t, e)

	e.BeginLayer(99)
	e.PushClip(2, 2, 3, 3)
	e.WriteText(0, 0, "X")
	e.WriteText(2, 2, "Y")
	e.PopClip()
	e.EndLayer()

	if got := e.zbuf.Get(0, 0); got != ZUnpainted {
		t.Errorf("clipped write claimed depth %d", got)
	}
	if got := e.zbuf.Get(2, 2); got != 99 {
		t.Errorf("depth inside clip = %d, want 99", got)
	}
	if got := e.Cell(0, 0); got != DefaultCell() {
		t.Errorf("cell outside clip = %+v, want blank", got)
	}

	e.WriteText(0, 0, "w")
	if got := e.Cell(0, 0).Rune; got != 'w' {
		t.Errorf("layer 0 write after clipped layer 99 write = %q, want 'w'", got)
	}
	e.EndFrame()
	assertConverged(t, e, h)
}

// A write inside a clip that splits a wide glyph blanks the glyph's other
// half even when that half lies outside the clip, as the terminal would.
func TestEngine_ClipSplitsWideGlyph(t *testing.T) {
	e, h := newTestEngine(t, 8, 2)
	mustBegin(t, e)

	e.WriteText(1, 0, "世")
	e.WithClip(2, 0, 3, 1, func() { e.WriteText(2, 0, "a") })
	e.WriteText(5, 1, "界")
	e.WithClip(0, 1, 6, 1, func() { e.WriteText(5, 1, "b") })

	if got := rowString(e, 0, 0, 4); got != "  a " {
		t.Errorf("row 0 = %q, want %q", got, "  a ")
	}
	if got := rowString(e, 1, 4, 7); got != " b " {
		t.Errorf("row 1 = %q, want %q", got, " b ")
	}
	e.EndFrame()
	assertConverged(t, e, h)
}

func TestEngine_NestedClipIntersects(t *testing.T) {
	e, _ := newTestEngine(t, 10, 3)
	mustBegin(t, e)
	defer e.EndFrame()

	e.PushClip(0, 0, 5, 3)
	e.PushClip(3, 0, 5, 3)
	if r, ok := e.ClipRect(); !ok || r != (Rect{X: 3, Y: 0, Width: 2, Height: 3}) {
		t.Errorf("clip = %+v %v, want {3 0 2 3}", r, ok)
	}
	e.PushClip(8, 0, 1, 1)
	if r, _ := e.ClipRect(); !r.IsEmpty() {
		t.Errorf("disjoint clip = %+v, want empty", r)
	}
	e.WriteText(0, 0, "0123456789")
	for x := 0; x < 10; x++ {
		if e.Cell(x, 0) != DefaultCell() {
			t.Fatalf("empty clip let a write through at x=%d", x)
		}
	}
	e.PopClip()
	e.PopClip()
	e.PopClip()
	e.PopClip() // extra pops are ignored
	if _, ok := e.ClipRect(); ok {
		t.Error("clip still active after popping everything")
	}
}

func TestEngine_Offsets(t *testing.T) {
	e, _ := newTestEngine(t, 10, 5)
	mustBegin(t, e)
	defer e.EndFrame()

	e.PushOffset(2, 1)
	e.WriteText(0, 0, "a")
	e.PushOffset(3, 1)
	e.WriteText(0, 0, "b")
	// Clips are given in offset coordinates.
	e.PushClip(0, 1, 1, 1)
	e.WriteText(0, 0, "x")
	e.WriteText(0, 1, "c")
	e.PopClip()
	e.PopOffset()
	e.WriteText(1, 0, "d")
	e.PopOffset()

	for _, tc := range []struct {
		x, y int
		want rune
	}{
		{2, 1, 'a'},
		{5, 2, 'b'},
		{5, 3, 'c'},
		{3, 1, 'd'},
	} {
		if got := e.Cell(tc.x, tc.y).Rune; got != tc.want {
			t.Errorf("cell (%d,%d) = %q, want %q", tc.x, tc.y, got, tc.want)
		}
	}
	if dx, dy := e.Offset(); dx != 0 || dy != 0 {
		t.Errorf("offset = (%d,%d) after pops, want (0,0)", dx, dy)
	}
}

func TestEngine_BeginFrameBeforeInitialize(t *testing.T) {
	e := NewEngine(sim.New(10, 3))
	err := e.BeginFrame()
	if !apperrors.IsCode(err, apperrors.ErrCodeNotInitialized) {
		t.Fatalf("BeginFrame error = %v, want NOT_INITIALIZED", err)
	}
	// Drawing and ending while idle are ignored.
	e.WriteText(0, 0, "x")
	e.EndFrame()
	if e.Frame() != 0 || e.InFrame() {
		t.Errorf("idle engine advanced: frame=%d inFrame=%v", e.Frame(), e.InFrame())
	}
}

func TestEngine_WritesOutsideFrameIgnored(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)
	e.WriteText(0, 0, "idle")
	e.Fill(0, 0, 3, 3, '#', ColorRed, ColorDefault)
	e.BeginLayer(4)
	e.PushClip(0, 0, 1, 1)
	e.PushOffset(1, 1)

	if e.Cell(0, 0) != DefaultCell() || e.Z() != 0 {
		t.Error("idle calls changed engine state")
	}
	if _, ok := e.ClipRect(); ok {
		t.Error("idle PushClip took effect")
	}
	if h.Writes() != 0 {
		t.Errorf("idle calls wrote %q", h.Output())
	}
}

func TestEngine_LifecycleSequences(t *testing.T) {
	host := sim.New(20, 5)
	e := NewEngine(host, WithAltScreen(true))
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	out := string(host.Output())
	for _, seq := range []string{ANSIAltScreen, ANSICursorHide, ANSIAutoWrapOff, ANSIClearScreen} {
		if !strings.Contains(out, seq) {
			t.Errorf("init output %q missing %q", out, seq)
		}
	}
	if !host.AltScreen() || host.AutoWrap() {
		t.Errorf("after init: alt=%v autowrap=%v", host.AltScreen(), host.AutoWrap())
	}
	if _, _, visible := host.Cursor(); visible {
		t.Error("cursor visible after init")
	}

	e.Cleanup()
	e.Cleanup()
	if host.AltScreen() || !host.AutoWrap() || host.Initialized() {
		t.Errorf("after cleanup: alt=%v autowrap=%v initialized=%v", host.AltScreen(), host.AutoWrap(), host.Initialized())
	}
	if _, _, visible := host.Cursor(); !visible {
		t.Error("cursor hidden after cleanup")
	}
	if err := e.BeginFrame(); !apperrors.IsCode(err, apperrors.ErrCodeNotInitialized) {
		t.Errorf("BeginFrame after Cleanup = %v, want NOT_INITIALIZED", err)
	}
}

func TestEngine_InitializeHostFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	host.EXPECT().Init().Return(errors.New("no device"))

	e := NewEngine(host)
	err := e.Initialize()
	if !apperrors.IsCode(err, apperrors.ErrCodeTerminalIO) {
		t.Fatalf("Initialize error = %v, want TERMINAL_IO", err)
	}
	if e.Initialized() {
		t.Error("engine reports initialized after failure")
	}
}

func TestEngine_SizeFallback(t *testing.T) {
	host := sim.New(10, 3)
	host.FailSize(errors.New("not a terminal"))
	metrics := observability.NewFrameMetrics(prometheus.NewRegistry())

	e := NewEngine(host, WithFallbackSize(12, 4), WithMetrics(metrics))
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if w, h := e.Size(); w != 12 || h != 4 {
		t.Errorf("size = %dx%d, want 12x4", w, h)
	}
	if got := testutil.ToFloat64(metrics.SizeFallbacksTotal); got != 1 {
		t.Errorf("size fallbacks = %v, want 1", got)
	}
}

func TestEngine_UpdateDimensions(t *testing.T) {
	metrics := observability.NewFrameMetrics(prometheus.NewRegistry())
	e, h := newTestEngine(t, 10, 3, WithMetrics(metrics))

	mustBegin(t, e)
	e.WriteText(0, 0, "keep")
	e.EndFrame()

	if e.UpdateDimensions() {
		t.Error("UpdateDimensions reported a resize with unchanged size")
	}

	h.Resize(20, 6)
	mustBegin(t, e)
	e.WriteText(0, 0, "keep")
	if e.UpdateDimensions() {
		t.Error("UpdateDimensions resized during a frame")
	}
	e.EndFrame()

	if !e.UpdateDimensions() {
		t.Fatal("UpdateDimensions missed the resize")
	}
	if w, hgt := e.Size(); w != 20 || hgt != 6 {
		t.Fatalf("size = %dx%d, want 20x6", w, hgt)
	}
	if zw, zh := e.zbuf.Size(); zw != 20 || zh != 6 {
		t.Errorf("zbuffer = %dx%d, want 20x6", zw, zh)
	}
	if got := e.Front().Get(0, 0).Rune; got != 'k' {
		t.Errorf("front lost overlapping content: %q", got)
	}

	h.ResetOutput()
	mustBegin(t, e)
	e.WriteText(15, 5, "new")
	e.EndFrame()

	if out := string(h.Output()); !strings.HasPrefix(out, ANSIReset+ANSIClearScreen) {
		t.Errorf("frame after resize = %q, want a full clear first", out)
	}
	if h.ContainsText("keep") {
		t.Error("content from before the resize survived the repaint")
	}
	if x, y := h.FindText("new"); x != 15 || y != 5 {
		t.Errorf("new text at (%d,%d), want (15,5)", x, y)
	}
	assertConverged(t, e, h)
	if got := testutil.ToFloat64(metrics.ResizesTotal); got != 1 {
		t.Errorf("resizes = %v, want 1", got)
	}
}

func TestEngine_RequestClear(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)
	mustBegin(t, e)
	e.WriteText(0, 1, "abc")
	e.EndFrame()

	e.RequestClear()
	h.ResetOutput()
	mustBegin(t, e)
	e.WriteText(0, 1, "abc")
	e.EndFrame()

	if got, want := string(h.Output()), ANSIReset+ANSIClearScreen+"\x1b[2;1Habc"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	assertConverged(t, e, h)

	h.ResetOutput()
	mustBegin(t, e)
	e.WriteText(0, 1, "abc")
	e.EndFrame()
	if h.Writes() != 0 {
		t.Errorf("clear was not one-shot, wrote %q", h.Output())
	}
}

func TestEngine_InvalidateCachedRegion(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)
	mustBegin(t, e)
	e.WriteText(0, 1, "Hi")
	e.EndFrame()

	// Something outside the engine scribbles on row 1.
	if _, err := h.Write([]byte("\x1b[2;5Hjunk")); err != nil {
		t.Fatal(err)
	}
	h.ResetOutput()

	e.InvalidateCachedRegion(1, 1)
	e.InvalidateCachedRegion(5, 9) // off screen, ignored
	mustBegin(t, e)
	e.WriteText(0, 1, "Hi")
	e.EndFrame()

	if got, want := string(h.Output()), "\x1b[0m\x1b[2;1H\x1b[2K\x1b[2;1HHi"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if h.ContainsText("junk") {
		t.Errorf("invalidated row still shows junk:\n%s", h.Capture())
	}
	assertConverged(t, e, h)
}

func TestEngine_WriteFailureSchedulesRepaint(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	ok := func(p []byte) (int, error) { return len(p), nil }

	var repaint string
	gomock.InOrder(
		host.EXPECT().Init().Return(nil),
		host.EXPECT().Size().Return(10, 3, nil),
		host.EXPECT().Write(gomock.Any()).DoAndReturn(ok),
		host.EXPECT().Write(gomock.Any()).Return(0, errors.New("broken pipe")),
		host.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			repaint = string(p)
			return len(p), nil
		}),
	)

	metrics := observability.NewFrameMetrics(prometheus.NewRegistry())
	e := NewEngine(host, WithMetrics(metrics))
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		mustBegin(t, e)
		e.WriteText(0, 0, "AB")
		e.EndFrame()
	}

	if want := ANSIReset + ANSIClearScreen + "\x1b[1;1HAB"; repaint != want {
		t.Errorf("repaint = %q, want %q", repaint, want)
	}
	if got := testutil.ToFloat64(metrics.WriteErrorsTotal); got != 1 {
		t.Errorf("write errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.FramesTotal); got != 2 {
		t.Errorf("frames = %v, want 2", got)
	}
}

func TestEngine_ShortWritesRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)

	var got []byte
	host.EXPECT().Init().Return(nil)
	host.EXPECT().Size().Return(8, 2, nil)
	host.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		n := min(len(p), 3)
		got = append(got, p[:n]...)
		return n, nil
	}).AnyTimes()

	e := NewEngine(host)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	got = got[:0]

	mustBegin(t, e)
	e.WriteText(0, 0, "chunked")
	e.EndFrame()

	if want := "\x1b[1;1Hchunked"; string(got) != want {
		t.Errorf("reassembled output = %q, want %q", got, want)
	}
}

func TestEngine_Cursor(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)

	mustBegin(t, e)
	e.WriteText(0, 0, "ab")
	e.SetCursor(3, 1)
	e.ShowCursor()
	e.EndFrame()

	if out := string(h.Output()); !strings.HasSuffix(out, "\x1b[2;4H"+ANSICursorShow) {
		t.Errorf("output = %q, want cursor placement last", out)
	}
	if x, y, visible := h.Cursor(); x != 3 || y != 1 || !visible {
		t.Errorf("cursor = (%d,%d,%v), want (3,1,true)", x, y, visible)
	}

	h.ResetOutput()
	e.HideCursor()
	if got := string(h.Output()); got != ANSICursorHide {
		t.Errorf("idle HideCursor wrote %q", got)
	}
	e.HideCursor()
	if h.Writes() != 1 {
		t.Error("repeated HideCursor wrote again")
	}
}

func TestEngine_UnbalancedScopesReported(t *testing.T) {
	metrics := observability.NewFrameMetrics(prometheus.NewRegistry())
	e, _ := newTestEngine(t, 10, 3, WithMetrics(metrics))

	mustBegin(t, e)
	e.BeginLayer(3)
	e.PushClip(0, 0, 2, 2)
	e.PushClip(0, 0, 1, 1)
	e.EndFrame()

	if got := testutil.ToFloat64(metrics.UnbalancedScopes.WithLabelValues("layer")); got != 1 {
		t.Errorf("unbalanced layers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.UnbalancedScopes.WithLabelValues("clip")); got != 2 {
		t.Errorf("unbalanced clips = %v, want 2", got)
	}

	mustBegin(t, e)
	defer e.EndFrame()
	if e.Z() != 0 {
		t.Errorf("Z = %d at frame start, want 0", e.Z())
	}
	if _, ok := e.ClipRect(); ok {
		t.Error("clip leaked into the next frame")
	}
}

func TestEngine_UnbalancedPushLeaksWithinFrame(t *testing.T) {
	t.Run("clip", func(t *testing.T) {
		e, h := newTestEngine(t, 10, 3)
		mustBegin(t, e)

		e.PushClip(0, 0, 3, 1)
		e.WriteText(0, 0, "status")
		// Unrelated drawing after the missing PopClip is still clipped.
		e.WriteText(0, 2, "footer")

		if got := rowString(e, 0, 0, 6); got != "sta   " {
			t.Errorf("row 0 = %q, want %q", got, "sta   ")
		}
		if got := rowString(e, 2, 0, 6); got != "      " {
			t.Errorf("footer escaped the leaked clip: %q", got)
		}
		e.EndFrame()
		assertConverged(t, e, h)
	})

	t.Run("offset", func(t *testing.T) {
		e, h := newTestEngine(t, 10, 3)
		mustBegin(t, e)

		e.PushOffset(4, 1)
		e.WriteText(0, 0, "ab")
		e.WriteText(0, 1, "cd")

		if got := rowString(e, 0, 0, 6); got != "      " {
			t.Errorf("row 0 = %q, want blank", got)
		}
		if got := rowString(e, 1, 4, 6); got != "ab" {
			t.Errorf("row 1 = %q, want %q", got, "ab")
		}
		if got := rowString(e, 2, 4, 6); got != "cd" {
			t.Errorf("row 2 = %q, want %q", got, "cd")
		}
		e.EndFrame()
		assertConverged(t, e, h)
	})
}

func TestEngine_Guards(t *testing.T) {
	e, _ := newTestEngine(t, 10, 3)
	mustBegin(t, e)
	defer e.EndFrame()

	release := e.Layer(5)
	e.Layer(7) // left open
	if e.Z() != 7 {
		t.Fatalf("Z = %d, want 7", e.Z())
	}
	release()
	if e.Z() != 0 || len(e.layers) != 0 {
		t.Errorf("after release: Z=%d depth=%d, want 0 and 0", e.Z(), len(e.layers))
	}
	release()
	if e.Z() != 0 {
		t.Error("second release changed state")
	}

	untranslate := e.Translate(4, 4)
	e.Translate(1, 1)
	untranslate()
	if dx, dy := e.Offset(); dx != 0 || dy != 0 {
		t.Errorf("offset = (%d,%d) after release, want (0,0)", dx, dy)
	}

	func() {
		defer func() { _ = recover() }()
		e.WithClip(0, 0, 1, 1, func() { panic("widget failed") })
	}()
	if _, ok := e.ClipRect(); ok {
		t.Error("clip not popped after panic")
	}
}

func TestEngine_GuardFromPreviousFrameIsInert(t *testing.T) {
	e, _ := newTestEngine(t, 10, 3)

	mustBegin(t, e)
	stale := e.Clip(0, 0, 1, 1)
	e.EndFrame()

	mustBegin(t, e)
	defer e.EndFrame()
	e.PushClip(2, 0, 3, 1)
	stale()
	if r, ok := e.ClipRect(); !ok || r.X != 2 {
		t.Errorf("stale release popped the current frame's clip: %+v %v", r, ok)
	}
}

func TestEngine_RestartedFrameDiscardsDrawing(t *testing.T) {
	e, h := newTestEngine(t, 10, 3)

	mustBegin(t, e)
	e.WriteText(0, 0, "draft")
	mustBegin(t, e)
	e.WriteText(0, 0, "final")
	e.EndFrame()

	if !h.ContainsText("final") || h.ContainsText("draft") {
		t.Errorf("screen:\n%s", h.Capture())
	}
}

func TestEngine_ReferenceStore(t *testing.T) {
	e, h := newTestEngine(t, 10, 3, WithStore(GridReference))
	if _, ok := e.Back().(*RowGrid); !ok {
		t.Fatalf("back grid is %T, want *RowGrid", e.Back())
	}
	mustBegin(t, e)
	e.WriteAt(0, 0, "AB", ColorRed, ColorBlack)
	e.EndFrame()
	if got := string(h.Output()); got != "\x1b[1;1H\x1b[38;2;255;0;0m\x1b[48;2;0;0;0mAB\x1b[0m" {
		t.Errorf("output = %q", got)
	}
}
