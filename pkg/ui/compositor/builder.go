package compositor

// FrameBuilder provides a fluent API for drawing into an open frame.
type FrameBuilder struct {
	e     *Engine
	style Style
}

// NewFrameBuilder creates a builder for the engine.
func NewFrameBuilder(e *Engine) *FrameBuilder {
	return &FrameBuilder{e: e}
}

// Style sets the style used by later calls.
func (fb *FrameBuilder) Style(st Style) *FrameBuilder {
	fb.style = st
	return fb
}

// Text writes text at position with the current style.
func (fb *FrameBuilder) Text(x, y int, text string) *FrameBuilder {
	fb.e.WriteStyled(x, y, text, fb.style)
	return fb
}

// Gradient writes text with a foreground gradient over the current
// background.
func (fb *FrameBuilder) Gradient(x, y int, text string, from, to Color) *FrameBuilder {
	fb.e.WriteGradient(x, y, text, from, to, fb.style.BG)
	return fb
}

// Fill fills a rectangle.
func (fb *FrameBuilder) Fill(x, y, w, h int, r rune) *FrameBuilder {
	fb.e.Fill(x, y, w, h, r, fb.style.FG, fb.style.BG)
	return fb
}

// Box draws a box border.
func (fb *FrameBuilder) Box(x, y, w, h int, bs BoxStyle) *FrameBuilder {
	fb.e.DrawBox(x, y, w, h, fb.style.FG, fb.style.BG, bs)
	return fb
}

// HLine draws a horizontal line.
func (fb *FrameBuilder) HLine(x, y, length int, r rune) *FrameBuilder {
	fb.e.HLine(x, y, length, r, fb.style.FG, fb.style.BG)
	return fb
}

// VLine draws a vertical line.
func (fb *FrameBuilder) VLine(x, y, length int, r rune) *FrameBuilder {
	fb.e.VLine(x, y, length, r, fb.style.FG, fb.style.BG)
	return fb
}

// Layer runs fn on layer z.
func (fb *FrameBuilder) Layer(z int, fn func(*FrameBuilder)) *FrameBuilder {
	fb.e.WithLayer(z, func() { fn(fb) })
	return fb
}

// Clip runs fn inside a clip rectangle.
func (fb *FrameBuilder) Clip(x, y, w, h int, fn func(*FrameBuilder)) *FrameBuilder {
	fb.e.WithClip(x, y, w, h, func() { fn(fb) })
	return fb
}

// Offset runs fn translated by (dx, dy).
func (fb *FrameBuilder) Offset(dx, dy int, fn func(*FrameBuilder)) *FrameBuilder {
	fb.e.WithOffset(dx, dy, func() { fn(fb) })
	return fb
}

// Region writes text into a named region with the current style.
func (fb *FrameBuilder) Region(id, text string) *FrameBuilder {
	fb.e.WriteToRegion(id, text, fb.style.FG, fb.style.BG)
	return fb
}

// bufferHost is an offscreen host of fixed size.
type bufferHost struct {
	w, h int
	buf  []byte
}

func (b *bufferHost) Init() error             { return nil }
func (b *bufferHost) Fini()                   {}
func (b *bufferHost) Size() (int, int, error) { return b.w, b.h, nil }

func (b *bufferHost) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// RenderToString draws one frame offscreen and returns the ANSI bytes that
// paint it on a cleared terminal.
func RenderToString(width, height int, draw func(*Engine), opts ...Option) (string, error) {
	host := &bufferHost{w: width, h: height}
	opts = append(opts, WithFallbackSize(width, height), WithAltScreen(false))
	e := NewEngine(host, opts...)
	if err := checkDimensions(width, height); err != nil {
		return "", err
	}
	if err := e.Initialize(); err != nil {
		return "", err
	}
	if err := e.BeginFrame(); err != nil {
		return "", err
	}
	draw(e)

	out := []byte(ANSIClearScreen + ANSICursorHome)
	out = e.differ.AppendDiff(out, e.back, nil, FullBounds(width, height))
	return string(out), nil
}
