package compositor

type clipState struct {
	rect    Rect
	clipped bool
}

type offsetState struct {
	dx, dy int
}

func (e *Engine) resetScopes() {
	e.currentZ = 0
	e.dx, e.dy = 0, 0
	e.clip, e.clipped = Rect{}, false
	e.layers = e.layers[:0]
	e.clips = e.clips[:0]
	e.offsets = e.offsets[:0]
}

// checkBalance reports scopes still open at the end of a frame.
func (e *Engine) checkBalance() {
	for _, s := range []struct {
		name  string
		depth int
	}{
		{"layer", len(e.layers)},
		{"clip", len(e.clips)},
		{"offset", len(e.offsets)},
	} {
		if s.depth == 0 {
			continue
		}
		e.metrics.Unbalanced(s.name, s.depth)
		e.log.Warn("unbalanced scope at end of frame", "stack", s.name, "depth", s.depth, "frame", e.frame)
	}
}

// Z returns the current layer.
func (e *Engine) Z() int { return e.currentZ }

// BeginLayer makes subsequent writes use depth z until EndLayer.
func (e *Engine) BeginLayer(z int) {
	if !e.inFrame {
		return
	}
	e.layers = append(e.layers, e.currentZ)
	e.currentZ = z
}

// EndLayer restores the layer active before the matching BeginLayer.
func (e *Engine) EndLayer() {
	if n := len(e.layers); n > 0 {
		e.currentZ = e.layers[n-1]
		e.layers = e.layers[:n-1]
	}
}

// PushClip restricts writes to the rectangle, given in the current offset's
// coordinates and intersected with the active clip.
func (e *Engine) PushClip(x, y, w, h int) {
	if !e.inFrame {
		return
	}
	e.pushClipAbs(Rect{X: x + e.dx, Y: y + e.dy, Width: w, Height: h})
}

func (e *Engine) pushClipAbs(r Rect) {
	e.clips = append(e.clips, clipState{rect: e.clip, clipped: e.clipped})
	if e.clipped {
		r = r.Intersect(e.clip)
	}
	if r.IsEmpty() {
		r = Rect{}
	}
	e.clip, e.clipped = r, true
}

// PopClip restores the clip active before the matching PushClip.
func (e *Engine) PopClip() {
	if n := len(e.clips); n > 0 {
		prev := e.clips[n-1]
		e.clip, e.clipped = prev.rect, prev.clipped
		e.clips = e.clips[:n-1]
	}
}

// ClipRect returns the active clip in screen coordinates, or false when
// writes are only bounded by the grid.
func (e *Engine) ClipRect() (Rect, bool) {
	return e.clip, e.clipped
}

// PushOffset translates subsequent writes by (dx, dy). Offsets accumulate.
func (e *Engine) PushOffset(dx, dy int) {
	if !e.inFrame {
		return
	}
	e.offsets = append(e.offsets, offsetState{dx: e.dx, dy: e.dy})
	e.dx += dx
	e.dy += dy
}

// PopOffset restores the offset active before the matching PushOffset.
func (e *Engine) PopOffset() {
	if n := len(e.offsets); n > 0 {
		prev := e.offsets[n-1]
		e.dx, e.dy = prev.dx, prev.dy
		e.offsets = e.offsets[:n-1]
	}
}

// Offset returns the accumulated translation.
func (e *Engine) Offset() (int, int) {
	return e.dx, e.dy
}

// Layer begins a layer and returns a func that ends it. The func may be
// called any number of times; it also unwinds layers opened after this one
// and left open.
func (e *Engine) Layer(z int) (release func()) {
	if !e.inFrame {
		return func() {}
	}
	depth, gen := len(e.layers), e.generation
	e.BeginLayer(z)
	return func() {
		if gen != e.generation || len(e.layers) <= depth {
			return
		}
		e.currentZ = e.layers[depth]
		e.layers = e.layers[:depth]
	}
}

// Clip pushes a clip and returns a func that pops it and anything pushed
// after it.
func (e *Engine) Clip(x, y, w, h int) (release func()) {
	if !e.inFrame {
		return func() {}
	}
	depth, gen := len(e.clips), e.generation
	e.PushClip(x, y, w, h)
	return func() {
		if gen != e.generation || len(e.clips) <= depth {
			return
		}
		prev := e.clips[depth]
		e.clip, e.clipped = prev.rect, prev.clipped
		e.clips = e.clips[:depth]
	}
}

// Translate pushes an offset and returns a func that pops it and anything
// pushed after it.
func (e *Engine) Translate(dx, dy int) (release func()) {
	if !e.inFrame {
		return func() {}
	}
	depth, gen := len(e.offsets), e.generation
	e.PushOffset(dx, dy)
	return func() {
		if gen != e.generation || len(e.offsets) <= depth {
			return
		}
		prev := e.offsets[depth]
		e.dx, e.dy = prev.dx, prev.dy
		e.offsets = e.offsets[:depth]
	}
}

// WithLayer runs fn on layer z. The layer ends even if fn panics.
func (e *Engine) WithLayer(z int, fn func()) {
	defer e.Layer(z)()
	fn()
}

// WithClip runs fn inside a clip.
func (e *Engine) WithClip(x, y, w, h int, fn func()) {
	defer e.Clip(x, y, w, h)()
	fn()
}

// WithOffset runs fn translated by (dx, dy).
func (e *Engine) WithOffset(dx, dy int, fn func()) {
	defer e.Translate(dx, dy)()
	fn()
}
