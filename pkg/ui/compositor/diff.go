package compositor

import (
	"unicode/utf8"

	"github.com/muesli/termenv"
)

// DiffStats describes the work done by the last diff.
type DiffStats struct {
	ScannedCells int
	ChangedCells int
	SkippedCells int // continuation cells
	Runs         int
	CursorMoves  int
	StyleChanges int
	Bytes        int
}

// DiffEngine computes the ANSI bytes that turn a terminal showing one grid
// into another. Output depends only on its inputs; the engine keeps a cache
// of SGR strings and the stats of the last call.
type DiffEngine struct {
	sgr   *sgrCache
	stats DiffStats
}

// DiffOption configures a DiffEngine.
type DiffOption func(*diffOptions)

type diffOptions struct {
	profile   termenv.Profile
	cacheSize int
}

// WithProfile sets the color profile used for SGR output.
func WithProfile(p termenv.Profile) DiffOption {
	return func(o *diffOptions) { o.profile = p }
}

// WithSGRCacheSize bounds the SGR cache.
func WithSGRCacheSize(n int) DiffOption {
	return func(o *diffOptions) { o.cacheSize = n }
}

// NewDiffEngine creates a diff engine. Truecolor output is the default.
func NewDiffEngine(opts ...DiffOption) *DiffEngine {
	o := diffOptions{profile: termenv.TrueColor, cacheSize: defaultSGRCacheSz}
	for _, opt := range opts {
		opt(&o)
	}
	return &DiffEngine{sgr: newSGRCache(o.profile, o.cacheSize)}
}

// Stats returns statistics for the most recent diff.
func (d *DiffEngine) Stats() DiffStats {
	return d.stats
}

// Diff returns the bytes that, applied to a terminal showing front, make it
// show back inside box. A nil front means every cell in the box changed.
func (d *DiffEngine) Diff(back, front Grid, box Bounds) []byte {
	return d.AppendDiff(nil, back, front, box)
}

// termState is the diff's model of the terminal's cursor and SGR state.
type termState struct {
	x, y       int
	fg, bg     Color
	attrs      Attr
	nonDefault bool
}

// AppendDiff appends the diff of back against front inside box to dst.
func (d *DiffEngine) AppendDiff(dst []byte, back, front Grid, box Bounds) []byte {
	d.stats = DiffStats{}
	if back == nil {
		return dst
	}

	w, h := back.Size()
	box = box.Clamp(w, h)
	if box.Empty() {
		return dst
	}
	if front != nil {
		if fw, fh := front.Size(); fw != w || fh != h {
			front = nil
		}
	}

	start := len(dst)
	st := termState{x: -1, y: -1}

	for y := box.MinY; y <= box.MaxY; y++ {
		backRow := back.Row(y)
		var frontRow []Cell
		if front != nil {
			frontRow = front.Row(y)
		}

		x := box.MinX
		// A box starting on the right half of a wide glyph repaints the glyph.
		if x > 0 && backRow[x].IsContinuation() {
			x--
		}

		for x <= box.MaxX {
			c := backRow[x]
			d.stats.ScannedCells++

			if c.IsContinuation() {
				d.stats.SkippedCells++
				x++
				continue
			}
			if !cellChanged(backRow, frontRow, x) {
				x++
				continue
			}

			// Start of a run: position once, then emit glyphs while the
			// cells keep changing and share a style.
			d.stats.Runs++
			if st.x != x || st.y != y {
				dst = appendCursorTo(dst, x, y)
				st.x, st.y = x, y
				d.stats.CursorMoves++
			}
			dst = d.appendStyle(dst, &st, c)

			for {
				d.stats.ChangedCells++
				dst = utf8.AppendRune(dst, printable(c.Rune))
				width := max(int(c.Width), 1)
				st.x += width
				x += width

				if x > box.MaxX {
					break
				}
				next := backRow[x]
				if next.IsContinuation() || !next.sameStyle(c) || !cellChanged(backRow, frontRow, x) {
					break
				}
				d.stats.ScannedCells++
				c = next
			}
		}
	}

	if st.nonDefault {
		dst = append(dst, ANSIReset...)
	}
	d.stats.Bytes = len(dst) - start
	return dst
}

// cellChanged reports whether the cell at x differs between rows. A wide
// glyph also counts as changed when its continuation cell differs.
func cellChanged(backRow, frontRow []Cell, x int) bool {
	if frontRow == nil {
		return true
	}
	if backRow[x] != frontRow[x] {
		return true
	}
	if backRow[x].Width == 2 && x+1 < len(backRow) {
		return backRow[x+1] != frontRow[x+1]
	}
	return false
}

func (d *DiffEngine) appendStyle(dst []byte, st *termState, c Cell) []byte {
	changed := false
	if c.FG != st.fg {
		dst = append(dst, d.sgr.color(c.FG, false)...)
		st.fg = c.FG
		changed = true
	}
	if c.BG != st.bg {
		dst = append(dst, d.sgr.color(c.BG, true)...)
		st.bg = c.BG
		changed = true
	}
	if c.Attrs != st.attrs {
		dst = appendAttrDelta(dst, st.attrs, c.Attrs)
		st.attrs = c.Attrs
		changed = true
	}
	if changed {
		d.stats.StyleChanges++
		if !c.FG.IsDefault() || !c.BG.IsDefault() || c.Attrs != AttrNone {
			st.nonDefault = true
		}
	}
	return dst
}

// printable replaces control characters with a space.
func printable(r rune) rune {
	if r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0) {
		return ' '
	}
	return r
}
