package compositor

import (
	"github.com/mattn/go-runewidth"
)

// widthCond measures glyphs with East Asian ambiguous characters as narrow,
// so box drawing stays one column regardless of locale.
var widthCond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// RuneWidth returns the number of columns r occupies: 2 for wide glyphs,
// otherwise 1. Zero-width and control runes are written as one column.
func RuneWidth(r rune) int {
	if widthCond.RuneWidth(r) == 2 {
		return 2
	}
	return 1
}

// StringWidth returns the number of columns s occupies when written.
func StringWidth(s string) int {
	n := 0
	for _, r := range s {
		n += RuneWidth(r)
	}
	return n
}

// BoxStyle selects the glyph set used by DrawBox.
type BoxStyle int

const (
	BoxSingle BoxStyle = iota
	BoxDouble
	BoxRounded
)

type boxGlyphs struct {
	tl, tr, bl, br, h, v rune
}

var boxSets = map[BoxStyle]boxGlyphs{
	BoxSingle:  {'┌', '┐', '└', '┘', '─', '│'},
	BoxDouble:  {'╔', '╗', '╚', '╝', '═', '║'},
	BoxRounded: {'╭', '╮', '╰', '╯', '─', '│'},
}

// visible reports whether screen cell (fx, fy) is inside the grid and the
// active clip.
func (e *Engine) visible(fx, fy int) bool {
	if fx < 0 || fx >= e.width || fy < 0 || fy >= e.height {
		return false
	}
	return !e.clipped || e.clip.Contains(fx, fy)
}

// put runs one narrow cell through the pipeline at local (x, y).
func (e *Engine) put(x, y int, c Cell) bool {
	fx, fy := x+e.dx, y+e.dy
	if !e.visible(fx, fy) {
		return false
	}
	if !e.zbuf.TestAndSet(fx, fy, e.currentZ) {
		return false
	}
	e.store(fx, fy, c)
	return true
}

// putRune writes r at local (x, y) and returns the columns it advances.
// A wide glyph whose halves do not both pass the pipeline is replaced by a
// space in whichever half does.
func (e *Engine) putRune(x, y int, r rune, st Style) int {
	r = printable(r)
	if RuneWidth(r) == 1 {
		e.put(x, y, NewCell(r, st))
		return 1
	}

	fx, fy := x+e.dx, y+e.dy
	leadOK := e.visible(fx, fy) && e.zbuf.Test(fx, fy, e.currentZ)
	contOK := e.visible(fx+1, fy) && e.zbuf.Test(fx+1, fy, e.currentZ)

	switch {
	case leadOK && contOK:
		e.zbuf.Set(fx, fy, e.currentZ)
		e.zbuf.Set(fx+1, fy, e.currentZ)
		e.store(fx, fy, Cell{Rune: r, Width: 2, FG: st.FG, BG: st.BG, Attrs: st.Attrs})
		e.store(fx+1, fy, Cell{Rune: 0, Width: 0, FG: st.FG, BG: st.BG, Attrs: st.Attrs})
	case leadOK:
		e.put(x, y, NewCell(' ', st))
	case contOK:
		e.put(x+1, y, NewCell(' ', st))
	}
	return 2
}

// store writes c to the back grid at screen coordinates, blanking the other
// half of any wide glyph it splits.
func (e *Engine) store(fx, fy int, c Cell) {
	e.repairAt(fx, fy, c.Width)
	e.back.Set(fx, fy, c)
	e.dirty = e.dirty.Include(fx, fy)
}

// repairAt blanks the orphaned half of a wide glyph about to be overwritten
// at (fx, fy) by a cell of width w.
func (e *Engine) repairAt(fx, fy int, w uint8) {
	old := e.back.Get(fx, fy)
	switch {
	case old.Width == 2 && w != 2 && fx+1 < e.width:
		e.orphan(fx+1, fy, old)
	case old.Width == 0 && w != 0 && fx > 0:
		if lead := e.back.Get(fx-1, fy); lead.Width == 2 {
			e.orphan(fx-1, fy, lead)
		}
	}
}

func (e *Engine) orphan(x, y int, owner Cell) {
	e.back.Set(x, y, Cell{Rune: ' ', Width: 1, FG: owner.FG, BG: owner.BG, Attrs: owner.Attrs})
	e.dirty = e.dirty.Include(x, y)
}

// WriteAt writes text at local (x, y) with the given colors.
func (e *Engine) WriteAt(x, y int, text string, fg, bg Color) {
	e.WriteStyled(x, y, text, Style{FG: fg, BG: bg})
}

// WriteText writes text at local (x, y) with the default style.
func (e *Engine) WriteText(x, y int, text string) {
	e.WriteStyled(x, y, text, DefaultStyle())
}

// WriteStyled writes text at local (x, y). It returns the columns advanced,
// including columns that were clipped or occluded.
func (e *Engine) WriteStyled(x, y int, text string, st Style) int {
	if !e.inFrame {
		return 0
	}
	col := x
	for _, r := range text {
		col += e.putRune(col, y, r, st)
	}
	return col - x
}

// WriteGradient writes text with a foreground interpolated from fgStart to
// fgEnd across its glyphs.
func (e *Engine) WriteGradient(x, y int, text string, fgStart, fgEnd, bg Color) int {
	if !e.inFrame {
		return 0
	}
	e.rowRunes = appendRunes(e.rowRunes[:0], text)
	colors := Gradient(fgStart, fgEnd, len(e.rowRunes))
	col := x
	for i, r := range e.rowRunes {
		col += e.putRune(col, y, r, Style{FG: colors[i], BG: bg})
	}
	return col - x
}

// WriteRow writes text with per-glyph colors and attributes. Missing entries
// use the default color and no attributes. When every cell of a narrow run
// passes bounds, clip and depth tests the run is stored with one row copy;
// otherwise each glyph goes through the normal pipeline. Both paths produce
// the same grid.
func (e *Engine) WriteRow(x, y int, text string, fgs, bgs []Color, attrs []Attr) int {
	if !e.inFrame {
		return 0
	}
	runes := appendRunes(e.rowRunes[:0], text)
	e.rowRunes = runes
	if len(runes) == 0 {
		return 0
	}

	styleAt := func(i int) Style {
		var st Style
		if i < len(fgs) {
			st.FG = fgs[i]
		}
		if i < len(bgs) {
			st.BG = bgs[i]
		}
		if i < len(attrs) {
			st.Attrs = attrs[i]
		}
		return st
	}

	fx, fy := x+e.dx, y+e.dy
	block := e.canBlockWrite(fx, fy, runes)
	e.metrics.RowPath(block)

	if !block {
		col := x
		for i, r := range runes {
			col += e.putRune(col, y, r, styleAt(i))
		}
		return col - x
	}

	n := len(runes)
	cells := e.rowCells[:0]
	for i, r := range runes {
		cells = append(cells, NewCell(printable(r), styleAt(i)))
		e.zbuf.Set(fx+i, fy, e.currentZ)
	}
	e.rowCells = cells

	e.repairAt(fx, fy, 1)
	e.repairAt(fx+n-1, fy, 1)
	e.back.SetRow(fx, fy, cells)
	e.dirty = e.dirty.Include(fx, fy).Include(fx+n-1, fy)
	return n
}

// canBlockWrite reports whether a run of narrow runes at screen (fx, fy)
// passes every pipeline test.
func (e *Engine) canBlockWrite(fx, fy int, runes []rune) bool {
	n := len(runes)
	if e.opts.RowScanLimit > 0 && n > e.opts.RowScanLimit {
		return false
	}
	if fy < 0 || fy >= e.height || fx < 0 || fx+n > e.width {
		return false
	}
	if e.clipped {
		c := e.clip
		if fy < c.Y || fy >= c.Y+c.Height || fx < c.X || fx+n > c.X+c.Width {
			return false
		}
	}
	for i, r := range runes {
		if RuneWidth(printable(r)) != 1 {
			return false
		}
		if !e.zbuf.Test(fx+i, fy, e.currentZ) {
			return false
		}
	}
	return true
}

// Fill fills a local rectangle with ch.
func (e *Engine) Fill(x, y, w, h int, ch rune, fg, bg Color) {
	if !e.inFrame || w <= 0 || h <= 0 {
		return
	}
	st := Style{FG: fg, BG: bg}
	wide := RuneWidth(printable(ch)) == 2
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; {
			if wide && col+1 >= x+w {
				e.put(col, row, NewCell(' ', st))
				break
			}
			col += e.putRune(col, row, ch, st)
		}
	}
}

// Clear fills a local rectangle with blanks in the default style.
func (e *Engine) Clear(x, y, w, h int) {
	e.Fill(x, y, w, h, ' ', ColorDefault, ColorDefault)
}

// HLine draws a horizontal run of ch.
func (e *Engine) HLine(x, y, length int, ch rune, fg, bg Color) {
	e.Fill(x, y, length, 1, ch, fg, bg)
}

// VLine draws a vertical run of ch.
func (e *Engine) VLine(x, y, length int, ch rune, fg, bg Color) {
	e.Fill(x, y, 1, length, ch, fg, bg)
}

// DrawBox draws a border around a local rectangle. Boxes smaller than 2x2
// draw nothing.
func (e *Engine) DrawBox(x, y, w, h int, fg, bg Color, style BoxStyle) {
	if !e.inFrame || w < 2 || h < 2 {
		return
	}
	g, ok := boxSets[style]
	if !ok {
		g = boxSets[BoxSingle]
	}
	st := Style{FG: fg, BG: bg}

	e.put(x, y, NewCell(g.tl, st))
	e.put(x+w-1, y, NewCell(g.tr, st))
	e.put(x, y+h-1, NewCell(g.bl, st))
	e.put(x+w-1, y+h-1, NewCell(g.br, st))

	for col := x + 1; col < x+w-1; col++ {
		e.put(col, y, NewCell(g.h, st))
		e.put(col, y+h-1, NewCell(g.h, st))
	}
	for row := y + 1; row < y+h-1; row++ {
		e.put(x, row, NewCell(g.v, st))
		e.put(x+w-1, row, NewCell(g.v, st))
	}
}

func appendRunes(dst []rune, s string) []rune {
	for _, r := range s {
		dst = append(dst, r)
	}
	return dst
}
