// Package compositor provides a flicker-free terminal rendering core.
// Widgets draw into a back grid through a Z-tested, clipped and offset
// pipeline; at the end of each frame only the cells that changed are
// written to the terminal as ANSI sequences.
package compositor

import "fmt"

// Color is a terminal color: either the terminal's default or a 24-bit RGB
// value. The zero value is ColorDefault, so a default color can never be
// confused with RGB(0, 0, 0).
type Color struct {
	rgb uint32
	set bool
}

// ColorDefault uses the terminal's default foreground or background.
var ColorDefault = Color{}

// Common colors.
var (
	ColorBlack   = Hex(0x000000)
	ColorRed     = Hex(0xFF0000)
	ColorGreen   = Hex(0x00FF00)
	ColorYellow  = Hex(0xFFFF00)
	ColorBlue    = Hex(0x0000FF)
	ColorMagenta = Hex(0xFF00FF)
	ColorCyan    = Hex(0x00FFFF)
	ColorWhite   = Hex(0xFFFFFF)
	ColorGray    = Hex(0x808080)
)

// RGB creates a 24-bit true color.
func RGB(r, g, b uint8) Color {
	return Color{rgb: uint32(r)<<16 | uint32(g)<<8 | uint32(b), set: true}
}

// Hex creates a color from a packed 0xRRGGBB value. Bits above 24 are dropped.
func Hex(hex uint32) Color {
	return Color{rgb: hex & 0xFFFFFF, set: true}
}

// IsDefault reports whether c is the terminal default color.
func (c Color) IsDefault() bool {
	return !c.set
}

// Packed returns (R<<16)|(G<<8)|B and false for the default color.
func (c Color) Packed() (uint32, bool) {
	return c.rgb, c.set
}

// RGB255 splits the color into channels. The default color reports 0,0,0.
func (c Color) RGB255() (r, g, b uint8) {
	return uint8(c.rgb >> 16), uint8(c.rgb >> 8), uint8(c.rgb)
}

func (c Color) String() string {
	if !c.set {
		return "default"
	}
	return fmt.Sprintf("#%06x", c.rgb)
}

// Attr is a bitset of text attributes.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrReverse

	AttrNone Attr = 0
)

// Has reports whether all bits of a are set.
func (at Attr) Has(a Attr) bool {
	return at&a == a
}

// Style groups the colors and attributes applied to written glyphs.
type Style struct {
	FG    Color
	BG    Color
	Attrs Attr
}

// DefaultStyle returns a style with default colors and no attributes.
func DefaultStyle() Style {
	return Style{}
}

// WithFG returns a copy with foreground color set.
func (s Style) WithFG(c Color) Style {
	s.FG = c
	return s
}

// WithBG returns a copy with background color set.
func (s Style) WithBG(c Color) Style {
	s.BG = c
	return s
}

// WithAttrs returns a copy with the given attributes added.
func (s Style) WithAttrs(a Attr) Style {
	s.Attrs |= a
	return s
}

// WithBold returns a copy with bold set or cleared.
func (s Style) WithBold(b bool) Style {
	return s.with(AttrBold, b)
}

// WithDim returns a copy with dim set or cleared.
func (s Style) WithDim(d bool) Style {
	return s.with(AttrDim, d)
}

// WithItalic returns a copy with italic set or cleared.
func (s Style) WithItalic(i bool) Style {
	return s.with(AttrItalic, i)
}

// WithUnderline returns a copy with underline set or cleared.
func (s Style) WithUnderline(u bool) Style {
	return s.with(AttrUnderline, u)
}

// WithReverse returns a copy with reverse set or cleared.
func (s Style) WithReverse(r bool) Style {
	return s.with(AttrReverse, r)
}

func (s Style) with(a Attr, on bool) Style {
	if on {
		s.Attrs |= a
	} else {
		s.Attrs &^= a
	}
	return s
}

// Cell represents a single character cell on screen.
// Width is 1 for most glyphs, 2 for the lead cell of a wide glyph and 0 for
// the continuation cell that follows it.
type Cell struct {
	Rune  rune
	Width uint8
	FG    Color
	BG    Color
	Attrs Attr
}

// DefaultCell returns a blank cell with default colors.
func DefaultCell() Cell {
	return Cell{Rune: ' ', Width: 1}
}

// NewCell creates a narrow cell with the given style.
func NewCell(r rune, style Style) Cell {
	return Cell{Rune: r, Width: 1, FG: style.FG, BG: style.BG, Attrs: style.Attrs}
}

// Style returns the cell's colors and attributes.
func (c Cell) Style() Style {
	return Style{FG: c.FG, BG: c.BG, Attrs: c.Attrs}
}

// Empty returns true if the cell is a blank with default style.
func (c Cell) Empty() bool {
	return c == DefaultCell()
}

// IsContinuation reports whether the cell is the right half of a wide glyph.
func (c Cell) IsContinuation() bool {
	return c.Width == 0
}

// sameStyle reports whether two cells share fg, bg and attributes.
func (c Cell) sameStyle(o Cell) bool {
	return c.FG == o.FG && c.BG == o.BG && c.Attrs == o.Attrs
}
