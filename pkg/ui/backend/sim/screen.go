package sim

import (
	"image/color"

	"github.com/danielgatis/go-ansicode"
	"github.com/muesli/termenv"
)

const tabWidth = 8

// screen is the decoded terminal state. It implements ansicode.Handler;
// callbacks run while Host holds its lock.
type screen struct {
	width, height int
	cells         []Cell

	curX, curY    int
	cursorVisible bool
	altScreen     bool
	autoWrap      bool

	fg, bg Color
	attrs  uint8

	saved savedCursor
}

type savedCursor struct {
	x, y   int
	fg, bg Color
	attrs  uint8
}

var _ ansicode.Handler = (*screen)(nil)

func newScreen(width, height int) *screen {
	s := &screen{cursorVisible: true, autoWrap: true}
	s.alloc(width, height)
	return s
}

func (s *screen) alloc(w, h int) {
	s.width, s.height = max(w, 0), max(h, 0)
	s.cells = make([]Cell, s.width*s.height)
	for i := range s.cells {
		s.cells[i] = blankCell
	}
}

func (s *screen) resize(w, h int) {
	old, oldW, oldH := s.cells, s.width, s.height
	s.alloc(w, h)
	for y := 0; y < min(s.height, oldH); y++ {
		copy(s.cells[y*s.width:y*s.width+min(s.width, oldW)], old[y*oldW:])
	}
	s.curX = clamp(s.curX, 0, s.width-1)
	s.curY = clamp(s.curY, 0, s.height-1)
}

func (s *screen) row(y int) []Cell {
	return s.cells[y*s.width : (y+1)*s.width]
}

func (s *screen) cellAt(x, y int) Cell {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return blankCell
	}
	return s.cells[y*s.width+x]
}

func (s *screen) blank() Cell {
	return Cell{Rune: ' ', BG: s.bg}
}

func (s *screen) fill(row []Cell) {
	b := s.blank()
	for i := range row {
		row[i] = b
	}
}

// Input prints r at the cursor. Writing over either half of a wide glyph
// erases the other half.
func (s *screen) Input(r rune) {
	if s.width == 0 || s.height == 0 {
		return
	}
	w := widthCond.RuneWidth(r)
	if w <= 0 {
		w = 1
	}
	if s.curX >= s.width {
		s.curX = 0
		s.LineFeed()
	}
	if w == 2 && s.curX+1 >= s.width {
		if !s.autoWrap || s.width < 2 {
			return
		}
		s.curX = 0
		s.LineFeed()
	}

	row := s.row(s.curY)
	x := s.curX
	if x > 0 && row[x].Rune == 0 {
		row[x-1].Rune = ' '
	}
	if end := x + w; end < s.width && row[end].Rune == 0 {
		row[end].Rune = ' '
	}

	row[x] = Cell{Rune: r, FG: s.fg, BG: s.bg, Attrs: s.attrs}
	if w == 2 {
		row[x+1] = Cell{FG: s.fg, BG: s.bg, Attrs: s.attrs}
	}
	s.curX += w
	if !s.autoWrap && s.curX >= s.width {
		s.curX = s.width - 1
	}
}

// SetTerminalCharAttribute applies one SGR attribute.
func (s *screen) SetTerminalCharAttribute(attr ansicode.TerminalCharAttribute) {
	switch attr.Attr {
	case ansicode.CharAttributeReset:
		s.fg, s.bg, s.attrs = Color{}, Color{}, 0
	case ansicode.CharAttributeBold:
		s.attrs |= AttrBold
	case ansicode.CharAttributeDim:
		s.attrs |= AttrDim
	case ansicode.CharAttributeItalic:
		s.attrs |= AttrItalic
	case ansicode.CharAttributeUnderline, ansicode.CharAttributeDoubleUnderline,
		ansicode.CharAttributeCurlyUnderline, ansicode.CharAttributeDottedUnderline,
		ansicode.CharAttributeDashedUnderline:
		s.attrs |= AttrUnderline
	case ansicode.CharAttributeReverse:
		s.attrs |= AttrReverse
	case ansicode.CharAttributeCancelBold:
		s.attrs &^= AttrBold
	case ansicode.CharAttributeCancelBoldDim:
		s.attrs &^= AttrBold | AttrDim
	case ansicode.CharAttributeCancelItalic:
		s.attrs &^= AttrItalic
	case ansicode.CharAttributeCancelUnderline:
		s.attrs &^= AttrUnderline
	case ansicode.CharAttributeCancelReverse:
		s.attrs &^= AttrReverse
	case ansicode.CharAttributeForeground:
		s.fg = resolveColor(attr)
	case ansicode.CharAttributeBackground:
		s.bg = resolveColor(attr)
	}
}

// resolveColor maps an SGR color to RGB. Palette entries use the xterm
// palette termenv converts against; named defaults map to the terminal
// default.
func resolveColor(attr ansicode.TerminalCharAttribute) Color {
	switch {
	case attr.RGBColor != nil:
		c := attr.RGBColor
		return Color{RGB: uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B), Valid: true}
	case attr.IndexedColor != nil:
		return paletteColor(termenv.ANSI256Color(int(attr.IndexedColor.Index)))
	case attr.NamedColor != nil && int(*attr.NamedColor) < 16:
		return paletteColor(termenv.ANSIColor(int(*attr.NamedColor)))
	}
	return Color{}
}

func paletteColor(c termenv.Color) Color {
	r, g, b := termenv.ConvertToRGB(c).RGB255()
	return Color{RGB: uint32(r)<<16 | uint32(g)<<8 | uint32(b), Valid: true}
}

func (s *screen) SetMode(mode ansicode.TerminalMode) { s.setMode(mode, true) }
func (s *screen) UnsetMode(mode ansicode.TerminalMode) { s.setMode(mode, false) }

func (s *screen) setMode(mode ansicode.TerminalMode, on bool) {
	switch mode {
	case ansicode.TerminalModeShowCursor:
		s.cursorVisible = on
	case ansicode.TerminalModeLineWrap:
		s.autoWrap = on
	case ansicode.TerminalModeSwapScreenAndSetRestoreCursor:
		s.altScreen = on
	}
}

func (s *screen) Goto(row, col int) {
	s.curY = clamp(row, 0, s.height-1)
	s.curX = clamp(col, 0, s.width-1)
}

func (s *screen) GotoCol(col int) { s.curX = clamp(col, 0, s.width-1) }
func (s *screen) GotoLine(row int) { s.curY = clamp(row, 0, s.height-1) }

func (s *screen) MoveUp(n int) { s.curY = clamp(s.curY-max(n, 1), 0, s.height-1) }
func (s *screen) MoveDown(n int) { s.curY = clamp(s.curY+max(n, 1), 0, s.height-1) }
func (s *screen) MoveForward(n int) { s.curX = clamp(s.curX+max(n, 1), 0, s.width-1) }
func (s *screen) MoveBackward(n int) { s.curX = clamp(s.curX-max(n, 1), 0, s.width-1) }

func (s *screen) MoveUpCr(n int) {
	s.MoveUp(n)
	s.curX = 0
}

func (s *screen) MoveDownCr(n int) {
	s.MoveDown(n)
	s.curX = 0
}

func (s *screen) CarriageReturn() { s.curX = 0 }

func (s *screen) Backspace() {
	s.curX = clamp(s.curX-1, 0, s.width-1)
}

func (s *screen) LineFeed() {
	if s.curY < s.height-1 {
		s.curY++
		return
	}
	s.ScrollUp(1)
}

func (s *screen) ReverseIndex() {
	if s.curY > 0 {
		s.curY--
		return
	}
	s.ScrollDown(1)
}

func (s *screen) Tab(n int) {
	for i := 0; i < max(n, 1); i++ {
		s.curX = min((s.curX/tabWidth+1)*tabWidth, s.width-1)
	}
}

func (s *screen) MoveForwardTabs(n int) { s.Tab(n) }

func (s *screen) MoveBackwardTabs(n int) {
	for i := 0; i < max(n, 1); i++ {
		s.curX = max((s.curX-1)/tabWidth*tabWidth, 0)
	}
}

// ScrollUp moves every row up n lines, blanking the bottom.
func (s *screen) ScrollUp(n int) {
	n = clamp(n, 0, s.height)
	copy(s.cells, s.cells[n*s.width:])
	for y := s.height - n; y < s.height; y++ {
		s.fill(s.row(y))
	}
}

// ScrollDown moves every row down n lines, blanking the top.
func (s *screen) ScrollDown(n int) {
	n = clamp(n, 0, s.height)
	copy(s.cells[n*s.width:], s.cells)
	for y := 0; y < n; y++ {
		s.fill(s.row(y))
	}
}

func (s *screen) ClearScreen(mode ansicode.ClearMode) {
	switch mode {
	case ansicode.ClearModeBelow:
		s.ClearLine(ansicode.LineClearModeRight)
		for y := s.curY + 1; y < s.height; y++ {
			s.fill(s.row(y))
		}
	case ansicode.ClearModeAbove:
		for y := 0; y < s.curY; y++ {
			s.fill(s.row(y))
		}
		s.ClearLine(ansicode.LineClearModeLeft)
	default:
		s.fill(s.cells)
	}
}

func (s *screen) ClearLine(mode ansicode.LineClearMode) {
	if s.curY >= s.height {
		return
	}
	row := s.row(s.curY)
	x := min(s.curX, s.width)
	switch mode {
	case ansicode.LineClearModeRight:
		s.fill(row[x:])
	case ansicode.LineClearModeLeft:
		s.fill(row[:min(x+1, s.width)])
	default:
		s.fill(row)
	}
}

func (s *screen) EraseChars(n int) {
	if s.curY >= s.height {
		return
	}
	row := s.row(s.curY)
	x := min(s.curX, s.width)
	s.fill(row[x:min(x+max(n, 1), s.width)])
}

func (s *screen) DeleteChars(n int) {
	if s.curY >= s.height || s.curX >= s.width {
		return
	}
	row := s.row(s.curY)
	x := s.curX
	n = clamp(n, 1, s.width-x)
	copy(row[x:], row[x+n:])
	s.fill(row[s.width-n:])
}

func (s *screen) InsertBlank(n int) {
	if s.curY >= s.height || s.curX >= s.width {
		return
	}
	row := s.row(s.curY)
	x := s.curX
	n = clamp(n, 1, s.width-x)
	copy(row[x+n:], row[x:])
	s.fill(row[x : x+n])
}

func (s *screen) SaveCursorPosition() {
	s.saved = savedCursor{x: s.curX, y: s.curY, fg: s.fg, bg: s.bg, attrs: s.attrs}
}

func (s *screen) RestoreCursorPosition() {
	s.curX = clamp(s.saved.x, 0, s.width-1)
	s.curY = clamp(s.saved.y, 0, s.height-1)
	s.fg, s.bg, s.attrs = s.saved.fg, s.saved.bg, s.saved.attrs
}

// ResetState performs a full reset (RIS).
func (s *screen) ResetState() {
	s.fg, s.bg, s.attrs = Color{}, Color{}, 0
	s.curX, s.curY = 0, 0
	s.cursorVisible, s.autoWrap, s.altScreen = true, true, false
	s.saved = savedCursor{}
	s.fill(s.cells)
}

// Decaln fills the screen with 'E'.
func (s *screen) Decaln() {
	for i := range s.cells {
		s.cells[i] = Cell{Rune: 'E'}
	}
}

// Sequences below carry no screen state the compositor depends on.

func (s *screen) ApplicationCommandReceived([]byte) {}
func (s *screen) Bell() {}
func (s *screen) ClearTabs(ansicode.TabulationClearMode) {}
func (s *screen) ClipboardLoad(byte, string) {}
func (s *screen) ClipboardStore(byte, []byte) {}
func (s *screen) ConfigureCharset(ansicode.CharsetIndex, ansicode.Charset) {}
func (s *screen) DeleteLines(int) {}
func (s *screen) DeviceStatus(int) {}
func (s *screen) HorizontalTabSet() {}
func (s *screen) IdentifyTerminal(byte) {}
func (s *screen) InsertBlankLines(int) {}
func (s *screen) PopKeyboardMode(int) {}
func (s *screen) PopTitle() {}
func (s *screen) PrivacyMessageReceived([]byte) {}
func (s *screen) PushKeyboardMode(ansicode.KeyboardMode) {}
func (s *screen) PushTitle() {}
func (s *screen) ReportKeyboardMode() {}
func (s *screen) ReportModifyOtherKeys() {}
func (s *screen) ResetColor(int) {}
func (s *screen) SetActiveCharset(int) {}
func (s *screen) SetColor(int, color.Color) {}
func (s *screen) SetCursorStyle(ansicode.CursorStyle) {}
func (s *screen) SetDynamicColor(string, int, string) {}
func (s *screen) SetHyperlink(*ansicode.Hyperlink) {}
func (s *screen) SetKeyboardMode(ansicode.KeyboardMode, ansicode.KeyboardModeBehavior) {}
func (s *screen) SetKeypadApplicationMode() {}
func (s *screen) SetModifyOtherKeys(ansicode.ModifyOtherKeys) {}
func (s *screen) SetScrollingRegion(int, int) {}
func (s *screen) SetTitle(string) {}
func (s *screen) SetWorkingDirectory(string) {}
func (s *screen) StartOfStringReceived([]byte) {}
func (s *screen) SixelReceived([][]uint16, []byte) {}
func (s *screen) Substitute() {}
func (s *screen) TextAreaSizeChars() {}
func (s *screen) TextAreaSizePixels() {}
func (s *screen) CellSizePixels() {}
func (s *screen) UnsetKeypadApplicationMode() {}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
