// Package sim provides an in-memory terminal host for testing.
// Output is decoded with go-ansicode into a cell screen so tests can assert
// on what a real terminal would show.
package sim

import (
	"strings"
	"sync"

	"github.com/danielgatis/go-ansicode"
	"github.com/mattn/go-runewidth"

	"github.com/odvcencio/termframe/pkg/ui/backend"
)

// Color is a cell color as seen by the terminal. Valid is false for the
// terminal default. Palette colors are resolved to RGB.
type Color struct {
	RGB   uint32
	Valid bool
}

// Attribute bits, in the compositor's order.
const (
	AttrBold uint8 = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrReverse
)

// widthCond treats East Asian ambiguous glyphs as narrow, matching the
// compositor.
var widthCond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// Cell is one screen position. Rune is 0 for the right half of a wide glyph.
type Cell struct {
	Rune  rune
	FG    Color
	BG    Color
	Attrs uint8
}

var blankCell = Cell{Rune: ' '}

// Host is a simulated terminal.
type Host struct {
	mu sync.Mutex

	scr *screen
	dec *ansicode.Decoder

	output []byte
	writes int

	initialized bool
	sizeErr     error
	writeErr    error
	resizeCB    func()
}

var (
	_ backend.Host           = (*Host)(nil)
	_ backend.ResizeNotifier = (*Host)(nil)
)

// New creates a simulated terminal with the given dimensions.
func New(width, height int) *Host {
	scr := newScreen(width, height)
	return &Host{scr: scr, dec: ansicode.NewDecoder(scr)}
}

// Init marks the host ready.
func (h *Host) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initialized = true
	return nil
}

// Fini marks the host closed.
func (h *Host) Fini() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initialized = false
}

// Initialized reports whether Init ran without a matching Fini.
func (h *Host) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}

// Size returns the simulated dimensions, or the injected size error.
func (h *Host) Size() (int, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sizeErr != nil {
		return 0, 0, h.sizeErr
	}
	return h.scr.width, h.scr.height, nil
}

// NotifyResize registers a callback fired by Resize.
func (h *Host) NotifyResize(cb func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resizeCB = cb
}

// Resize changes the terminal size. Like most terminals, content is kept
// where it fits.
func (h *Host) Resize(width, height int) {
	h.mu.Lock()
	h.scr.resize(width, height)
	cb := h.resizeCB
	h.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// FailSize makes Size return err until cleared with nil.
func (h *Host) FailSize(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sizeErr = err
}

// FailWrites makes Write return err until cleared with nil.
func (h *Host) FailWrites(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeErr = err
}

// Write decodes p as terminal output. Sequences split across writes are
// completed by later writes.
func (h *Host) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.writeErr != nil {
		return 0, h.writeErr
	}
	h.writes++
	h.output = append(h.output, p...)
	if _, err := h.dec.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Writes returns how many successful Write calls the host received.
func (h *Host) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}

// Output returns every byte written so far.
func (h *Host) Output() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.output...)
}

// ResetOutput forgets recorded output without touching the screen.
func (h *Host) ResetOutput() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.output = h.output[:0]
	h.writes = 0
}

// CellAt returns the cell at (x, y), or a blank cell out of range.
func (h *Host) CellAt(x, y int) Cell {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scr.cellAt(x, y)
}

// Cursor returns the cursor position and visibility.
func (h *Host) Cursor() (x, y int, visible bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scr.curX, h.scr.curY, h.scr.cursorVisible
}

// AltScreen reports whether the alternate screen is active.
func (h *Host) AltScreen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scr.altScreen
}

// AutoWrap reports whether auto-wrap mode is on.
func (h *Host) AutoWrap() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scr.autoWrap
}

// Capture returns the screen text, one line per row. The right halves of
// wide glyphs are omitted so lines read as they appear.
func (h *Host) Capture() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.scr
	lines := make([]string, s.height)
	for y := 0; y < s.height; y++ {
		var line strings.Builder
		for _, c := range s.row(y) {
			if c.Rune == 0 {
				continue
			}
			line.WriteRune(c.Rune)
		}
		lines[y] = line.String()
	}
	return strings.Join(lines, "\n")
}

// FindText searches for text on the screen and returns its position.
func (h *Host) FindText(text string) (x, y int) {
	for row, line := range strings.Split(h.Capture(), "\n") {
		if col := strings.Index(line, text); col >= 0 {
			return widthCond.StringWidth(line[:col]), row
		}
	}
	return -1, -1
}

// ContainsText returns true if the text appears anywhere on screen.
func (h *Host) ContainsText(text string) bool {
	x, _ := h.FindText(text)
	return x >= 0
}
