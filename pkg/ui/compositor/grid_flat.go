package compositor

// FlatGrid is the accelerated Grid: all cells live in one contiguous slice
// indexed y*width+x, so bulk operations reduce to copy calls.
type FlatGrid struct {
	width  int
	height int
	cells  []Cell
	blank  []Cell // one row of default cells used as a copy source
}

// NewFlatGrid creates a flat grid filled with default cells.
func NewFlatGrid(width, height int) (*FlatGrid, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	g := &FlatGrid{}
	g.alloc(width, height)
	return g, nil
}

func (g *FlatGrid) alloc(w, h int) {
	g.width = w
	g.height = h
	g.blank = make([]Cell, w)
	for i := range g.blank {
		g.blank[i] = DefaultCell()
	}
	g.cells = make([]Cell, w*h)
	for y := 0; y < h; y++ {
		copy(g.cells[y*w:(y+1)*w], g.blank)
	}
}

// Size returns current dimensions.
func (g *FlatGrid) Size() (int, int) {
	return g.width, g.height
}

// Get returns the cell at the given position, or DefaultCell out of bounds.
func (g *FlatGrid) Get(x, y int) Cell {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return DefaultCell()
	}
	return g.cells[y*g.width+x]
}

// Set stores a cell; out-of-bounds writes are ignored.
func (g *FlatGrid) Set(x, y int, c Cell) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return
	}
	g.cells[y*g.width+x] = c
}

// Fill fills a rect with one cell. The first row is filled cell by cell and
// the remaining rows are copied from it.
func (g *FlatGrid) Fill(x, y, w, h int, c Cell) {
	x0, y0, x1, y1, ok := clampRect(x, y, w, h, g.width, g.height)
	if !ok {
		return
	}
	first := g.cells[y0*g.width+x0 : y0*g.width+x1]
	for i := range first {
		first[i] = c
	}
	for row := y0 + 1; row < y1; row++ {
		copy(g.cells[row*g.width+x0:row*g.width+x1], first)
	}
}

// Resize changes dimensions, preserving content that fits.
func (g *FlatGrid) Resize(width, height int) error {
	if err := checkDimensions(width, height); err != nil {
		return err
	}
	if width == g.width && height == g.height {
		return nil
	}

	old, oldW, oldH := g.cells, g.width, g.height
	g.alloc(width, height)
	keep := min(width, oldW)
	for y := 0; y < min(height, oldH); y++ {
		copy(g.cells[y*width:y*width+keep], old[y*oldW:y*oldW+keep])
	}
	return nil
}

// CopyFrom copies every cell of other into g.
func (g *FlatGrid) CopyFrom(other Grid) error {
	if err := checkSameSize(g, other); err != nil {
		return err
	}
	if flat, ok := other.(*FlatGrid); ok {
		copy(g.cells, flat.cells)
		return nil
	}
	for y := 0; y < g.height; y++ {
		copy(g.cells[y*g.width:(y+1)*g.width], other.Row(y))
	}
	return nil
}

// Row returns row y, or nil out of range.
func (g *FlatGrid) Row(y int) []Cell {
	if y < 0 || y >= g.height {
		return nil
	}
	return g.cells[y*g.width : (y+1)*g.width : (y+1)*g.width]
}

// SetRow writes cells from (x, y) rightward, dropping what falls outside.
func (g *FlatGrid) SetRow(x, y int, cells []Cell) {
	if y < 0 || y >= g.height {
		return
	}
	if x < 0 {
		if -x >= len(cells) {
			return
		}
		cells = cells[-x:]
		x = 0
	}
	if x >= g.width {
		return
	}
	copy(g.cells[y*g.width+x:(y+1)*g.width], cells)
}

// Clear resets every cell to DefaultCell.
func (g *FlatGrid) Clear() {
	for y := 0; y < g.height; y++ {
		copy(g.cells[y*g.width:(y+1)*g.width], g.blank)
	}
}
