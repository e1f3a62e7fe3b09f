package compositor

// RowGrid is the reference Grid: one slice per row.
type RowGrid struct {
	width  int
	height int
	rows   [][]Cell
}

// NewRowGrid creates a row-backed grid filled with default cells.
func NewRowGrid(width, height int) (*RowGrid, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	return &RowGrid{width: width, height: height, rows: allocRows(width, height)}, nil
}

func allocRows(w, h int) [][]Cell {
	rows := make([][]Cell, h)
	for y := range rows {
		rows[y] = make([]Cell, w)
		for x := range rows[y] {
			rows[y][x] = DefaultCell()
		}
	}
	return rows
}

// Size returns current dimensions.
func (g *RowGrid) Size() (int, int) {
	return g.width, g.height
}

// Get returns the cell at the given position, or DefaultCell out of bounds.
func (g *RowGrid) Get(x, y int) Cell {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return DefaultCell()
	}
	return g.rows[y][x]
}

// Set stores a cell; out-of-bounds writes are ignored.
func (g *RowGrid) Set(x, y int, c Cell) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return
	}
	g.rows[y][x] = c
}

// Fill fills a rect with one cell.
func (g *RowGrid) Fill(x, y, w, h int, c Cell) {
	x0, y0, x1, y1, ok := clampRect(x, y, w, h, g.width, g.height)
	if !ok {
		return
	}
	for row := y0; row < y1; row++ {
		line := g.rows[row]
		for col := x0; col < x1; col++ {
			line[col] = c
		}
	}
}

// Resize changes dimensions, preserving content that fits.
func (g *RowGrid) Resize(width, height int) error {
	if err := checkDimensions(width, height); err != nil {
		return err
	}
	if width == g.width && height == g.height {
		return nil
	}

	rows := allocRows(width, height)
	for y := 0; y < min(height, g.height); y++ {
		copy(rows[y][:min(width, g.width)], g.rows[y])
	}

	g.rows = rows
	g.width = width
	g.height = height
	return nil
}

// CopyFrom copies every cell of other into g.
func (g *RowGrid) CopyFrom(other Grid) error {
	if err := checkSameSize(g, other); err != nil {
		return err
	}
	for y := range g.rows {
		copy(g.rows[y], other.Row(y))
	}
	return nil
}

// Row returns row y, or nil out of range.
func (g *RowGrid) Row(y int) []Cell {
	if y < 0 || y >= g.height {
		return nil
	}
	return g.rows[y]
}

// SetRow writes cells from (x, y) rightward, dropping what falls outside.
func (g *RowGrid) SetRow(x, y int, cells []Cell) {
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
	copy(g.rows[y][x:], cells)
}

// Clear resets every cell to DefaultCell.
func (g *RowGrid) Clear() {
	blank := DefaultCell()
	for y := range g.rows {
		line := g.rows[y]
		for x := range line {
			line[x] = blank
		}
	}
}
