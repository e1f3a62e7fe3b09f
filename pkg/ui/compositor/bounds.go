package compositor

// Rect represents a rectangular area of the screen.
type Rect struct {
	X, Y, Width, Height int
}

// Contains checks if a point is within the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Intersect returns the intersection of two rects.
func (r Rect) Intersect(other Rect) Rect {
	x1 := max(r.X, other.X)
	y1 := max(r.Y, other.Y)
	x2 := min(r.X+r.Width, other.X+other.Width)
	y2 := min(r.Y+r.Height, other.Y+other.Height)

	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}

	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IsEmpty returns true if the rect has zero area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Bounds returns the inclusive bounds covering r.
func (r Rect) Bounds() Bounds {
	if r.IsEmpty() {
		return EmptyBounds()
	}
	return Bounds{MinX: r.X, MinY: r.Y, MaxX: r.X + r.Width - 1, MaxY: r.Y + r.Height - 1}
}

// Bounds is an inclusive box of cells. MinX > MaxX marks the empty box.
type Bounds struct {
	MinX, MinY, MaxX, MaxY int
}

// EmptyBounds returns a box containing no cells.
func EmptyBounds() Bounds {
	return Bounds{MinX: 1, MinY: 1, MaxX: 0, MaxY: 0}
}

// FullBounds returns a box covering a w x h grid.
func FullBounds(w, h int) Bounds {
	return Rect{Width: w, Height: h}.Bounds()
}

// Empty reports whether the box contains no cells.
func (b Bounds) Empty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Include grows the box to contain (x, y).
func (b Bounds) Include(x, y int) Bounds {
	if b.Empty() {
		return Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y}
	}
	b.MinX = min(b.MinX, x)
	b.MinY = min(b.MinY, y)
	b.MaxX = max(b.MaxX, x)
	b.MaxY = max(b.MaxY, y)
	return b
}

// Union returns the smallest box containing both boxes.
func (b Bounds) Union(o Bounds) Bounds {
	switch {
	case o.Empty():
		return b
	case b.Empty():
		return o
	}
	return Bounds{
		MinX: min(b.MinX, o.MinX),
		MinY: min(b.MinY, o.MinY),
		MaxX: max(b.MaxX, o.MaxX),
		MaxY: max(b.MaxY, o.MaxY),
	}
}

// Clamp restricts the box to a w x h grid.
func (b Bounds) Clamp(w, h int) Bounds {
	if b.Empty() {
		return b
	}
	b.MinX = max(b.MinX, 0)
	b.MinY = max(b.MinY, 0)
	b.MaxX = min(b.MaxX, w-1)
	b.MaxY = min(b.MaxY, h-1)
	if b.Empty() {
		return EmptyBounds()
	}
	return b
}

// Cells returns the number of cells in the box.
func (b Bounds) Cells() int {
	if b.Empty() {
		return 0
	}
	return (b.MaxX - b.MinX + 1) * (b.MaxY - b.MinY + 1)
}
