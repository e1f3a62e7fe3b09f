package compositor

import (
	"fmt"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
)

// Grid is a fixed-size rectangular array of cells.
// Every coordinate access is bounds-checked: out-of-range reads return
// DefaultCell and out-of-range writes are ignored.
type Grid interface {
	Size() (width, height int)
	Get(x, y int) Cell
	// Set overwrites a cell unconditionally. Z-testing is the caller's job.
	Set(x, y int, c Cell)
	// Fill writes c into the rect, clamped to the grid.
	Fill(x, y, w, h int, c Cell)
	// Resize reallocates the grid, preserving the overlapping top-left rect.
	Resize(width, height int) error
	// CopyFrom copies other into this grid. Dimensions must match.
	CopyFrom(other Grid) error
	// Row returns row y for reading, or nil when y is out of range.
	// The slice must not be modified or retained past the next mutation.
	Row(y int) []Cell
	// SetRow block-writes cells starting at (x, y), clamped to the grid.
	SetRow(x, y int, cells []Cell)
	// Clear resets every cell to DefaultCell.
	Clear()
}

// GridKind selects a Grid implementation.
type GridKind int

const (
	// GridReference stores rows as separate slices.
	GridReference GridKind = iota
	// GridAccelerated stores all cells in one contiguous slice.
	GridAccelerated
)

func (k GridKind) String() string {
	switch k {
	case GridReference:
		return "reference"
	case GridAccelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("GridKind(%d)", int(k))
	}
}

// ParseGridKind maps a config name to a GridKind.
func ParseGridKind(name string) (GridKind, error) {
	switch name {
	case "", "accelerated", "flat":
		return GridAccelerated, nil
	case "reference", "rows":
		return GridReference, nil
	default:
		return GridAccelerated, apperrors.Newf(apperrors.ErrCodeInvalidInput, "unknown grid store %q", name)
	}
}

// NewGrid allocates a width x height grid of the given kind.
func NewGrid(kind GridKind, width, height int) (Grid, error) {
	switch kind {
	case GridReference:
		return NewRowGrid(width, height)
	case GridAccelerated:
		return NewFlatGrid(width, height)
	default:
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidInput, "unknown grid kind %d", int(kind))
	}
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return apperrors.Newf(apperrors.ErrCodeInvalidDimensions, "grid dimensions must be positive, got %dx%d", width, height).
			WithContext("width", width).
			WithContext("height", height)
	}
	return nil
}

func checkSameSize(dst, src Grid) error {
	dw, dh := dst.Size()
	sw, sh := src.Size()
	if dw != sw || dh != sh {
		return apperrors.Newf(apperrors.ErrCodeSizeMismatch, "cannot copy %dx%d grid into %dx%d grid", sw, sh, dw, dh)
	}
	return nil
}

// clampRect clips (x, y, w, h) to a width x height grid and reports the
// half-open column and row ranges.
func clampRect(x, y, w, h, width, height int) (x0, y0, x1, y1 int, ok bool) {
	x0 = max(0, x)
	y0 = max(0, y)
	x1 = min(width, x+w)
	y1 = min(height, y+h)
	return x0, y0, x1, y1, x0 < x1 && y0 < y1
}
