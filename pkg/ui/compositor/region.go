package compositor

import (
	"slices"
	"strings"
)

// GridGap is the number of columns left between DefineGrid columns.
const GridGap = 4

// Region is a named rectangle positioned relative to its parent. Resolved
// position and depth are the sums along the parent chain.
type Region struct {
	ID       string
	X, Y     int
	Width    int
	Height   int
	Z        int
	ParentID string
}

// Column describes one column of a DefineGrid call.
type Column struct {
	Name  string
	Width int
}

// Layout is a flat registry of regions keyed by ID.
type Layout struct {
	regions map[string]Region
	grids   map[string][]string // parent ID -> children created by DefineGrid
}

// NewLayout creates an empty layout.
func NewLayout() *Layout {
	return &Layout{
		regions: make(map[string]Region),
		grids:   make(map[string][]string),
	}
}

// Define adds or replaces a region.
func (l *Layout) Define(r Region) {
	l.regions[r.ID] = r
}

// Get returns the region as defined, without resolving its parents.
func (l *Layout) Get(id string) (Region, bool) {
	r, ok := l.regions[id]
	return r, ok
}

// Remove deletes a region. Children keep their parent ID and stop resolving
// until a region with that ID is defined again.
func (l *Layout) Remove(id string) {
	delete(l.regions, id)
	delete(l.grids, id)
}

// Len returns the number of regions.
func (l *Layout) Len() int {
	return len(l.regions)
}

// Resolve returns the screen rectangle and depth of a region. It fails for
// unknown regions, regions whose parent chain reaches an unknown ID, and
// parent cycles.
func (l *Layout) Resolve(id string) (Rect, int, bool) {
	r, ok := l.regions[id]
	if !ok {
		return Rect{}, 0, false
	}

	rect := Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
	z := r.Z
	parent := r.ParentID
	for steps := 0; parent != ""; steps++ {
		if steps >= len(l.regions) {
			return Rect{}, 0, false
		}
		p, ok := l.regions[parent]
		if !ok {
			return Rect{}, 0, false
		}
		rect.X += p.X
		rect.Y += p.Y
		z += p.Z
		parent = p.ParentID
	}
	return rect, z, true
}

// DefineGrid (re)defines parentID at (x, y) with the given size and lays
// out one child per column, left to right, separated by GridGap columns.
// Child IDs are parentID + "_" + column name. Widths are clamped to the
// space left in the parent. Children from a previous DefineGrid on the same
// parent are removed. The parent keeps its own parent and depth if it was
// already defined.
func (l *Layout) DefineGrid(parentID string, x, y, width, height int, cols []Column) []string {
	parent := Region{ID: parentID, X: x, Y: y, Width: width, Height: height}
	if old, ok := l.regions[parentID]; ok {
		parent.Z = old.Z
		parent.ParentID = old.ParentID
	}
	l.regions[parentID] = parent

	for _, id := range l.grids[parentID] {
		delete(l.regions, id)
	}

	ids := make([]string, 0, len(cols))
	cursor := 0
	for _, col := range cols {
		w := min(max(col.Width, 0), max(width-cursor, 0))
		id := parentID + "_" + col.Name
		l.regions[id] = Region{
			ID:       id,
			X:        cursor,
			Width:    w,
			Height:   height,
			ParentID: parentID,
		}
		ids = append(ids, id)
		cursor += max(col.Width, 0) + GridGap
	}
	l.grids[parentID] = ids
	return ids
}

// Children returns the IDs of the regions whose parent is parentID, ordered
// left to right then top to bottom.
func (l *Layout) Children(parentID string) []string {
	var ids []string
	for id, r := range l.regions {
		if r.ParentID == parentID && id != parentID {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		ra, rb := l.regions[a], l.regions[b]
		if ra.X != rb.X {
			return ra.X - rb.X
		}
		if ra.Y != rb.Y {
			return ra.Y - rb.Y
		}
		return strings.Compare(a, b)
	})
	return ids
}

// Layout returns the engine's region registry.
func (e *Engine) Layout() *Layout {
	return e.layout
}

// DefineRegion adds or replaces a region.
func (e *Engine) DefineRegion(r Region) {
	e.layout.Define(r)
}

// RegionBounds resolves a region to screen coordinates and depth.
func (e *Engine) RegionBounds(id string) (Rect, int, bool) {
	return e.layout.Resolve(id)
}

// DefineGrid lays out columns inside parentID. See Layout.DefineGrid.
func (e *Engine) DefineGrid(parentID string, x, y, width, height int, cols []Column) []string {
	return e.layout.DefineGrid(parentID, x, y, width, height, cols)
}

// ChildRegions lists the children of parentID.
func (e *Engine) ChildRegions(parentID string) []string {
	return e.layout.Children(parentID)
}

// inRegion runs fn with the region's depth, no offset, and a clip to the
// region's screen rectangle. Unresolvable regions are skipped.
func (e *Engine) inRegion(id string, fn func(r Rect)) bool {
	if !e.inFrame {
		return false
	}
	r, z, ok := e.layout.Resolve(id)
	if !ok {
		e.log.Debug("write to unresolved region", "region", id)
		return false
	}

	savedZ, savedDX, savedDY := e.currentZ, e.dx, e.dy
	depth := len(e.clips)
	defer func() {
		e.currentZ, e.dx, e.dy = savedZ, savedDX, savedDY
		if len(e.clips) > depth {
			prev := e.clips[depth]
			e.clip, e.clipped = prev.rect, prev.clipped
			e.clips = e.clips[:depth]
		}
	}()

	e.currentZ, e.dx, e.dy = z, 0, 0
	e.pushClipAbs(r)
	fn(r)
	return true
}

// WriteToRegion writes text at the top-left of a region, clipped to it and
// at the region's depth. It reports whether the region resolved.
func (e *Engine) WriteToRegion(id, text string, fg, bg Color) bool {
	return e.inRegion(id, func(r Rect) {
		e.WriteAt(r.X, r.Y, text, fg, bg)
	})
}

// FillRegion fills a region with ch at the region's depth.
func (e *Engine) FillRegion(id string, ch rune, fg, bg Color) bool {
	return e.inRegion(id, func(r Rect) {
		e.Fill(r.X, r.Y, r.Width, r.Height, ch, fg, bg)
	})
}
