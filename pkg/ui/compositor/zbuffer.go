package compositor

import "math"

// ZUnpainted marks a slot that no write has claimed this frame.
const ZUnpainted = math.MinInt

// ZBuffer records, per cell, the Z-layer of the write that currently owns it.
// Higher-or-equal Z wins; among equal Z the last writer wins.
type ZBuffer struct {
	width  int
	height int
	z      []int
}

// NewZBuffer creates a buffer with every slot unpainted.
func NewZBuffer(width, height int) (*ZBuffer, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	zb := &ZBuffer{width: width, height: height, z: make([]int, width*height)}
	zb.Clear()
	return zb, nil
}

// Size returns current dimensions.
func (zb *ZBuffer) Size() (int, int) {
	return zb.width, zb.height
}

// Get returns the owning Z, or ZUnpainted out of range.
func (zb *ZBuffer) Get(x, y int) int {
	if x < 0 || x >= zb.width || y < 0 || y >= zb.height {
		return ZUnpainted
	}
	return zb.z[y*zb.width+x]
}

// Set stores z unconditionally.
func (zb *ZBuffer) Set(x, y, z int) {
	if x < 0 || x >= zb.width || y < 0 || y >= zb.height {
		return
	}
	zb.z[y*zb.width+x] = z
}

// Test reports whether a write at z would be permitted, without claiming it.
func (zb *ZBuffer) Test(x, y, z int) bool {
	if x < 0 || x >= zb.width || y < 0 || y >= zb.height {
		return false
	}
	return z >= zb.z[y*zb.width+x]
}

// TestAndSet claims the slot for z when z >= current and reports whether
// the write may proceed.
func (zb *ZBuffer) TestAndSet(x, y, z int) bool {
	if x < 0 || x >= zb.width || y < 0 || y >= zb.height {
		return false
	}
	i := y*zb.width + x
	if z < zb.z[i] {
		return false
	}
	zb.z[i] = z
	return true
}

// Clear resets every slot to ZUnpainted.
func (zb *ZBuffer) Clear() {
	for i := range zb.z {
		zb.z[i] = ZUnpainted
	}
}

// Resize reallocates the buffer. Z ownership is per frame, so nothing is
// preserved.
func (zb *ZBuffer) Resize(width, height int) error {
	if err := checkDimensions(width, height); err != nil {
		return err
	}
	if width != zb.width || height != zb.height {
		zb.width = width
		zb.height = height
		zb.z = make([]int, width*height)
	}
	zb.Clear()
	return nil
}
