package replay

import "math"

// accumulator quantizes fractional deltas to integers while carrying the
// rounding remainder forward, so the injected total never differs from the
// ideal total by more than half a unit per axis.
type accumulator struct {
	x, y float64
}

func (a *accumulator) add(dx, dy float64) (int, int) {
	a.x += dx
	a.y += dy
	ix := math.Round(a.x)
	iy := math.Round(a.y)
	a.x -= ix
	a.y -= iy
	return int(ix), int(iy)
}
