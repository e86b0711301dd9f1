package replay

import (
	"context"
	"strconv"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// Injector submits synthetic input to the host. Coordinates passed to
// MoveAbsolute are normalized to 0..65535 across the screen. Errors are
// logged by the scheduler and never abort playback.
type Injector interface {
	MoveAbsolute(ctx context.Context, nx, ny int) error
	MoveRelative(ctx context.Context, dx, dy int) error
	Button(ctx context.Context, b timeline.Button, down bool) error
	Scroll(ctx context.Context, notches int) error
	Key(ctx context.Context, key timeline.Key, down bool) error
}

// LoopPolicy decides how many times a timeline is played.
type LoopPolicy struct {
	Enabled bool
	Count   int
}

// Once plays a timeline a single time.
var Once = LoopPolicy{}

// Unbounded reports whether playback repeats until cancelled.
func (p LoopPolicy) Unbounded() bool {
	return p.Enabled && p.Count <= 0
}

// Iterations returns the number of iterations, or -1 when unbounded.
func (p LoopPolicy) Iterations() int {
	switch {
	case !p.Enabled:
		return 1
	case p.Unbounded():
		return -1
	default:
		return p.Count
	}
}

// Continue reports whether iteration i (zero based) should run.
func (p LoopPolicy) Continue(i int) bool {
	n := p.Iterations()
	return n < 0 || i < n
}

// String renders the policy for status output.
func (p LoopPolicy) String() string {
	switch n := p.Iterations(); {
	case n < 0:
		return "∞"
	case n == 1 && !p.Enabled:
		return "once"
	default:
		return "x" + strconv.Itoa(n)
	}
}

// Screen is the size of the target display used to normalize absolute moves.
type Screen struct {
	Width  int
	Height int
}

// Normalize maps pixel coordinates onto the 0..65535 absolute range.
func (s Screen) Normalize(x, y int) (int, int) {
	return x * 65535 / s.Width, y * 65535 / s.Height
}
