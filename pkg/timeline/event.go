package timeline

import (
	"fmt"
	"math"
	"time"
)

// Kind discriminates the Event union. Values double as persistence type names.
type Kind string

const (
	KindAbsoluteMove  Kind = "mouse_move"
	KindRelativeDelta Kind = "mouse_delta"
	KindButtonDown    Kind = "mouse_press"
	KindButtonUp      Kind = "mouse_release"
	KindScroll        Kind = "mouse_scroll"
	KindKeyDown       Kind = "key_press"
	KindKeyUp         Kind = "key_release"
)

// Valid reports whether k is one of the known event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAbsoluteMove, KindRelativeDelta, KindButtonDown, KindButtonUp, KindScroll, KindKeyDown, KindKeyUp:
		return true
	default:
		return false
	}
}

// Button identifies a pointer button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Valid reports whether b is a supported button.
func (b Button) Valid() bool {
	return b == ButtonLeft || b == ButtonRight || b == ButtonMiddle
}

// Key is a platform-neutral key identifier (virtual-key equivalent) with an optional label.
type Key struct {
	Code  uint32
	Label string
}

func (k Key) String() string {
	if k.Label != "" {
		return k.Label
	}
	return fmt.Sprintf("key_%d", k.Code)
}

// Event is a single timestamped entry of a Timeline.
//
// Only the fields relevant to Kind are meaningful:
// AbsoluteMove uses X, Y, DX, DY; RelativeDelta uses DX, DY, Synthetic;
// button events use Button, X, Y; Scroll uses ScrollDX, ScrollDY, X, Y;
// key events use Key.
type Event struct {
	At        time.Duration
	Kind      Kind
	X, Y      int
	DX, DY    float64
	Synthetic bool
	Button    Button
	ScrollDX  int
	ScrollDY  int
	Key       Key
}

// AbsoluteMove records the cursor reaching absolute screen coordinates.
func AbsoluteMove(at time.Duration, x, y int, dx, dy float64) Event {
	return Event{At: at, Kind: KindAbsoluteMove, X: x, Y: y, DX: dx, DY: dy}
}

// RelativeDelta records a processed relative motion sample.
func RelativeDelta(at time.Duration, dx, dy float64, synthetic bool) Event {
	return Event{At: at, Kind: KindRelativeDelta, DX: dx, DY: dy, Synthetic: synthetic}
}

// ButtonDown records a button press at the cursor position.
func ButtonDown(at time.Duration, b Button, x, y int) Event {
	return Event{At: at, Kind: KindButtonDown, Button: b, X: x, Y: y}
}

// ButtonUp records a button release at the cursor position.
func ButtonUp(at time.Duration, b Button, x, y int) Event {
	return Event{At: at, Kind: KindButtonUp, Button: b, X: x, Y: y}
}

// Scroll records wheel notches. Only the vertical axis is populated by capture.
func Scroll(at time.Duration, x, y, notchesX, notchesY int) Event {
	return Event{At: at, Kind: KindScroll, X: x, Y: y, ScrollDX: notchesX, ScrollDY: notchesY}
}

// KeyDown records a key press.
func KeyDown(at time.Duration, key Key) Event {
	return Event{At: at, Kind: KindKeyDown, Key: key}
}

// KeyUp records a key release.
func KeyUp(at time.Duration, key Key) Event {
	return Event{At: at, Kind: KindKeyUp, Key: key}
}

// Seconds returns the capture-relative timestamp in seconds.
func (e Event) Seconds() float64 {
	return e.At.Seconds()
}

// IsZeroDelta reports whether e is a relative delta carrying no motion.
func (e Event) IsZeroDelta() bool {
	return e.Kind == KindRelativeDelta && e.DX == 0 && e.DY == 0
}

// Validate checks the event is well formed.
func (e Event) Validate() error {
	if e.At < 0 {
		return fmt.Errorf("%w: negative timestamp %s", ErrInvalidEvent, e.At)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	switch e.Kind {
	case KindAbsoluteMove, KindRelativeDelta:
		if !finite(e.DX) || !finite(e.DY) {
			return fmt.Errorf("%w: non-finite delta (%v, %v)", ErrInvalidEvent, e.DX, e.DY)
		}
	case KindButtonDown, KindButtonUp:
		if !e.Button.Valid() {
			return fmt.Errorf("%w: unknown button %q", ErrInvalidEvent, e.Button)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FromSeconds converts a floating point second offset into a Duration,
// rounding to the nearest nanosecond so persisted values round-trip.
func FromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
