package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// NotificationKind identifies what an OS hook reported.
type NotificationKind string

const (
	NotifyMove       NotificationKind = "move"
	NotifyButtonDown NotificationKind = "button_down"
	NotifyButtonUp   NotificationKind = "button_up"
	NotifyWheel      NotificationKind = "wheel"
	NotifyKeyDown    NotificationKind = "key_down"
	NotifyKeyUp      NotificationKind = "key_up"
)

// Notification is a discrete input notification as delivered by the capture
// collaborator. X and Y are the cursor position at the time of the
// notification; Wheel is expressed in notches.
type Notification struct {
	Kind     NotificationKind
	X, Y     int
	Button   timeline.Button
	Wheel    int
	Key      timeline.Key
	Injected bool
	Repeat   bool
}

// Validate reports whether the notification carries a known kind and the
// payload that kind requires.
func (n Notification) Validate() error {
	switch n.Kind {
	case NotifyMove, NotifyWheel, NotifyKeyDown, NotifyKeyUp:
		return nil
	case NotifyButtonDown, NotifyButtonUp:
		if !n.Button.Valid() {
			return fmt.Errorf("%w: button %q", ErrUnknownNotification, n.Button)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNotification, n.Kind)
	}
}

// Classifier turns notifications into timeline events. It tracks the last
// absolute cursor position, whether the rotation gesture is active and which
// keys are held so auto-repeat never produces a second KeyDown.
type Classifier struct {
	mu       sync.Mutex
	lastX    int
	lastY    int
	rotating bool
	alwaysOn bool
	keysDown map[uint32]struct{}
}

// NewClassifier returns a classifier with no gesture and no held keys.
func NewClassifier() *Classifier {
	return &Classifier{keysDown: make(map[uint32]struct{})}
}

// Reset clears gesture and key state and anchors the cursor position. It is
// called when a recording starts. Always-on mode survives a reset.
func (c *Classifier) Reset(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastX, c.lastY = x, y
	c.rotating = false
	c.keysDown = make(map[uint32]struct{})
}

// SetAlwaysOn toggles record-on-move-always mode, in which raw motion is
// captured without holding the right button.
func (c *Classifier) SetAlwaysOn(on bool) {
	c.mu.Lock()
	c.alwaysOn = on
	c.mu.Unlock()
}

// AlwaysOn reports whether record-on-move-always mode is enabled.
func (c *Classifier) AlwaysOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alwaysOn
}

// GestureActive reports whether raw relative samples should be captured.
func (c *Classifier) GestureActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotating || c.alwaysOn
}

// Classify converts n into a timeline event stamped at. The boolean is false
// when the notification is suppressed.
func (c *Classifier) Classify(n Notification, at time.Duration) (timeline.Event, bool) {
	if n.Validate() != nil {
		return timeline.Event{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch n.Kind {
	case NotifyMove:
		dx, dy := n.X-c.lastX, n.Y-c.lastY
		c.lastX, c.lastY = n.X, n.Y
		if c.rotating || c.alwaysOn {
			return timeline.Event{}, false
		}
		return timeline.AbsoluteMove(at, n.X, n.Y, float64(dx), float64(dy)), true

	case NotifyButtonDown:
		if n.Button == timeline.ButtonRight {
			c.rotating = true
			c.lastX, c.lastY = n.X, n.Y
		}
		return timeline.ButtonDown(at, n.Button, n.X, n.Y), true

	case NotifyButtonUp:
		if n.Button == timeline.ButtonRight {
			c.rotating = false
		}
		return timeline.ButtonUp(at, n.Button, n.X, n.Y), true

	case NotifyWheel:
		if n.Wheel == 0 {
			return timeline.Event{}, false
		}
		return timeline.Scroll(at, n.X, n.Y, 0, n.Wheel), true

	case NotifyKeyDown:
		if n.Injected || n.Repeat {
			return timeline.Event{}, false
		}
		if _, held := c.keysDown[n.Key.Code]; held {
			return timeline.Event{}, false
		}
		c.keysDown[n.Key.Code] = struct{}{}
		return timeline.KeyDown(at, labelled(n.Key)), true

	case NotifyKeyUp:
		if n.Injected {
			return timeline.Event{}, false
		}
		delete(c.keysDown, n.Key.Code)
		return timeline.KeyUp(at, labelled(n.Key)), true
	}
	return timeline.Event{}, false
}

// HeldKeys reports how many keys the classifier currently considers down.
func (c *Classifier) HeldKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keysDown)
}

func labelled(k timeline.Key) timeline.Key {
	if k.Label == "" {
		k.Label = KeyName(k.Code)
	}
	return k
}
