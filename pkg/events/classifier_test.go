package events

import (
	"errors"
	"testing"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

func TestClassifierAbsoluteMovesOutsideGesture(t *testing.T) {
	c := NewClassifier()
	c.Reset(100, 100)

	e, ok := c.Classify(Notification{Kind: NotifyMove, X: 110, Y: 95}, time.Millisecond)
	if !ok {
		t.Fatalf("expected absolute move to be recorded")
	}
	if e.Kind != timeline.KindAbsoluteMove || e.X != 110 || e.Y != 95 || e.DX != 10 || e.DY != -5 {
		t.Fatalf("unexpected move %+v", e)
	}

	if _, ok := c.Classify(Notification{Kind: NotifyButtonDown, Button: timeline.ButtonRight, X: 110, Y: 95}, 2*time.Millisecond); !ok {
		t.Fatalf("right press must be recorded")
	}
	if !c.GestureActive() {
		t.Fatalf("right press should activate the gesture")
	}
	if _, ok := c.Classify(Notification{Kind: NotifyMove, X: 200, Y: 200}, 3*time.Millisecond); ok {
		t.Fatalf("absolute moves must be suppressed while rotating")
	}
	if _, ok := c.Classify(Notification{Kind: NotifyButtonUp, Button: timeline.ButtonRight, X: 200, Y: 200}, 4*time.Millisecond); !ok {
		t.Fatalf("right release must be recorded")
	}
	if c.GestureActive() {
		t.Fatalf("right release should end the gesture")
	}

	e, ok = c.Classify(Notification{Kind: NotifyMove, X: 201, Y: 200}, 5*time.Millisecond)
	if !ok || e.DX != 1 || e.DY != 0 {
		t.Fatalf("position must keep tracking during the gesture, got %+v", e)
	}
}

func TestClassifierSuppressesKeyRepeat(t *testing.T) {
	c := NewClassifier()
	a := timeline.Key{Code: 0x41}

	e, ok := c.Classify(Notification{Kind: NotifyKeyDown, Key: a}, 0)
	if !ok || e.Kind != timeline.KindKeyDown || e.Key.Label != "A" {
		t.Fatalf("unexpected key down %+v", e)
	}
	if _, ok := c.Classify(Notification{Kind: NotifyKeyDown, Key: a}, time.Millisecond); ok {
		t.Fatalf("second key down for held key must be suppressed")
	}
	if _, ok := c.Classify(Notification{Kind: NotifyKeyDown, Key: timeline.Key{Code: 0x42}, Repeat: true}, time.Millisecond); ok {
		t.Fatalf("repeat flagged key down must be suppressed")
	}
	if _, ok := c.Classify(Notification{Kind: NotifyKeyDown, Key: timeline.Key{Code: 0x43}, Injected: true}, time.Millisecond); ok {
		t.Fatalf("injected key down must be suppressed")
	}
	if c.HeldKeys() != 1 {
		t.Fatalf("expected one held key, got %d", c.HeldKeys())
	}
	if _, ok := c.Classify(Notification{Kind: NotifyKeyUp, Key: a}, 2*time.Millisecond); !ok {
		t.Fatalf("key up must be recorded")
	}
	if _, ok := c.Classify(Notification{Kind: NotifyKeyDown, Key: a}, 3*time.Millisecond); !ok {
		t.Fatalf("key down after release must be recorded")
	}
}

func TestClassifierAlwaysOnMode(t *testing.T) {
	c := NewClassifier()
	if c.GestureActive() {
		t.Fatalf("gesture should start inactive")
	}
	c.SetAlwaysOn(true)
	c.Reset(0, 0)
	if !c.AlwaysOn() || !c.GestureActive() {
		t.Fatalf("always-on mode should survive reset and activate capture")
	}
	if _, ok := c.Classify(Notification{Kind: NotifyMove, X: 5, Y: 5}, 0); ok {
		t.Fatalf("absolute moves are suppressed while raw capture is active")
	}
}

func TestClassifierScrollAndButtons(t *testing.T) {
	c := NewClassifier()
	e, ok := c.Classify(Notification{Kind: NotifyWheel, Wheel: -2, X: 4, Y: 8}, time.Second)
	if !ok || e.Kind != timeline.KindScroll || e.ScrollDY != -2 || e.ScrollDX != 0 || e.X != 4 {
		t.Fatalf("unexpected scroll %+v", e)
	}
	if _, ok := c.Classify(Notification{Kind: NotifyWheel}, time.Second); ok {
		t.Fatalf("zero notches must be dropped")
	}
	e, ok = c.Classify(Notification{Kind: NotifyButtonDown, Button: timeline.ButtonLeft, X: 30, Y: 40}, time.Second)
	if !ok || e.Button != timeline.ButtonLeft || e.X != 30 || e.Y != 40 {
		t.Fatalf("unexpected button %+v", e)
	}
	if c.GestureActive() {
		t.Fatalf("left press must not activate the gesture")
	}
	if _, ok := c.Classify(Notification{Kind: NotifyButtonDown, Button: "thumb"}, time.Second); ok {
		t.Fatalf("unknown button must be dropped")
	}
}

func TestNotificationValidate(t *testing.T) {
	if err := (Notification{Kind: "hover"}).Validate(); !errors.Is(err, ErrUnknownNotification) {
		t.Fatalf("expected ErrUnknownNotification, got %v", err)
	}
	if err := (Notification{Kind: NotifyButtonUp, Button: timeline.ButtonMiddle}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestKeyName(t *testing.T) {
	cases := map[uint32]string{
		0x41: "A",
		0x31: "1",
		0x20: "Space",
		0x70: "F1",
		0x7B: "F12",
		0xFF: "key_255",
	}
	for code, want := range cases {
		if got := KeyName(code); got != want {
			t.Fatalf("KeyName(%#x) = %q, want %q", code, got, want)
		}
	}
}
