// Package timeline holds the ordered event stream produced by a recording
// session and the immutable snapshots handed to playback.
package timeline

import (
	"fmt"
	"sync"
	"time"
)

// Timeline is an append-only, lock-guarded sequence of events with
// non-decreasing timestamps.
type Timeline struct {
	mu     sync.Mutex
	events []Event
}

// New returns an empty timeline.
func New() *Timeline {
	return &Timeline{}
}

// Append validates e and adds it to the tail.
// Events older than the current tail are rejected with ErrOutOfOrder.
func (t *Timeline) Append(e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.events); n > 0 && e.At < t.events[n-1].At {
		return fmt.Errorf("%w: %s %s before tail %s", ErrOutOfOrder, e.Kind, e.At, t.events[n-1].At)
	}
	t.events = append(t.events, e)
	return nil
}

// Len reports the number of recorded events.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Snapshot copies the current contents into an immutable Snapshot.
func (t *Timeline) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{events: append([]Event(nil), t.events...)}
}

// Snapshot is a frozen, read-only view of a timeline.
type Snapshot struct {
	events []Event
}

// NewSnapshot builds a snapshot from externally supplied events, enforcing
// the same validity and ordering rules as Append.
func NewSnapshot(events []Event) (Snapshot, error) {
	t := New()
	for i, e := range events {
		if err := t.Append(e); err != nil {
			return Snapshot{}, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return Snapshot{events: t.events}, nil
}

// Len reports the number of events.
func (s Snapshot) Len() int {
	return len(s.events)
}

// Empty reports whether the snapshot holds no events.
func (s Snapshot) Empty() bool {
	return len(s.events) == 0
}

// Event returns the i-th event.
func (s Snapshot) Event(i int) Event {
	return s.events[i]
}

// Events returns a copy of the events.
func (s Snapshot) Events() []Event {
	return append([]Event(nil), s.events...)
}

// Duration returns the timestamp of the final event.
func (s Snapshot) Duration() time.Duration {
	if len(s.events) == 0 {
		return 0
	}
	return s.events[len(s.events)-1].At
}

// Counts tallies events per kind.
func (s Snapshot) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, e := range s.events {
		counts[e.Kind]++
	}
	return counts
}
