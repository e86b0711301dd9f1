// Package inject provides replay.Injector implementations that do not touch
// the host input stack: a journal writer used for dry runs and a discard
// injector.
package inject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// Op names a journalled injection.
type Op string

const (
	OpMoveAbsolute Op = "move_absolute"
	OpMoveRelative Op = "move_relative"
	OpButton       Op = "button"
	OpScroll       Op = "scroll"
	OpKey          Op = "key"
)

// Entry is one line of the journal.
type Entry struct {
	T       float64 `json:"t"`
	Op      Op      `json:"op"`
	X       *int    `json:"x,omitempty"`
	Y       *int    `json:"y,omitempty"`
	Button  string  `json:"button,omitempty"`
	Down    *bool   `json:"down,omitempty"`
	Notches *int    `json:"notches,omitempty"`
	Code    *uint32 `json:"code,omitempty"`
	Label   string  `json:"label,omitempty"`
}

// ErrClosed is returned once the journal has been closed.
var ErrClosed = errors.New("journal closed")

// JournalOptions configures a Journal.
type JournalOptions struct {
	Writer io.Writer
	Clock  func() time.Time
}

// Journal writes every injected action as a JSON line. Timestamps are
// seconds since the journal was created.
type Journal struct {
	mu     sync.Mutex
	enc    *json.Encoder
	clock  func() time.Time
	start  time.Time
	count  int
	closed bool
}

// NewJournal constructs a Journal writing to opts.Writer.
func NewJournal(opts JournalOptions) (*Journal, error) {
	if opts.Writer == nil {
		return nil, errors.New("journal writer is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Journal{enc: json.NewEncoder(opts.Writer), clock: clock, start: clock()}, nil
}

// MoveAbsolute journals a normalized absolute move.
func (j *Journal) MoveAbsolute(ctx context.Context, nx, ny int) error {
	return j.write(ctx, Entry{Op: OpMoveAbsolute, X: &nx, Y: &ny})
}

// MoveRelative journals a relative move.
func (j *Journal) MoveRelative(ctx context.Context, dx, dy int) error {
	return j.write(ctx, Entry{Op: OpMoveRelative, X: &dx, Y: &dy})
}

// Button journals a button transition.
func (j *Journal) Button(ctx context.Context, b timeline.Button, down bool) error {
	return j.write(ctx, Entry{Op: OpButton, Button: string(b), Down: &down})
}

// Scroll journals wheel notches.
func (j *Journal) Scroll(ctx context.Context, notches int) error {
	return j.write(ctx, Entry{Op: OpScroll, Notches: &notches})
}

// Key journals a key transition.
func (j *Journal) Key(ctx context.Context, key timeline.Key, down bool) error {
	code := key.Code
	return j.write(ctx, Entry{Op: OpKey, Code: &code, Label: key.Label, Down: &down})
}

// Count returns the number of entries written.
func (j *Journal) Count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Close stops further writes. The underlying writer is not closed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func (j *Journal) write(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	e.T = j.clock().Sub(j.start).Seconds()
	if err := j.enc.Encode(e); err != nil {
		return fmt.Errorf("write journal entry %s: %w", e.Op, err)
	}
	j.count++
	return nil
}

// Discard accepts and drops every injection.
type Discard struct{}

func (Discard) MoveAbsolute(context.Context, int, int) error { return nil }

func (Discard) MoveRelative(context.Context, int, int) error { return nil }

func (Discard) Button(context.Context, timeline.Button, bool) error { return nil }

func (Discard) Scroll(context.Context, int) error { return nil }

func (Discard) Key(context.Context, timeline.Key, bool) error { return nil }
