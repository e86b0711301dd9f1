package store

import (
	"fmt"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// Record is the persisted form of a timeline event. Field presence follows
// the record type; pointer fields distinguish a zero value from a missing one.
type Record struct {
	Time      float64  `json:"time" yaml:"time"`
	Type      string   `json:"type" yaml:"type"`
	X         *int     `json:"x,omitempty" yaml:"x,omitempty"`
	Y         *int     `json:"y,omitempty" yaml:"y,omitempty"`
	DeltaX    *float64 `json:"deltaX,omitempty" yaml:"deltaX,omitempty"`
	DeltaY    *float64 `json:"deltaY,omitempty" yaml:"deltaY,omitempty"`
	IsRaw     *bool    `json:"isRaw,omitempty" yaml:"isRaw,omitempty"`
	Synthetic *bool    `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
	Button    string   `json:"button,omitempty" yaml:"button,omitempty"`
	DX        *int     `json:"dx,omitempty" yaml:"dx,omitempty"`
	DY        *int     `json:"dy,omitempty" yaml:"dy,omitempty"`
	Key       *string  `json:"key,omitempty" yaml:"key,omitempty"`
	VKCode    *uint32  `json:"vkCode,omitempty" yaml:"vkCode,omitempty"`
}

// Encode converts events into records.
func Encode(events []timeline.Event) []Record {
	out := make([]Record, 0, len(events))
	for _, e := range events {
		out = append(out, encodeEvent(e))
	}
	return out
}

func encodeEvent(e timeline.Event) Record {
	r := Record{Time: e.Seconds(), Type: string(e.Kind)}
	switch e.Kind {
	case timeline.KindAbsoluteMove:
		r.X, r.Y = ptr(e.X), ptr(e.Y)
		r.DeltaX, r.DeltaY = ptr(e.DX), ptr(e.DY)
	case timeline.KindRelativeDelta:
		r.DeltaX, r.DeltaY = ptr(e.DX), ptr(e.DY)
		r.IsRaw = ptr(true)
		r.Synthetic = ptr(e.Synthetic)
	case timeline.KindButtonDown, timeline.KindButtonUp:
		r.X, r.Y = ptr(e.X), ptr(e.Y)
		r.Button = string(e.Button)
	case timeline.KindScroll:
		r.X, r.Y = ptr(e.X), ptr(e.Y)
		r.DX, r.DY = ptr(e.ScrollDX), ptr(e.ScrollDY)
	case timeline.KindKeyDown, timeline.KindKeyUp:
		r.Key = ptr(e.Key.Label)
		r.VKCode = ptr(e.Key.Code)
	}
	return r
}

// Decode converts records back into events. Records are not reordered; the
// caller validates ordering by building a snapshot.
func Decode(records []Record) ([]timeline.Event, error) {
	out := make([]timeline.Event, 0, len(records))
	for i, r := range records {
		e, err := decodeRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeRecord(r Record) (timeline.Event, error) {
	at := timeline.FromSeconds(r.Time)
	kind := timeline.Kind(r.Type)
	switch kind {
	case timeline.KindAbsoluteMove:
		if r.X == nil || r.Y == nil {
			return timeline.Event{}, missing(kind, "x/y")
		}
		return timeline.AbsoluteMove(at, *r.X, *r.Y, deref(r.DeltaX), deref(r.DeltaY)), nil

	case timeline.KindRelativeDelta:
		if r.DeltaX == nil || r.DeltaY == nil {
			return timeline.Event{}, missing(kind, "deltaX/deltaY")
		}
		return timeline.RelativeDelta(at, *r.DeltaX, *r.DeltaY, deref(r.Synthetic)), nil

	case timeline.KindButtonDown, timeline.KindButtonUp:
		if r.X == nil || r.Y == nil || r.Button == "" {
			return timeline.Event{}, missing(kind, "x/y/button")
		}
		b := timeline.Button(r.Button)
		if kind == timeline.KindButtonDown {
			return timeline.ButtonDown(at, b, *r.X, *r.Y), nil
		}
		return timeline.ButtonUp(at, b, *r.X, *r.Y), nil

	case timeline.KindScroll:
		if r.X == nil || r.Y == nil || r.DX == nil || r.DY == nil {
			return timeline.Event{}, missing(kind, "x/y/dx/dy")
		}
		return timeline.Scroll(at, *r.X, *r.Y, *r.DX, *r.DY), nil

	case timeline.KindKeyDown, timeline.KindKeyUp:
		if r.Key == nil {
			return timeline.Event{}, missing(kind, "key")
		}
		key := timeline.Key{Code: deref(r.VKCode), Label: *r.Key}
		if kind == timeline.KindKeyDown {
			return timeline.KeyDown(at, key), nil
		}
		return timeline.KeyUp(at, key), nil
	}
	return timeline.Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformedRecord, r.Type)
}

func missing(kind timeline.Kind, fields string) error {
	return fmt.Errorf("%w: %s requires %s", ErrMalformedRecord, kind, fields)
}

func ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
