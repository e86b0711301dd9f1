package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// ScriptKindRaw marks a script line carrying a raw relative sample.
const ScriptKindRaw = "raw"

// ScriptLine is one JSONL record of a capture script. T is seconds since the
// start of the stream and is only used for pacing.
type ScriptLine struct {
	T        float64 `json:"t"`
	Kind     string  `json:"kind"`
	DX       int     `json:"dx,omitempty"`
	DY       int     `json:"dy,omitempty"`
	X        int     `json:"x,omitempty"`
	Y        int     `json:"y,omitempty"`
	Button   string  `json:"button,omitempty"`
	Wheel    int     `json:"wheel,omitempty"`
	Key      uint32  `json:"key,omitempty"`
	Label    string  `json:"label,omitempty"`
	Injected bool    `json:"injected,omitempty"`
	Repeat   bool    `json:"repeat,omitempty"`
}

// ScriptOptions configures a ScriptSource.
type ScriptOptions struct {
	Reader    io.Reader
	Paced     bool
	Logger    *slog.Logger
	Clock     func() time.Time
	WaitUntil func(context.Context, time.Time) error
}

// ScriptSource replays a JSONL capture script into a sink. It stands in for an
// OS hook: external helpers that read the platform input stream can pipe
// their output through it, and tests use it to drive a session.
type ScriptSource struct {
	reader    io.Reader
	paced     bool
	logger    *slog.Logger
	clock     func() time.Time
	waitUntil func(context.Context, time.Time) error
}

// ScriptResult summarises a streamed script.
type ScriptResult struct {
	Lines     int
	Raw       int
	Discrete  int
	Skipped   int
	Elapsed   time.Duration
	Truncated bool
}

// NewScriptSource validates options and constructs a script source.
func NewScriptSource(opts ScriptOptions) (*ScriptSource, error) {
	if opts.Reader == nil {
		return nil, errors.New("script reader must be provided")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	wait := opts.WaitUntil
	if wait == nil {
		wait = func(ctx context.Context, deadline time.Time) error {
			return SleepUntil(ctx, clock, deadline)
		}
	}
	return &ScriptSource{
		reader:    opts.Reader,
		paced:     opts.Paced,
		logger:    logger,
		clock:     clock,
		waitUntil: wait,
	}, nil
}

// Stream implements Source.
func (s *ScriptSource) Stream(ctx context.Context, sink Sink) error {
	_, err := s.Run(ctx, sink)
	return err
}

// Run streams the script and reports what was delivered. Lines are paced
// against absolute deadlines from a single epoch so pacing error does not
// accumulate. Lines arriving while the sink is not recording are skipped.
func (s *ScriptSource) Run(ctx context.Context, sink Sink) (ScriptResult, error) {
	if sink == nil {
		return ScriptResult{}, errors.New("sink must be provided")
	}
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var result ScriptResult
	epoch := s.clock()
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		line, err := ParseScriptLine(raw)
		if err != nil {
			return result, fmt.Errorf("line %d: %w", lineNo, err)
		}
		result.Lines++

		if s.paced {
			deadline := epoch.Add(timeline.FromSeconds(line.T))
			if err := s.waitUntil(ctx, deadline); err != nil {
				result.Truncated = true
				result.Elapsed = s.clock().Sub(epoch)
				return result, err
			}
		} else if err := ctx.Err(); err != nil {
			result.Truncated = true
			return result, err
		}

		if !sink.IsRecording() {
			result.Skipped++
			continue
		}
		if line.Kind == ScriptKindRaw {
			sink.OnRawSample(line.DX, line.DY)
			result.Raw++
			continue
		}
		sink.OnDiscreteEvent(line.Notification())
		result.Discrete++
	}
	result.Elapsed = s.clock().Sub(epoch)
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read script: %w", err)
	}
	s.logger.Debug("capture script finished",
		"lines", result.Lines,
		"raw", result.Raw,
		"discrete", result.Discrete,
		"skipped", result.Skipped,
	)
	return result, nil
}

// ParseScriptLine decodes and validates a single script record.
func ParseScriptLine(data []byte) (ScriptLine, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var line ScriptLine
	if err := dec.Decode(&line); err != nil {
		return ScriptLine{}, fmt.Errorf("%w: %v", ErrMalformedScript, err)
	}
	if math.IsNaN(line.T) || math.IsInf(line.T, 0) || line.T < 0 {
		return ScriptLine{}, fmt.Errorf("%w: invalid time %v", ErrMalformedScript, line.T)
	}
	if line.Kind == ScriptKindRaw {
		return line, nil
	}
	if err := line.Notification().Validate(); err != nil {
		return ScriptLine{}, fmt.Errorf("%w: %v", ErrMalformedScript, err)
	}
	return line, nil
}

// Notification converts a discrete script line into a Notification.
func (l ScriptLine) Notification() Notification {
	return Notification{
		Kind:     NotificationKind(l.Kind),
		X:        l.X,
		Y:        l.Y,
		Button:   timeline.Button(l.Button),
		Wheel:    l.Wheel,
		Key:      timeline.Key{Code: l.Key, Label: l.Label},
		Injected: l.Injected,
		Repeat:   l.Repeat,
	}
}
