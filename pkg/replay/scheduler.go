// Package replay reproduces a frozen timeline against an input injector with
// absolute-deadline timing, fractional delta accumulation and a guarantee
// that no key is left held when an iteration ends.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/offlinefirst/motionreplay/pkg/events"
	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

const tracerName = "github.com/offlinefirst/motionreplay/pkg/replay"

// DefaultSettleDelay is the pause between an absolute move and the button
// event that follows it.
const DefaultSettleDelay = 2 * time.Millisecond

// Observer is notified as playback progresses.
type Observer interface {
	OnIteration(iteration int)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(iteration int)

// OnIteration calls f.
func (f ObserverFunc) OnIteration(iteration int) {
	f(iteration)
}

// Options configures a Scheduler.
type Options struct {
	Injector    Injector
	Logger      *slog.Logger
	Clock       func() time.Time
	WaitUntil   func(context.Context, time.Time) error
	Sensitivity float64
	Velocity    float64
	Screen      Screen
	SettleDelay time.Duration
	Tracer      trace.Tracer
	Observer    Observer
}

// Result summarises a playback run. Skipped counts presses dropped because
// playback was cancelled while the cursor settled.
type Result struct {
	Iterations int
	Dispatched int
	Failed     int
	Skipped    int
	Released   int
	Cancelled  bool
}

// Scheduler plays timelines. A scheduler may be reused but Play must not be
// called concurrently.
type Scheduler struct {
	injector  Injector
	logger    *slog.Logger
	clock     func() time.Time
	waitUntil func(context.Context, time.Time) error
	factor    float64
	screen    Screen
	settle    time.Duration
	tracer    trace.Tracer
	observer  Observer
}

// NewScheduler validates options and constructs a scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Injector == nil {
		return nil, errors.New("injector must be provided")
	}
	if opts.Sensitivity <= 0 {
		return nil, errors.New("sensitivity must be positive")
	}
	if opts.Velocity <= 0 {
		return nil, errors.New("velocity must be positive")
	}
	if opts.Screen.Width <= 0 || opts.Screen.Height <= 0 {
		return nil, errors.New("screen dimensions must be positive")
	}
	if opts.SettleDelay < 0 {
		return nil, errors.New("settle delay must not be negative")
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
			return events.SleepUntil(ctx, clock, deadline)
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	observer := opts.Observer
	if observer == nil {
		observer = ObserverFunc(func(int) {})
	}
	return &Scheduler{
		injector:  opts.Injector,
		logger:    logger,
		clock:     clock,
		waitUntil: wait,
		factor:    opts.Sensitivity * opts.Velocity,
		screen:    opts.Screen,
		settle:    opts.SettleDelay,
		tracer:    tracer,
		observer:  observer,
	}, nil
}

// Play runs snap according to policy. Cancellation of ctx ends playback
// between events and is reported through Result.Cancelled rather than as an
// error. Every key still held at the end of an iteration is released, also
// on cancellation.
func (s *Scheduler) Play(ctx context.Context, snap timeline.Snapshot, policy LoopPolicy) (Result, error) {
	if snap.Empty() {
		return Result{}, ErrEmptyTimeline
	}
	ctx, span := s.tracer.Start(ctx, "replay.play", trace.WithAttributes(
		attribute.Int("replay.events", snap.Len()),
		attribute.Int64("replay.duration_ms", snap.Duration().Milliseconds()),
		attribute.String("replay.loop", policy.String()),
	))
	defer span.End()

	var res Result
	for i := 0; policy.Continue(i); i++ {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		s.observer.OnIteration(i + 1)
		err := s.iteration(ctx, snap, i+1, &res)
		res.Iterations++
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Cancelled = true
			break
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("iteration %d: %w", i+1, err)
	}

	span.SetAttributes(
		attribute.Int("replay.iterations", res.Iterations),
		attribute.Int("replay.dispatched", res.Dispatched),
		attribute.Int("replay.failed", res.Failed),
		attribute.Bool("replay.cancelled", res.Cancelled),
	)
	s.logger.Info("playback finished",
		"iterations", res.Iterations,
		"dispatched", res.Dispatched,
		"failed", res.Failed,
		"released", res.Released,
		"cancelled", res.Cancelled,
	)
	return res, nil
}

func (s *Scheduler) iteration(ctx context.Context, snap timeline.Snapshot, n int, res *Result) (err error) {
	ctx, span := s.tracer.Start(ctx, "replay.iteration", trace.WithAttributes(attribute.Int("replay.iteration", n)))
	keys := newKeyState()
	defer func() {
		released := keys.releaseAll(context.WithoutCancel(ctx), s.injector, s.logger)
		res.Released += released
		span.SetAttributes(attribute.Int("replay.released", released))
		span.End()
	}()

	var acc accumulator
	epoch := s.clock()
	s.logger.Debug("iteration started", "iteration", n, "events", snap.Len())
	for i := 0; i < snap.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := snap.Event(i)
		if err := s.waitUntil(ctx, epoch.Add(e.At)); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		switch err := s.dispatch(ctx, e, &acc, keys); {
		case err == nil:
			res.Dispatched++
		case errors.Is(err, errPressCancelled):
			res.Skipped++
		default:
			res.Failed++
		}
	}
	return nil
}

// dispatch injects one event. Events that need no injection count as
// success.
func (s *Scheduler) dispatch(ctx context.Context, e timeline.Event, acc *accumulator, keys *keyState) error {
	var err error
	switch e.Kind {
	case timeline.KindAbsoluteMove:
		nx, ny := s.screen.Normalize(e.X, e.Y)
		err = s.injector.MoveAbsolute(ctx, nx, ny)

	case timeline.KindRelativeDelta:
		dx, dy := acc.add(e.DX*s.factor, e.DY*s.factor)
		if dx == 0 && dy == 0 {
			return nil
		}
		err = s.injector.MoveRelative(ctx, dx, dy)

	case timeline.KindButtonDown, timeline.KindButtonUp:
		err = s.button(ctx, e)

	case timeline.KindScroll:
		if e.ScrollDY == 0 {
			return nil
		}
		err = s.injector.Scroll(ctx, e.ScrollDY)

	case timeline.KindKeyDown:
		k := resolveKey(e.Key)
		if k.Code == 0 || !keys.down(k) {
			return nil
		}
		err = s.injector.Key(ctx, k, true)

	case timeline.KindKeyUp:
		k := resolveKey(e.Key)
		if k.Code == 0 || !keys.up(k) {
			return nil
		}
		err = s.injector.Key(ctx, k, false)
	}
	if err != nil && !errors.Is(err, errPressCancelled) {
		s.logger.Warn("injection failed", "kind", e.Kind, "at", e.At, "error", err)
	}
	return err
}

func (s *Scheduler) button(ctx context.Context, e timeline.Event) error {
	down := e.Kind == timeline.KindButtonDown
	if e.Button == timeline.ButtonRight {
		if err := s.injector.Button(ctx, e.Button, down); err != nil {
			return err
		}
		if !down {
			if err := s.pause(ctx); err != nil {
				s.logger.Debug("settle after release interrupted", "error", err)
			}
		}
		return nil
	}
	nx, ny := s.screen.Normalize(e.X, e.Y)
	if err := s.injector.MoveAbsolute(ctx, nx, ny); err != nil {
		s.logger.Warn("position before click failed", "button", e.Button, "error", err)
	}
	// A release still goes out when cancelled mid-settle so no button stays held.
	if err := s.pause(ctx); err != nil && down {
		return fmt.Errorf("%w: %s: %v", errPressCancelled, e.Button, err)
	}
	return s.injector.Button(context.WithoutCancel(ctx), e.Button, down)
}

func (s *Scheduler) pause(ctx context.Context) error {
	if s.settle <= 0 {
		return nil
	}
	return s.waitUntil(ctx, s.clock().Add(s.settle))
}
