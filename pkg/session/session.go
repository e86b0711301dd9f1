// Package session coordinates recording and playback: it owns the lifecycle
// state machine, routes capture notifications into the motion worker and
// drives the replay scheduler on its own goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/offlinefirst/motionreplay/pkg/config"
	"github.com/offlinefirst/motionreplay/pkg/events"
	"github.com/offlinefirst/motionreplay/pkg/logging"
	"github.com/offlinefirst/motionreplay/pkg/motion"
	"github.com/offlinefirst/motionreplay/pkg/replay"
	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// Phase is the lifecycle state of a Controller.
type Phase int32

const (
	Idle Phase = iota
	Recording
	Playing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Options configures a Controller.
type Options struct {
	Config   config.Config
	Logger   *slog.Logger
	Clock    func() time.Time
	Injector replay.Injector
	Tracer   trace.Tracer

	// WaitUntil blocks until a wall-clock deadline; it paces the start
	// delay and the scheduler.
	WaitUntil func(context.Context, time.Time) error
	// Sleeper paces the motion worker's idle ticks.
	Sleeper func(context.Context, time.Duration) error

	// OnRecorded receives every snapshot produced by StopRecording, typically
	// to persist it.
	OnRecorded func(timeline.Snapshot) error
}

// Status is a point-in-time view of the controller.
type Status struct {
	Phase     Phase
	Actions   int
	Elapsed   time.Duration
	Loop      string
	Iteration int
	Dropped   int64
	AlwaysOn  bool
}

type recording struct {
	timeline *timeline.Timeline
	queue    *motion.Queue
	worker   *motion.Worker
	epoch    time.Time
	abort    context.CancelFunc
}

type playback struct {
	cancel    context.CancelFunc
	done      chan struct{}
	policy    replay.LoopPolicy
	started   time.Time
	iteration atomic.Int64
}

// Controller is the session state machine. Capture hooks (OnRawSample,
// OnDiscreteEvent, IsRecording) and EmergencyStop never take the lifecycle
// lock and are safe to call from any goroutine.
type Controller struct {
	mu         sync.Mutex
	cfg        config.Config
	last       timeline.Snapshot
	lastResult replay.Result
	lastErr    error

	logger     *slog.Logger
	clock      func() time.Time
	injector   replay.Injector
	tracer     trace.Tracer
	waitUntil  func(context.Context, time.Time) error
	sleeper    func(context.Context, time.Duration) error
	onRecorded func(timeline.Snapshot) error

	classifier *events.Classifier

	phase     atomic.Int32
	capturing atomic.Bool
	dropped   atomic.Int64
	active    atomic.Pointer[recording]
	player    atomic.Pointer[playback]
}

// New validates options and constructs an idle controller.
func New(opts Options) (*Controller, error) {
	if opts.Injector == nil {
		return nil, errors.New("injector must be provided")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
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
	onRecorded := opts.OnRecorded
	if onRecorded == nil {
		onRecorded = func(timeline.Snapshot) error { return nil }
	}
	c := &Controller{
		cfg:        opts.Config,
		logger:     logger,
		clock:      clock,
		injector:   opts.Injector,
		tracer:     opts.Tracer,
		waitUntil:  wait,
		sleeper:    opts.Sleeper,
		onRecorded: onRecorded,
		classifier: events.NewClassifier(),
	}
	c.classifier.SetAlwaysOn(opts.Config.Capture.AlwaysOn)
	return c, nil
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

// IsRecording reports whether capture notifications are being recorded.
func (c *Controller) IsRecording() bool {
	return c.capturing.Load()
}

// StartRecording discards the previous timeline and begins a new recording.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Phase() != Idle {
		return fmt.Errorf("%w: cannot record while %s", ErrBusy, c.Phase())
	}

	tl := timeline.New()
	queue := motion.NewQueue()
	worker, err := motion.NewWorker(motion.Options{
		Params:   c.cfg.MotionParams(),
		Queue:    queue,
		Timeline: tl,
		Logger:   logging.Component(c.logger, "motion"),
		Sleeper:  c.sleeper,
	})
	if err != nil {
		return fmt.Errorf("create motion worker: %w", err)
	}

	ctx, abort := context.WithCancel(context.Background())
	rec := &recording{timeline: tl, queue: queue, worker: worker, epoch: c.clock(), abort: abort}
	c.classifier.Reset(0, 0)
	c.last = timeline.Snapshot{}
	c.dropped.Store(0)

	worker.Start(ctx)
	go c.watch(rec)

	c.active.Store(rec)
	c.phase.Store(int32(Recording))
	c.capturing.Store(true)
	c.logger.Info("recording started", "always_on", c.classifier.AlwaysOn())
	return nil
}

// StopRecording joins the motion worker, freezes the timeline and hands the
// snapshot to the OnRecorded hook. When autoplay is configured the snapshot
// is played back immediately.
func (c *Controller) StopRecording() (timeline.Snapshot, error) {
	c.mu.Lock()
	rec := c.active.Load()
	if c.Phase() != Recording || rec == nil || !c.capturing.Load() {
		// An emergency-stopped recording is finalised by watch.
		c.mu.Unlock()
		return timeline.Snapshot{}, ErrNotRecording
	}
	c.capturing.Store(false)
	c.active.Store(nil)
	rec.worker.Stop()
	rec.abort()

	snap := rec.timeline.Snapshot()
	c.last = snap
	c.phase.Store(int32(Idle))
	autoplay := c.cfg.Session.Autoplay
	policy := c.loopPolicy()
	c.mu.Unlock()

	stats := rec.worker.Stats()
	c.logger.Info("recording stopped",
		"events", snap.Len(),
		"duration", snap.Duration(),
		"ramps", stats.Ramps,
		"rejected", stats.Rejected,
		"dropped", c.dropped.Load(),
	)

	if snap.Empty() {
		return snap, nil
	}
	if err := c.onRecorded(snap); err != nil {
		return snap, fmt.Errorf("persist recording: %w", err)
	}
	if autoplay {
		if err := c.Play(policy); err != nil {
			c.logger.Warn("autoplay failed", "error", err)
		}
	}
	return snap, nil
}

// watch returns the phase to idle when a recording is aborted by
// EmergencyStop. The aborted timeline is kept in memory but not persisted.
func (c *Controller) watch(rec *recording) {
	<-rec.worker.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Load() != rec {
		return
	}
	c.active.Store(nil)
	c.capturing.Store(false)
	c.last = rec.timeline.Snapshot()
	c.phase.Store(int32(Idle))
	c.logger.Warn("recording aborted", "events", c.last.Len())
}

// OnRawSample enqueues a raw relative displacement. Samples are ignored
// unless recording with an active gesture; zero displacements are dropped.
func (c *Controller) OnRawSample(dx, dy int) {
	if !c.capturing.Load() {
		return
	}
	rec := c.active.Load()
	if rec == nil || !c.classifier.GestureActive() {
		return
	}
	if dx == 0 && dy == 0 {
		return
	}
	rec.queue.PushStamped(c.since(rec), func(at time.Duration) (motion.Input, bool) {
		return motion.RawInput(motion.Sample{DX: dx, DY: dy, At: at}), true
	})
}

// OnDiscreteEvent classifies a notification and enqueues the resulting
// event. Classification happens under the queue lock so queue order matches
// timestamp order.
func (c *Controller) OnDiscreteEvent(n events.Notification) {
	if !c.capturing.Load() {
		return
	}
	rec := c.active.Load()
	if rec == nil {
		return
	}
	rec.queue.PushStamped(c.since(rec), func(at time.Duration) (motion.Input, bool) {
		e, ok := c.classifier.Classify(n, at)
		return motion.EventInput(e), ok
	})
}

func (c *Controller) since(rec *recording) func() time.Duration {
	return func() time.Duration {
		return c.clock().Sub(rec.epoch)
	}
}

// Play starts playing the current timeline on a dedicated goroutine after
// the configured start delay.
func (c *Controller) Play(policy replay.LoopPolicy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Phase() != Idle {
		return fmt.Errorf("%w: cannot play while %s", ErrBusy, c.Phase())
	}
	if c.last.Empty() {
		return ErrEmptyTimeline
	}

	pb := &playback{done: make(chan struct{}), policy: policy, started: c.clock()}
	scheduler, err := replay.NewScheduler(replay.Options{
		Injector:    c.injector,
		Logger:      logging.Component(c.logger, "replay"),
		Clock:       c.clock,
		WaitUntil:   c.waitUntil,
		Sensitivity: c.cfg.Playback.Sensitivity,
		Velocity:    c.cfg.Playback.Velocity,
		Screen:      replay.Screen{Width: c.cfg.Playback.ScreenWidth, Height: c.cfg.Playback.ScreenHeight},
		SettleDelay: c.cfg.Playback.SettleDelay,
		Tracer:      c.tracer,
		Observer: replay.ObserverFunc(func(i int) {
			pb.iteration.Store(int64(i))
		}),
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pb.cancel = cancel
	snap := c.last
	delay := c.cfg.Playback.StartDelay

	c.player.Store(pb)
	c.phase.Store(int32(Playing))
	c.logger.Info("playback starting", "events", snap.Len(), "loop", policy.String(), "start_delay", delay)

	go c.run(ctx, pb, scheduler, snap, delay)
	return nil
}

func (c *Controller) run(ctx context.Context, pb *playback, scheduler *replay.Scheduler, snap timeline.Snapshot, delay time.Duration) {
	defer close(pb.done)
	defer pb.cancel()

	var (
		res replay.Result
		err error
	)
	if delay > 0 {
		if werr := c.waitUntil(ctx, c.clock().Add(delay)); werr != nil || ctx.Err() != nil {
			res.Cancelled = true
		}
	}
	if !res.Cancelled {
		res, err = scheduler.Play(ctx, snap, pb.policy)
	}

	c.mu.Lock()
	c.lastResult, c.lastErr = res, err
	c.player.Store(nil)
	c.phase.Store(int32(Idle))
	c.mu.Unlock()

	switch {
	case err != nil:
		c.logger.Error("playback failed", "error", err)
	case res.Cancelled:
		c.logger.Info("playback cancelled", "iterations", res.Iterations, "dispatched", res.Dispatched, "released", res.Released)
	default:
		c.logger.Info("playback finished", "iterations", res.Iterations, "dispatched", res.Dispatched, "failed", res.Failed)
	}
}

// StopPlayback cancels the running playback and waits for it to release
// every held key.
func (c *Controller) StopPlayback() error {
	pb := c.player.Load()
	if pb == nil {
		return ErrNotPlaying
	}
	pb.cancel()
	<-pb.done
	return nil
}

// Wait blocks until the current playback, if any, ends and returns the
// result of the most recent playback.
func (c *Controller) Wait() (replay.Result, error) {
	if pb := c.player.Load(); pb != nil {
		<-pb.done
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult, c.lastErr
}

// EmergencyStop halts recording and playback immediately. It never blocks
// and may be called repeatedly. Pending raw samples are discarded and an
// aborted recording is not persisted; the owning goroutines return the
// controller to the idle phase.
func (c *Controller) EmergencyStop() {
	c.capturing.Store(false)
	if rec := c.active.Load(); rec != nil {
		c.dropped.Add(int64(rec.queue.DropRaw()))
		rec.abort()
	}
	if pb := c.player.Load(); pb != nil {
		pb.cancel()
	}
}

// Load replaces the current timeline, typically with a recording read from
// disk.
func (c *Controller) Load(snap timeline.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Phase() != Idle {
		return fmt.Errorf("%w: cannot load while %s", ErrBusy, c.Phase())
	}
	c.last = snap
	return nil
}

// Last returns the most recent timeline.
func (c *Controller) Last() timeline.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ApplyConfig swaps the configuration. It is only allowed while idle and
// keeps the previous configuration when cfg is invalid.
func (c *Controller) ApplyConfig(cfg config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Phase() != Idle {
		return fmt.Errorf("%w: cannot reconfigure while %s", ErrBusy, c.Phase())
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	c.cfg = cfg
	c.classifier.SetAlwaysOn(cfg.Capture.AlwaysOn)
	return nil
}

// Config returns the configuration in effect.
func (c *Controller) Config() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetAlwaysOn toggles recording raw motion without the right button.
func (c *Controller) SetAlwaysOn(on bool) {
	c.classifier.SetAlwaysOn(on)
}

// Status reports the phase together with progress counters.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Phase:    c.Phase(),
		Loop:     c.loopPolicy().String(),
		Dropped:  c.dropped.Load(),
		AlwaysOn: c.classifier.AlwaysOn(),
		Actions:  c.last.Len(),
	}
	switch st.Phase {
	case Recording:
		if rec := c.active.Load(); rec != nil {
			st.Actions = rec.timeline.Len()
			st.Elapsed = c.clock().Sub(rec.epoch)
		}
	case Playing:
		if pb := c.player.Load(); pb != nil {
			st.Loop = pb.policy.String()
			st.Iteration = int(pb.iteration.Load())
			st.Elapsed = c.clock().Sub(pb.started)
		}
	}
	return st
}

// String renders the status line.
func (s Status) String() string {
	mode := "gesture"
	if s.AlwaysOn {
		mode = "always-on"
	}
	switch s.Phase {
	case Recording:
		return fmt.Sprintf("RECORDING | %.1fs | actions: %d | mode: %s", s.Elapsed.Seconds(), s.Actions, mode)
	case Playing:
		return fmt.Sprintf("PLAYING | %.1fs | iteration: %d | loop: %s | mode: %s", s.Elapsed.Seconds(), s.Iteration+1, s.Loop, mode)
	default:
		return fmt.Sprintf("IDLE | actions: %d | loop: %s | mode: %s", s.Actions, s.Loop, mode)
	}
}

func (c *Controller) loopPolicy() replay.LoopPolicy {
	return replay.LoopPolicy{Enabled: c.cfg.Playback.Loop, Count: c.cfg.Playback.LoopCount}
}
