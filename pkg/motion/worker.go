package motion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// Options configures a Worker.
type Options struct {
	Params   Params
	Queue    *Queue
	Timeline *timeline.Timeline
	Logger   *slog.Logger
	// Horizon is how far behind the newest input an event must be before it
	// is committed to the timeline. Zero derives it from Params.
	Horizon time.Duration
	Sleeper func(context.Context, time.Duration) error
}

// Stats counts what the worker consumed and produced.
type Stats struct {
	Samples  int
	Events   int
	Emitted  int
	Ramps    int
	Rejected int
}

// Worker is the single consumer of the intake queue and the single writer of
// the recording timeline. Ramp ticks are stamped after the sample that
// triggered them, so output passes through a short time-ordered buffer
// before it is appended.
type Worker struct {
	processor *Processor
	queue     *Queue
	timeline  *timeline.Timeline
	logger    *slog.Logger
	sleeper   func(context.Context, time.Duration) error
	horizon   time.Duration

	pending []timeline.Event
	newest  time.Duration

	mu      sync.Mutex
	stats   Stats
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewWorker validates options and constructs a worker.
func NewWorker(opts Options) (*Worker, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue must be provided")
	}
	if opts.Timeline == nil {
		return nil, errors.New("timeline must be provided")
	}
	processor, err := NewProcessor(opts.Params)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}
	horizon := opts.Horizon
	if horizon <= 0 {
		p := processor.Params()
		horizon = p.RampDuration + time.Duration(p.StopFrames+1)*p.Tick
	}
	return &Worker{
		processor: processor,
		queue:     opts.Queue,
		timeline:  opts.Timeline,
		logger:    logger,
		sleeper:   sleeper,
		horizon:   horizon,
		done:      make(chan struct{}),
	}, nil
}

// Start launches the consume loop. It may be called once.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends the loop, drains what is still queued, flushes the buffer into
// the timeline and waits for completion.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-w.done
}

// Done is closed once the loop has exited and all output is committed.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats returns a copy of the counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	tick := w.processor.Params().Tick
	for {
		if ctx.Err() != nil {
			w.finish()
			return
		}
		in, ok := w.queue.Pop()
		if !ok {
			if err := w.sleeper(ctx, tick); err != nil {
				continue
			}
			w.emit(w.processor.Idle())
			continue
		}
		w.handle(in)
	}
}

func (w *Worker) handle(in Input) {
	if at := in.At(); at > w.newest {
		w.newest = at
	}
	if in.Raw {
		w.count(func(s *Stats) { s.Samples++ })
		w.emit(w.processor.Advance(in.Sample.At))
		w.emit(w.processor.Process(in.Sample))
	} else {
		w.count(func(s *Stats) { s.Events++ })
		w.emit(w.processor.Advance(in.Event.At))
		w.emit([]timeline.Event{in.Event})
	}
	w.commit(false)
}

func (w *Worker) finish() {
	for {
		in, ok := w.queue.Pop()
		if !ok {
			break
		}
		w.handle(in)
	}
	w.emit(w.processor.Finish())
	w.commit(true)
	stats := w.Stats()
	w.logger.Debug("motion worker stopped",
		"samples", stats.Samples,
		"events", stats.Events,
		"emitted", stats.Emitted,
		"ramps", stats.Ramps,
		"rejected", stats.Rejected,
	)
}

func (w *Worker) emit(events []timeline.Event) {
	if len(events) == 0 {
		return
	}
	if events[0].Kind == timeline.KindRelativeDelta && events[0].Synthetic {
		w.count(func(s *Stats) { s.Ramps++ })
	}
	for _, e := range events {
		i := sort.Search(len(w.pending), func(i int) bool { return w.pending[i].At > e.At })
		w.pending = append(w.pending, timeline.Event{})
		copy(w.pending[i+1:], w.pending[i:])
		w.pending[i] = e
	}
}

func (w *Worker) commit(all bool) {
	watermark := w.newest - w.horizon
	n := 0
	for n < len(w.pending) && (all || w.pending[n].At <= watermark) {
		e := w.pending[n]
		if err := w.timeline.Append(e); err != nil {
			w.logger.Warn("dropping timeline event", "kind", e.Kind, "at", e.At, "error", err)
			w.count(func(s *Stats) { s.Rejected++ })
		} else {
			w.count(func(s *Stats) { s.Emitted++ })
		}
		n++
	}
	if n > 0 {
		w.pending = append(w.pending[:0], w.pending[n:]...)
	}
}

func (w *Worker) count(fn func(*Stats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}

func defaultSleeper(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
