package motion

import (
	"sync"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// Input is one item of the intake queue: either a raw motion sample or an
// already classified discrete event.
type Input struct {
	Raw    bool
	Sample Sample
	Event  timeline.Event
}

// RawInput wraps a raw sample.
func RawInput(s Sample) Input {
	return Input{Raw: true, Sample: s}
}

// EventInput wraps a discrete timeline event.
func EventInput(e timeline.Event) Input {
	return Input{Event: e}
}

// At returns the capture-relative timestamp of the item.
func (in Input) At() time.Duration {
	if in.Raw {
		return in.Sample.At
	}
	return in.Event.At
}

// Queue is an unbounded multi-producer, single-consumer FIFO. Push never
// blocks beyond the lock; growth is bounded only by the capture data rate.
type Queue struct {
	mu    sync.Mutex
	items []Input
	head  int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an item.
func (q *Queue) Push(in Input) {
	q.mu.Lock()
	q.items = append(q.items, in)
	q.mu.Unlock()
}

// PushStamped reads the capture clock and builds the item while holding the
// push lock, so queue order matches timestamp order across producers. build
// may decline the item by returning false.
func (q *Queue) PushStamped(now func() time.Duration, build func(at time.Duration) (Input, bool)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	in, ok := build(now())
	if !ok {
		return false
	}
	q.items = append(q.items, in)
	return true
}

// Pop removes the oldest item.
func (q *Queue) Pop() (Input, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return Input{}, false
	}
	in := q.items[q.head]
	q.items[q.head] = Input{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return in, true
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// DropRaw discards pending raw samples while keeping discrete events, and
// returns how many samples were dropped.
func (q *Queue) DropRaw() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	dropped := 0
	for _, in := range q.items[q.head:] {
		if in.Raw {
			dropped++
			continue
		}
		kept = append(kept, in)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = Input{}
	}
	q.items = kept
	q.head = 0
	return dropped
}
