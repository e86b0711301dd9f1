// Package motion turns raw relative pointer samples into smoothed,
// stop-aware RelativeDelta events terminated by synthesized decay ramps.
package motion

import (
	"errors"
	"math"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// DefaultHistorySize is the number of recent raw samples kept for the
// stop-time velocity estimate.
const DefaultHistorySize = 6

// Params configures a Processor. It is an immutable value: build a new
// Processor to change it.
type Params struct {
	Smoothing     float64
	StopThreshold int
	StopFrames    int
	Tick          time.Duration
	RampDuration  time.Duration
	RampDecay     float64
	RampEnabled   bool
	SensitivityX  float64
	SensitivityY  float64
	HistorySize   int
}

// Validate ensures the parameters are usable.
func (p Params) Validate() error {
	if !(p.Smoothing > 0 && p.Smoothing <= 1) {
		return errors.New("smoothing must be within (0, 1]")
	}
	if p.StopThreshold < 0 {
		return errors.New("stop threshold must not be negative")
	}
	if p.StopFrames < 1 {
		return errors.New("stop frames must be at least 1")
	}
	if p.Tick <= 0 {
		return errors.New("tick must be positive")
	}
	if p.RampDuration < 0 {
		return errors.New("ramp duration must not be negative")
	}
	if !(p.RampDecay > 0 && p.RampDecay < 1) {
		return errors.New("ramp decay must be within (0, 1)")
	}
	if p.SensitivityX <= 0 || p.SensitivityY <= 0 {
		return errors.New("axis sensitivity must be positive")
	}
	return nil
}

// RampSteps is the number of ticks a stop ramp spans.
func (p Params) RampSteps() int {
	steps := int(p.RampDuration / p.Tick)
	if steps < 1 {
		return 1
	}
	return steps
}

// Sample is a raw hardware relative displacement. At is capture-relative.
type Sample struct {
	DX, DY int
	At     time.Duration
}

// Processor is the signal-conditioning state machine. It is not safe for
// concurrent use; the Worker owns it.
type Processor struct {
	params Params

	smoothedX, smoothedY float64
	consecutiveSmall     int
	smallAtSample        int
	stopped              bool
	lastAt               time.Duration
	history              []Sample
}

// NewProcessor validates params and returns a processor in the stopped state.
func NewProcessor(params Params) (*Processor, error) {
	if params.HistorySize <= 0 {
		params.HistorySize = DefaultHistorySize
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{params: params}
	p.Reset()
	return p, nil
}

// Params returns the configuration in effect.
func (p *Processor) Params() Params {
	return p.params
}

// Reset clears all filter state. The processor starts stopped so silence
// before the first sample produces nothing.
func (p *Processor) Reset() {
	p.smoothedX, p.smoothedY = 0, 0
	p.consecutiveSmall = 0
	p.smallAtSample = 0
	p.stopped = true
	p.lastAt = 0
	p.history = make([]Sample, 0, p.params.HistorySize)
}

// Stopped reports whether the processor is in the stopped state.
func (p *Processor) Stopped() bool {
	return p.stopped
}

// Process consumes one raw sample and returns the events it produces:
// one smoothed delta while moving, a ramp (or zero marker) on the
// transition into the stopped state, nothing while already stopped.
func (p *Processor) Process(s Sample) []timeline.Event {
	p.remember(s)
	p.lastAt = s.At

	if p.isSmall(s) {
		p.consecutiveSmall++
	} else {
		p.consecutiveSmall = 0
	}
	p.smallAtSample = p.consecutiveSmall

	if p.consecutiveSmall >= p.params.StopFrames {
		return p.stop()
	}

	p.stopped = false
	a := p.params.Smoothing
	p.smoothedX = a*float64(s.DX) + (1-a)*p.smoothedX
	p.smoothedY = a*float64(s.DY) + (1-a)*p.smoothedY
	return []timeline.Event{
		timeline.RelativeDelta(s.At, p.smoothedX*p.params.SensitivityX, p.smoothedY*p.params.SensitivityY, false),
	}
}

// Idle advances the small-sample counter by one implicit zero sample.
// Silence after motion therefore ends in a ramp just like small samples do.
func (p *Processor) Idle() []timeline.Event {
	p.consecutiveSmall++
	if p.consecutiveSmall >= p.params.StopFrames {
		return p.stop()
	}
	return nil
}

// Advance accounts for capture-time silence up to at, as observed through
// the timestamp of the next input. Silence is measured from the last sample
// only, so idle ticks covering the same stretch are not counted twice. A gap
// that completes the small run to StopFrames ticks ends the gesture with a
// ramp.
func (p *Processor) Advance(at time.Duration) []timeline.Event {
	if p.stopped || at <= p.lastAt {
		return nil
	}
	silent := int((at - p.lastAt) / p.params.Tick)
	if run := p.smallAtSample + silent; run > p.consecutiveSmall {
		p.consecutiveSmall = run
	}
	if p.consecutiveSmall < p.params.StopFrames {
		return nil
	}
	return p.stop()
}

// Finish forces the stop transition so a gesture still in motion when
// recording ends is terminated by a ramp.
func (p *Processor) Finish() []timeline.Event {
	return p.stop()
}

func (p *Processor) stop() []timeline.Event {
	if p.stopped {
		return nil
	}
	out := p.ramp()
	p.smoothedX, p.smoothedY = 0, 0
	p.stopped = true
	return out
}

func (p *Processor) ramp() []timeline.Event {
	if !p.params.RampEnabled {
		return []timeline.Event{timeline.RelativeDelta(p.lastAt, 0, 0, true)}
	}

	avgX, avgY := p.historyAverage()
	startX, startY := p.smoothedX, p.smoothedY
	if startX == 0 {
		startX = avgX
	}
	if startY == 0 {
		startY = avgY
	}

	steps := p.params.RampSteps()
	decay := p.params.RampDecay
	out := make([]timeline.Event, 0, steps)
	for k := 1; k <= steps; k++ {
		frac := math.Pow(decay, float64(k-1)) - math.Pow(decay, float64(k))
		at := p.lastAt + time.Duration(k)*p.params.Tick
		out = append(out, timeline.RelativeDelta(at,
			startX*frac*p.params.SensitivityX,
			startY*frac*p.params.SensitivityY,
			true))
	}
	return out
}

func (p *Processor) isSmall(s Sample) bool {
	m := s.DX
	if m < 0 {
		m = -m
	}
	n := s.DY
	if n < 0 {
		n = -n
	}
	if n > m {
		m = n
	}
	return m <= p.params.StopThreshold
}

func (p *Processor) remember(s Sample) {
	if len(p.history) == p.params.HistorySize {
		copy(p.history, p.history[1:])
		p.history = p.history[:len(p.history)-1]
	}
	p.history = append(p.history, s)
}

func (p *Processor) historyAverage() (float64, float64) {
	if len(p.history) == 0 {
		return 0, 0
	}
	var sx, sy float64
	for _, s := range p.history {
		sx += float64(s.DX)
		sy += float64(s.DY)
	}
	n := float64(len(p.history))
	return sx / n, sy / n
}

// RampTotal is the telescoped displacement of a ramp started at v0:
// v0·(1 − decay^steps).
func RampTotal(v0, decay float64, steps int) float64 {
	return v0 * (1 - math.Pow(decay, float64(steps)))
}
