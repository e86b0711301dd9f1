package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu        sync.Mutex
	recording bool
	raw       [][2]int
	discrete  []Notification
}

func (s *recordingSink) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *recordingSink) OnRawSample(dx, dy int) {
	s.mu.Lock()
	s.raw = append(s.raw, [2]int{dx, dy})
	s.mu.Unlock()
}

func (s *recordingSink) OnDiscreteEvent(n Notification) {
	s.mu.Lock()
	s.discrete = append(s.discrete, n)
	s.mu.Unlock()
}

const sampleScript = `
# gesture
{"t":0.5,"kind":"button_down","button":"right","x":10,"y":20}
{"t":0.51,"kind":"raw","dx":10,"dy":0}
{"t":0.52,"kind":"raw","dx":1,"dy":0}
{"t":0.6,"kind":"button_up","button":"right","x":10,"y":20}
{"t":0.7,"kind":"key_down","key":65,"label":"A"}
`

func TestScriptSourcePacesAgainstAbsoluteDeadlines(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var deadlines []time.Duration
	src, err := NewScriptSource(ScriptOptions{
		Reader: strings.NewReader(sampleScript),
		Paced:  true,
		Clock:  func() time.Time { return base },
		WaitUntil: func(_ context.Context, deadline time.Time) error {
			deadlines = append(deadlines, deadline.Sub(base))
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new script source: %v", err)
	}
	sink := &recordingSink{recording: true}
	res, err := src.Run(context.Background(), sink)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Lines != 5 || res.Raw != 2 || res.Discrete != 3 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []time.Duration{500 * time.Millisecond, 510 * time.Millisecond, 520 * time.Millisecond, 600 * time.Millisecond, 700 * time.Millisecond}
	if len(deadlines) != len(want) {
		t.Fatalf("expected %d waits, got %d", len(want), len(deadlines))
	}
	for i := range want {
		if deadlines[i] != want[i] {
			t.Fatalf("deadline %d = %s, want %s", i, deadlines[i], want[i])
		}
	}
	if sink.raw[0] != [2]int{10, 0} {
		t.Fatalf("unexpected raw sample %v", sink.raw[0])
	}
	if sink.discrete[0].Kind != NotifyButtonDown || sink.discrete[0].X != 10 {
		t.Fatalf("unexpected notification %+v", sink.discrete[0])
	}
	if sink.discrete[2].Key.Code != 65 || sink.discrete[2].Key.Label != "A" {
		t.Fatalf("unexpected key notification %+v", sink.discrete[2])
	}
}

func TestScriptSourceSkipsWhenNotRecording(t *testing.T) {
	src, err := NewScriptSource(ScriptOptions{Reader: strings.NewReader(sampleScript)})
	if err != nil {
		t.Fatalf("new script source: %v", err)
	}
	sink := &recordingSink{}
	res, err := src.Run(context.Background(), sink)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped != 5 || len(sink.raw) != 0 || len(sink.discrete) != 0 {
		t.Fatalf("expected every line to be skipped, got %+v", res)
	}
}

func TestScriptSourceRejectsMalformedLines(t *testing.T) {
	cases := []string{
		`{"t":0.1,"kind":"teleport"}`,
		`{"t":-1,"kind":"raw","dx":1}`,
		`{"t":0.1,"kind":"raw","speed":3}`,
		`not json`,
		`{"t":0.1,"kind":"button_down","button":"thumb"}`,
	}
	for _, line := range cases {
		src, err := NewScriptSource(ScriptOptions{Reader: strings.NewReader(line)})
		if err != nil {
			t.Fatalf("new script source: %v", err)
		}
		_, err = src.Run(context.Background(), &recordingSink{recording: true})
		if !errors.Is(err, ErrMalformedScript) {
			t.Fatalf("%s: expected ErrMalformedScript, got %v", line, err)
		}
		if !strings.Contains(err.Error(), "line 1") {
			t.Fatalf("error should carry the line number: %v", err)
		}
	}
}

func TestScriptSourceStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src, err := NewScriptSource(ScriptOptions{
		Reader: strings.NewReader(sampleScript),
		Paced:  true,
		WaitUntil: func(ctx context.Context, _ time.Time) error {
			cancel()
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("new script source: %v", err)
	}
	sink := &recordingSink{recording: true}
	err = src.Stream(ctx, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(sink.discrete) != 0 {
		t.Fatalf("nothing should be delivered after cancellation")
	}
}

func TestSourceFuncAdapts(t *testing.T) {
	var called bool
	var src Source = SourceFunc(func(ctx context.Context, sink Sink) error {
		called = true
		sink.OnRawSample(1, 2)
		return nil
	})
	sink := &recordingSink{}
	if err := src.Stream(context.Background(), sink); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !called || len(sink.raw) != 1 {
		t.Fatalf("source func not invoked")
	}
}

func TestNewScriptSourceRequiresReader(t *testing.T) {
	if _, err := NewScriptSource(ScriptOptions{}); err == nil {
		t.Fatalf("expected error without reader")
	}
}
