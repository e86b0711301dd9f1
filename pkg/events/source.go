package events

import "context"

// Sink is what a capture collaborator notifies. Implementations must return
// quickly and never block the caller.
type Sink interface {
	IsRecording() bool
	OnRawSample(dx, dy int)
	OnDiscreteEvent(n Notification)
}

// Source streams notifications into a sink until the input is exhausted or
// ctx is cancelled.
type Source interface {
	Stream(ctx context.Context, sink Sink) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, sink Sink) error

// Stream calls the underlying function.
func (f SourceFunc) Stream(ctx context.Context, sink Sink) error {
	return f(ctx, sink)
}
