package timeline

import "errors"

// ErrInvalidEvent indicates an event failed validation and was not appended.
var ErrInvalidEvent = errors.New("invalid timeline event")

// ErrOutOfOrder indicates an event was older than the current tail of the timeline.
var ErrOutOfOrder = errors.New("timeline event out of order")
