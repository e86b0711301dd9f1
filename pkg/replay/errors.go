package replay

import "errors"

// ErrEmptyTimeline indicates playback was requested for a snapshot with no events.
var ErrEmptyTimeline = errors.New("timeline is empty")

// errPressCancelled marks a button press dropped because playback was
// cancelled before the cursor settled.
var errPressCancelled = errors.New("press cancelled before settle")
