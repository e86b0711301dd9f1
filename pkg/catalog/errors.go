package catalog

import "errors"

// ErrNotFound indicates no catalog entry exists for the requested recording.
var ErrNotFound = errors.New("recording not in catalog")
