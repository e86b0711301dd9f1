package events

import "errors"

// ErrMalformedScript indicates a capture script line could not be decoded.
var ErrMalformedScript = errors.New("malformed capture script")

// ErrUnknownNotification indicates a notification kind the classifier does not handle.
var ErrUnknownNotification = errors.New("unknown notification kind")
