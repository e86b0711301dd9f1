package session

import (
	"errors"

	"github.com/offlinefirst/motionreplay/pkg/replay"
)

var (
	// ErrBusy is returned when an operation needs the idle phase.
	ErrBusy = errors.New("session is busy")
	// ErrEmptyTimeline is returned when playback is requested without events.
	ErrEmptyTimeline = replay.ErrEmptyTimeline
	// ErrNotRecording is returned by StopRecording outside a recording.
	ErrNotRecording = errors.New("session is not recording")
	// ErrNotPlaying is returned by StopPlayback outside a playback.
	ErrNotPlaying = errors.New("session is not playing")
)
