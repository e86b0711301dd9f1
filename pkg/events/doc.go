// Package events classifies discrete OS input notifications into timeline
// events and defines the boundary a capture collaborator uses to feed a
// recording session.
package events
