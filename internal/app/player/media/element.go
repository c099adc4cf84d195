// Package media defines the media element boundary: the playback surface
// the coordinator drives and observes. A default implementation streams
// over HTTP with a simulated clock; hosts embedding a real audio backend
// provide their own Element.
package media

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrAborted is returned by Play when the attempt was superseded by a
// newer command (pause or source change) before it could start. This is
// the expected outcome of rapid user interaction, not a failure.
var ErrAborted = errors.New("play attempt aborted")

// ErrNoSource is returned by Play when no source has been set.
var ErrNoSource = errors.New("no media source set")

// EventType identifies a media element lifecycle event.
type EventType int

const (
	EventLoadStart      EventType = iota // A new source started loading
	EventCanPlay                         // Enough data buffered to start
	EventPlaying                         // Playback is running
	EventPause                           // Playback stopped running
	EventTimeUpdate                      // Position advanced
	EventDurationChange                  // Duration became known or changed
	EventSeeking                         // A position jump started
	EventSeeked                          // A position jump completed
	EventEnded                           // Playback reached the end
	EventError                           // Loading or playback failed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventLoadStart:
		return "loadstart"
	case EventCanPlay:
		return "canplay"
	case EventPlaying:
		return "playing"
	case EventPause:
		return "pause"
	case EventTimeUpdate:
		return "timeupdate"
	case EventDurationChange:
		return "durationchange"
	case EventSeeking:
		return "seeking"
	case EventSeeked:
		return "seeked"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single media element event. Position and Duration are in
// seconds and carry the element clock at emission time.
type Event struct {
	Type     EventType
	Position float64
	Duration float64
	Err      error // Set for EventError only
}

// ReadyState mirrors how much of the current source is available.
type ReadyState int

const (
	HaveNothing     ReadyState = iota // No data for the current source
	HaveMetadata                      // Size and duration are known
	HaveCurrentData                   // Enough to start playing
	HaveEnoughData                    // Buffered well ahead
)

// Element is the playback surface. Commands are cheap and non-blocking
// except Play, which waits for readiness and is expected to be issued
// from a goroutine. Implementations deliver events in emission order.
type Element interface {
	// SetSource points the element at a new stream URL, discarding any
	// in-flight load and resetting the clock.
	SetSource(url string)
	Source() string

	// Play starts playback once the source is ready. Returns ErrAborted
	// when a newer command superseded the attempt before it started.
	Play(ctx context.Context) error
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)

	Paused() bool
	Position() float64
	Duration() float64
	ReadyState() ReadyState

	// Events returns the element's event stream. The channel is closed
	// by Close.
	Events() <-chan Event
	Close()
}

// Factory creates elements. The preload cache uses it to prime a second
// element without disturbing the active one.
type Factory func() Element
