package player

import "github.com/yskmt/nagara/internal/domain/audiofile"

// EventType represents a coordinator event type.
type EventType int

const (
	EventTrackChanged    EventType = iota // The current track changed
	EventStateChanged                     // Intent or observed state changed
	EventPositionChanged                  // Position or duration advanced
	EventPlaybackError                    // A load or play attempt failed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventPlaybackError:
		return "playback_error"
	default:
		return "unknown"
	}
}

// Event represents a coordinator event.
type Event struct {
	Type     EventType
	Track    *audiofile.AudioFile // Current track (nil when none)
	Index    int                  // Global track index (-1 when none)
	State    State
	Position float64
	Duration float64
	Message  string // Error description for EventPlaybackError
}
