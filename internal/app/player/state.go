// Package player provides the playback coordinator: the state machine
// reconciling intended playback against the observed media element.
package player

// State represents the coordinator's playback state.
type State int

const (
	StateStopped State = iota // No playback, position reset
	StateLoading              // A track is loading
	StatePlaying              // The element reported running playback
	StatePaused               // Playback is paused
	StateSeeking              // A position jump is in flight
	StateError                // The last load or play attempt failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
