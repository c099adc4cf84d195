package mediasession

import (
	zlog "github.com/rs/zerolog/log"
)

// LogSession is the fallback host session: it writes now-playing lines
// to the log. Platforms without a native media session integration get
// this one, so the rest of the player never has to care.
type LogSession struct{}

// NewLogSession creates a log-backed session.
func NewLogSession() *LogSession {
	return &LogSession{}
}

func (s *LogSession) SetMetadata(md Metadata) error {
	zlog.Info().
		Str("title", md.Title).
		Str("album", md.Album).
		Msg("Now playing")
	return nil
}

func (s *LogSession) SetPlaybackState(playing bool) error {
	zlog.Debug().Bool("playing", playing).Msg("Playback state")
	return nil
}

func (s *LogSession) SetPositionState(ps PositionState) error {
	zlog.Debug().
		Float64("position", ps.Position).
		Float64("duration", ps.Duration).
		Msg("Position")
	return nil
}

// SetActionHandler accepts and ignores all actions; a log has no
// transport controls.
func (s *LogSession) SetActionHandler(Action, func(position float64)) error {
	return nil
}
