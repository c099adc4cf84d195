// Package mediasession mirrors playback into a host media session
// (desktop media keys, now-playing surfaces) and feeds its transport
// actions back into the player.
package mediasession

import (
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/yskmt/nagara/internal/app/catalog"
	"github.com/yskmt/nagara/internal/app/player"
)

// Action is a transport action originating from the host session.
type Action string

const (
	ActionPlay          Action = "play"
	ActionPause         Action = "pause"
	ActionNextTrack     Action = "nexttrack"
	ActionPreviousTrack Action = "previoustrack"
	ActionSeekTo        Action = "seekto"
)

// Metadata describes the current track for now-playing surfaces.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// PositionState carries playback timing for the host's progress UI.
type PositionState struct {
	Duration     float64
	Position     float64
	PlaybackRate float64
}

// Session is the host integration. Implementations talk to whatever
// the platform offers (MPRIS, SMTC); absence of a session is normal
// and every method may fail without consequence for playback.
type Session interface {
	SetMetadata(Metadata) error
	SetPlaybackState(playing bool) error
	SetPositionState(PositionState) error
	SetActionHandler(action Action, fn func(position float64)) error
}

// Transport is the slice of the player the bridge drives.
type Transport interface {
	TogglePlay()
	Pause()
	Next() error
	Previous() error
	SeekTo(position float64)
}

// Bridge forwards player events to the session and session actions to
// the transport. It implements the notification hub's Stream interface.
type Bridge struct {
	session   Session
	transport Transport
	catalog   *catalog.Store

	// Position updates arrive several times a second; the host needs
	// far less.
	positionLimiter *rate.Limiter
}

// New creates a bridge and registers transport action handlers with the
// session. A nil session yields a bridge that drops everything.
func New(session Session, transport Transport, cat *catalog.Store) *Bridge {
	b := &Bridge{
		session:         session,
		transport:       transport,
		catalog:         cat,
		positionLimiter: rate.NewLimiter(rate.Limit(1), 1),
	}
	b.registerActions()
	return b
}

func (b *Bridge) registerActions() {
	if b.session == nil || b.transport == nil {
		return
	}

	handlers := map[Action]func(position float64){
		ActionPlay:          func(float64) { b.transport.TogglePlay() },
		ActionPause:         func(float64) { b.transport.Pause() },
		ActionNextTrack:     func(float64) { _ = b.transport.Next() },
		ActionPreviousTrack: func(float64) { _ = b.transport.Previous() },
		ActionSeekTo:        func(pos float64) { b.transport.SeekTo(pos) },
	}
	for action, fn := range handlers {
		if err := b.session.SetActionHandler(action, fn); err != nil {
			zlog.Debug().Err(err).Str("action", string(action)).Msg("Media session action not available")
		}
	}
}

// Send receives a player event from the notification hub.
func (b *Bridge) Send(ev player.Event) error {
	if b.session == nil {
		return nil
	}

	switch ev.Type {
	case player.EventTrackChanged:
		b.updateMetadata(ev)
	case player.EventStateChanged:
		if err := b.session.SetPlaybackState(ev.State == player.StatePlaying); err != nil {
			zlog.Debug().Err(err).Msg("Failed to set media session playback state")
		}
	case player.EventPositionChanged:
		if !b.positionLimiter.Allow() {
			return nil
		}
		b.updatePosition(ev)
	}
	return nil
}

func (b *Bridge) updateMetadata(ev player.Event) {
	if ev.Track == nil {
		return
	}

	album := ""
	if p, ok := b.catalog.Playlist(ev.Track.PlaylistID); ok {
		album = p.Name
	}
	md := Metadata{
		Title:  ev.Track.DisplayName(),
		Artist: "Unknown Artist",
		Album:  album,
	}
	if err := b.session.SetMetadata(md); err != nil {
		zlog.Debug().Err(err).Msg("Failed to set media session metadata")
	}
}

func (b *Bridge) updatePosition(ev player.Event) {
	if ev.Duration <= 0 {
		return
	}
	ps := PositionState{
		Duration:     ev.Duration,
		Position:     min(ev.Position, ev.Duration),
		PlaybackRate: 1,
	}
	if err := b.session.SetPositionState(ps); err != nil {
		zlog.Debug().Err(err).Msg("Failed to set media session position")
	}
}
