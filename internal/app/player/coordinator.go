package player

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/yskmt/nagara/internal/app/catalog"
	"github.com/yskmt/nagara/internal/app/player/media"
	"github.com/yskmt/nagara/internal/app/preload"
	"github.com/yskmt/nagara/internal/app/selection"
	"github.com/yskmt/nagara/internal/domain/audiofile"
)

// Errors
var (
	ErrNoTrack       = errors.New("no track selected")
	ErrTrackNotFound = errors.New("track not found")
)

// NoTrack is the current-track index when nothing is selected.
const NoTrack = -1

// Coordinator owns the playback state. It drives a media element,
// consumes its event stream, and keeps the intended and observed state
// registers converging. All transitions are applied under one lock;
// stale async completions are checked against the element generation
// before they may touch state.
type Coordinator struct {
	mu sync.RWMutex

	catalog *catalog.Store
	cache   *preload.Cache
	factory media.Factory
	rng     *rand.Rand

	element media.Element
	elemGen uint64

	current  int
	intended bool // What should happen; the single source of truth
	observed bool // What the element last reported; advisory only

	position float64
	duration float64
	state    State

	// Stable next-track prediction for the preload cache, -1 when the
	// current prediction has been invalidated.
	predicted int

	elemEvents chan taggedEvent
	events     chan Event

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

type taggedEvent struct {
	gen uint64
	ev  media.Event
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRand sets the random source used for shuffle selection.
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) { c.rng = rng }
}

// New creates a coordinator over a fresh element from the factory.
func New(store *catalog.Store, factory media.Factory, cache *preload.Cache, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		catalog:    store,
		cache:      cache,
		factory:    factory,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		current:    NoTrack,
		predicted:  NoTrack,
		state:      StateStopped,
		elemEvents: make(chan taggedEvent, 64),
		events:     make(chan Event, 16),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.element = factory()
	c.element.SetVolume(store.Volume())
	go c.pump(c.element, c.elemGen)
	go c.run()
	return c
}

// Events returns the coordinator's event channel.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// pump forwards one element's events into the shared loop, tagged with
// the element generation so a swapped-out element's tail is discarded.
func (c *Coordinator) pump(el media.Element, gen uint64) {
	for ev := range el.Events() {
		select {
		case c.elemEvents <- taggedEvent{gen: gen, ev: ev}:
		case <-c.ctx.Done():
			return
		}
	}
}

// run is the coordinator's event loop.
func (c *Coordinator) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case te := <-c.elemEvents:
			c.handleElementEvent(te)
		}
	}
}

// PlayTrack selects the track at the given global index and starts it.
// A skipped track is not played; selection moves on to the next playable
// one instead.
func (c *Coordinator) PlayTrack(index int) error {
	file, ok := c.catalog.FileAt(index)
	if !ok {
		return ErrTrackNotFound
	}
	if c.catalog.IsSkipped(file.ID) {
		return c.Next()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTrackLocked(index, file, nil)
	return nil
}

// PlayTrackID selects a track by file id.
func (c *Coordinator) PlayTrackID(fileID string) error {
	index := c.catalog.GlobalIndex(fileID)
	if index < 0 {
		return ErrTrackNotFound
	}
	return c.PlayTrack(index)
}

// TogglePlay negates the playback intent. No-op when no track is
// selected; callers wanting playback from nothing use PlayTrack.
func (c *Coordinator) TogglePlay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == NoTrack {
		return
	}
	c.intended = !c.intended
	c.reconcileLocked()
	c.sendEventLocked(c.eventLocked(EventStateChanged))
}

// Pause drops the playback intent, keeping the position. No-op when no
// track is selected or playback is not intended.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == NoTrack || !c.intended {
		return
	}
	c.intended = false
	c.reconcileLocked()
	c.sendEventLocked(c.eventLocked(EventStateChanged))
}

// Stop halts playback and resets the position. The current track stays
// selected; this differs from pause, which keeps the position.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intended = false
	c.observed = false
	c.position = 0
	c.state = StateStopped
	c.element.Pause()
	c.element.Seek(0)
	c.sendEventLocked(c.eventLocked(EventStateChanged))
}

// Next advances to the next track per the current playlist mode,
// preferring a warm preload entry when it matches the computed choice.
func (c *Coordinator) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLocked()
}

// Previous steps back to the previous playable track.
func (c *Coordinator) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := c.catalog.Files()
	playable := c.catalog.PlayableTracks("")
	file, ok := selection.Previous(files, playable, c.current)
	if !ok {
		return nil
	}
	index := c.catalog.GlobalIndex(file.ID)
	c.setTrackLocked(index, file, nil)
	return nil
}

// SeekTo jumps to the given position. The position is set optimistically
// before the element confirms; the preload prediction is dropped.
func (c *Coordinator) SeekTo(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == NoTrack {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	c.position = seconds
	c.invalidatePreloadLocked()
	c.element.Seek(seconds)
	c.sendEventLocked(c.eventLocked(EventPositionChanged))
}

// SetVolume sets the playback volume, clamped to [0, 1], and persists it.
func (c *Coordinator) SetVolume(v float64) {
	c.catalog.SetVolume(v)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.element.SetVolume(c.catalog.Volume())
}

// OnModeChanged drops the preload prediction after a shuffle or repeat
// toggle; the computed "next" may no longer match.
func (c *Coordinator) OnModeChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatePreloadLocked()
}

// Status is a read-only snapshot of the playback state.
type Status struct {
	State           string               `json:"state"`
	CurrentTrack    int                  `json:"currentTrack"`
	File            *audiofile.AudioFile `json:"file,omitempty"`
	IntendedPlaying bool                 `json:"intendedPlaying"`
	IsPlaying       bool                 `json:"isPlaying"`
	Position        float64              `json:"currentTime"`
	Duration        float64              `json:"duration"`
	Volume          float64              `json:"volume"`
}

// Status returns a snapshot of the playback state.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		State:           c.state.String(),
		CurrentTrack:    c.current,
		IntendedPlaying: c.intended,
		IsPlaying:       c.observed,
		Position:        c.position,
		Duration:        c.duration,
		Volume:          c.catalog.Volume(),
	}
	if f, ok := c.catalog.FileAt(c.current); ok {
		st.File = &f
	}
	return st
}

// Close shuts the coordinator down and closes its event channel.
func (c *Coordinator) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.element.Close()
	c.cache.Invalidate()
	close(c.events)
}

// setTrackLocked makes index the current track. A non-nil warm element
// is adopted in place of a cold load. Must be called with the lock held.
func (c *Coordinator) setTrackLocked(index int, file audiofile.AudioFile, warm media.Element) {
	c.invalidatePreloadLocked()

	c.current = index
	c.position = 0
	c.duration = 0
	c.observed = false
	c.intended = true
	c.state = StateLoading

	if warm != nil {
		c.swapElementLocked(warm)
		c.duration = warm.Duration()
	} else {
		c.element.SetSource(file.StreamURL)
	}
	c.issuePlayLocked()

	c.catalog.RecordPlay(file.ID)
	c.sendEventLocked(c.eventLocked(EventTrackChanged))
	c.sendEventLocked(c.eventLocked(EventStateChanged))
}

// nextLocked advances per playlist mode, consuming a matching preload
// entry when one is warm. Must be called with the lock held.
func (c *Coordinator) nextLocked() error {
	files := c.catalog.Files()
	playable := c.catalog.PlayableTracks("")
	if len(playable) == 0 {
		return nil
	}

	shuffle := false
	if pl, ok := c.catalog.CurrentPlaylist(); ok {
		shuffle = pl.ShuffleMode
	}
	file, ok := selection.Next(files, playable, c.current, shuffle, c.rng)
	if !ok {
		return nil
	}
	index := c.catalog.GlobalIndex(file.ID)

	if warm, hit := c.cache.Consume(index); hit {
		zlog.Debug().Msgf("player: warm handover for track index=%d", index)
		c.setTrackLocked(index, file, warm)
		return nil
	}
	c.setTrackLocked(index, file, nil)
	return nil
}

// reconcileLocked commands the element toward the intended state. Must
// be called with the lock held.
func (c *Coordinator) reconcileLocked() {
	if c.intended {
		if !c.element.Paused() {
			return
		}
		c.issuePlayLocked()
		return
	}
	c.observed = false
	if c.state == StatePlaying || c.state == StateLoading {
		c.state = StatePaused
	}
	// Always issue the pause: it also aborts a play attempt that is
	// still waiting on readiness.
	c.element.Pause()
}

// issuePlayLocked starts an asynchronous play attempt. The completion is
// validated against the element generation and the current intent, so a
// stale result can never override newer state. Must be called with the
// lock held.
func (c *Coordinator) issuePlayLocked() {
	gen := c.elemGen
	el := c.element

	go func() {
		err := el.Play(c.ctx)
		if err == nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			// The intent may have flipped while the attempt was waiting
			// on readiness and the element missed the abort window.
			if gen == c.elemGen && !c.intended && !c.closed {
				el.Pause()
			}
			return
		}
		if errors.Is(err, media.ErrAborted) {
			// Aborts are expected from rapid user interaction.
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.elemGen || !c.intended || c.closed {
			return
		}
		zlog.Warn().Msgf("player: play attempt failed: %v", err)
		c.intended = false
		c.observed = false
		c.state = StateError
		ev := c.eventLocked(EventPlaybackError)
		ev.Message = "failed to start playback"
		c.sendEventLocked(ev)
	}()
}

// swapElementLocked replaces the active element, retiring the old one.
// Must be called with the lock held.
func (c *Coordinator) swapElementLocked(el media.Element) {
	c.element.Close()
	c.elemGen++
	c.element = el
	c.element.SetVolume(c.catalog.Volume())
	go c.pump(el, c.elemGen)
}

// handleElementEvent applies one element event to the state machine.
func (c *Coordinator) handleElementEvent(te taggedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if te.gen != c.elemGen || c.closed {
		return // event from a retired element
	}
	ev := te.ev

	switch ev.Type {
	case media.EventLoadStart:
		if c.current != NoTrack {
			c.state = StateLoading
		}

	case media.EventDurationChange:
		c.duration = ev.Duration
		c.sendEventLocked(c.eventLocked(EventPositionChanged))

	case media.EventCanPlay:
		if c.intended && c.element.Paused() {
			c.issuePlayLocked()
		}

	case media.EventPlaying:
		c.observed = true
		if c.state != StateStopped {
			c.state = StatePlaying
		}
		c.sendEventLocked(c.eventLocked(EventStateChanged))

	case media.EventPause:
		// Advisory only; never touches the intent register.
		c.observed = false
		if c.state == StatePlaying {
			c.state = StatePaused
		}
		c.sendEventLocked(c.eventLocked(EventStateChanged))

	case media.EventTimeUpdate:
		c.position = ev.Position
		if ev.Duration > 0 {
			c.duration = ev.Duration
		}
		c.maybePreloadLocked()
		c.sendEventLocked(c.eventLocked(EventPositionChanged))

	case media.EventSeeking:
		if c.intended {
			// Forced false while seeking so the UI shows loading.
			c.observed = false
			c.state = StateSeeking
		}

	case media.EventSeeked:
		c.position = ev.Position
		if c.state == StateSeeking {
			c.state = StateLoading
		}
		if c.intended && c.element.Paused() {
			c.issuePlayLocked()
		}

	case media.EventEnded:
		c.handleTrackEndLocked()

	case media.EventError:
		zlog.Warn().Msgf("player: media error: %v", ev.Err)
		c.intended = false
		c.observed = false
		c.state = StateError
		errEv := c.eventLocked(EventPlaybackError)
		errEv.Message = "failed to load audio"
		c.sendEventLocked(errEv)
	}
}

// handleTrackEndLocked restarts the track under repeat mode, otherwise
// advances selection. Must be called with the lock held.
func (c *Coordinator) handleTrackEndLocked() {
	c.observed = false

	if pl, ok := c.catalog.CurrentPlaylist(); ok && pl.RepeatMode {
		c.position = 0
		c.element.Seek(0)
		c.issuePlayLocked()
		return
	}
	_ = c.nextLocked()
}

// maybePreloadLocked warms the predicted next track once playback has
// crossed the progress threshold. The prediction is computed once per
// track and dropped whenever "next" may have changed. Must be called
// with the lock held.
func (c *Coordinator) maybePreloadLocked() {
	if c.duration <= 0 {
		return
	}
	progress := c.position / c.duration

	if c.predicted != NoTrack && c.cache.Holds(c.predicted) {
		return
	}
	if !c.cache.ShouldPreload(progress, c.predicted) {
		return
	}

	files := c.catalog.Files()
	playable := c.catalog.PlayableTracks("")
	shuffle := false
	if pl, ok := c.catalog.CurrentPlaylist(); ok {
		shuffle = pl.ShuffleMode
	}
	file, ok := selection.Next(files, playable, c.current, shuffle, c.rng)
	if !ok {
		return
	}
	index := c.catalog.GlobalIndex(file.ID)
	if index == c.current {
		return
	}
	c.predicted = index
	c.cache.Prime(index, file.StreamURL)
}

// invalidatePreloadLocked drops the warm slot and the prediction. Must
// be called with the lock held.
func (c *Coordinator) invalidatePreloadLocked() {
	c.cache.Invalidate()
	c.predicted = NoTrack
}

// eventLocked builds an event snapshot. Must be called with the lock held.
func (c *Coordinator) eventLocked(t EventType) Event {
	ev := Event{
		Type:     t,
		Index:    c.current,
		State:    c.state,
		Position: c.position,
		Duration: c.duration,
	}
	if f, ok := c.catalog.FileAt(c.current); ok {
		ev.Track = &f
	}
	return ev
}

// sendEventLocked sends an event without blocking. Must be called with
// the lock held.
func (c *Coordinator) sendEventLocked(ev Event) {
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	default:
		// Channel full, drop event
	}
}
