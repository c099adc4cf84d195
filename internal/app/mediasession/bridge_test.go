package mediasession

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yskmt/nagara/internal/app/catalog"
	"github.com/yskmt/nagara/internal/app/player"
	"github.com/yskmt/nagara/internal/domain/audiofile"
)

type fakeSession struct {
	mu        sync.Mutex
	metadata  []Metadata
	playing   []bool
	positions []PositionState
	handlers  map[Action]func(position float64)
}

func newFakeSession() *fakeSession {
	return &fakeSession{handlers: make(map[Action]func(position float64))}
}

func (s *fakeSession) SetMetadata(md Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = append(s.metadata, md)
	return nil
}

func (s *fakeSession) SetPlaybackState(playing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = append(s.playing, playing)
	return nil
}

func (s *fakeSession) SetPositionState(ps PositionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, ps)
	return nil
}

func (s *fakeSession) SetActionHandler(action Action, fn func(position float64)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = fn
	return nil
}

type fakeTransport struct {
	toggles, pauses, nexts, prevs int
	seeks                         []float64
}

func (f *fakeTransport) TogglePlay()        { f.toggles++ }
func (f *fakeTransport) Pause()             { f.pauses++ }
func (f *fakeTransport) Next() error        { f.nexts++; return nil }
func (f *fakeTransport) Previous() error    { f.prevs++; return nil }
func (f *fakeTransport) SeekTo(pos float64) { f.seeks = append(f.seeks, pos) }

func TestBridge_TrackChangedSetsMetadata(t *testing.T) {
	cat := catalog.New()
	p, _ := cat.CreatePlaylist("Road Trip", "folder-1", "")
	sess := newFakeSession()
	b := New(sess, &fakeTransport{}, cat)

	track := &audiofile.AudioFile{ID: "f1", Name: "highway song.mp3", PlaylistID: p.ID}
	require.NoError(t, b.Send(player.Event{Type: player.EventTrackChanged, Track: track, Index: 0}))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	require.Len(t, sess.metadata, 1)
	assert.Equal(t, "highway song", sess.metadata[0].Title)
	assert.Equal(t, "Road Trip", sess.metadata[0].Album, "the owning playlist is the album")
}

func TestBridge_StateChangedMirrorsPlayback(t *testing.T) {
	sess := newFakeSession()
	b := New(sess, &fakeTransport{}, catalog.New())

	require.NoError(t, b.Send(player.Event{Type: player.EventStateChanged, State: player.StatePlaying}))
	require.NoError(t, b.Send(player.Event{Type: player.EventStateChanged, State: player.StatePaused}))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.Equal(t, []bool{true, false}, sess.playing)
}

func TestBridge_PositionUpdatesAreThrottled(t *testing.T) {
	sess := newFakeSession()
	b := New(sess, &fakeTransport{}, catalog.New())

	// A burst far faster than the limiter allows.
	for i := 0; i < 20; i++ {
		require.NoError(t, b.Send(player.Event{
			Type:     player.EventPositionChanged,
			Position: float64(i),
			Duration: 60,
		}))
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.LessOrEqual(t, len(sess.positions), 2, "most updates are dropped")
	assert.GreaterOrEqual(t, len(sess.positions), 1)
}

func TestBridge_PositionWithoutDurationIgnored(t *testing.T) {
	sess := newFakeSession()
	b := New(sess, &fakeTransport{}, catalog.New())

	require.NoError(t, b.Send(player.Event{Type: player.EventPositionChanged, Position: 3}))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.Empty(t, sess.positions)
}

func TestBridge_ActionsDriveTransport(t *testing.T) {
	sess := newFakeSession()
	tr := &fakeTransport{}
	New(sess, tr, catalog.New())

	sess.mu.Lock()
	handlers := sess.handlers
	sess.mu.Unlock()
	require.Len(t, handlers, 5)

	handlers[ActionPlay](0)
	handlers[ActionPause](0)
	handlers[ActionNextTrack](0)
	handlers[ActionPreviousTrack](0)
	handlers[ActionSeekTo](17.5)

	assert.Equal(t, 1, tr.toggles)
	assert.Equal(t, 1, tr.pauses)
	assert.Equal(t, 1, tr.nexts)
	assert.Equal(t, 1, tr.prevs)
	assert.Equal(t, []float64{17.5}, tr.seeks)
}

func TestBridge_NilSessionDropsEverything(t *testing.T) {
	b := New(nil, &fakeTransport{}, catalog.New())
	assert.NoError(t, b.Send(player.Event{Type: player.EventStateChanged, State: player.StatePlaying}))
}
