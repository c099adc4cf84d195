package preload

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yskmt/nagara/internal/app/player/media"
)

// fakeElement is a controllable media element for cache tests.
type fakeElement struct {
	mu     sync.Mutex
	source string
	ready  media.ReadyState
	closed bool
	events chan media.Event
}

func newFakeElement() *fakeElement {
	return &fakeElement{events: make(chan media.Event, 8)}
}

func (f *fakeElement) SetSource(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = url
}

func (f *fakeElement) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeElement) Play(context.Context) error { return nil }
func (f *fakeElement) Pause()                     {}
func (f *fakeElement) Seek(float64)               {}
func (f *fakeElement) SetVolume(float64)          {}
func (f *fakeElement) Paused() bool               { return true }
func (f *fakeElement) Position() float64          { return 0 }
func (f *fakeElement) Duration() float64          { return 0 }

func (f *fakeElement) ReadyState() media.ReadyState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeElement) setReady(rs media.ReadyState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = rs
}

func (f *fakeElement) Events() <-chan media.Event { return f.events }

func (f *fakeElement) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeElement) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// elementTracker hands out fake elements and remembers them.
type elementTracker struct {
	mu      sync.Mutex
	created []*fakeElement
}

func (tr *elementTracker) factory() media.Element {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	el := newFakeElement()
	tr.created = append(tr.created, el)
	return el
}

func (tr *elementTracker) last() *fakeElement {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.created[len(tr.created)-1]
}

func TestCache_ShouldPreload(t *testing.T) {
	tr := &elementTracker{}
	c := New(tr.factory, 0.5)

	assert.False(t, c.ShouldPreload(0.3, 2), "below threshold")
	assert.True(t, c.ShouldPreload(0.5, 2), "at threshold")
	assert.True(t, c.ShouldPreload(0.9, 2))

	c.Prime(2, "http://example/2")
	assert.False(t, c.ShouldPreload(0.9, 2), "already primed")
	assert.True(t, c.ShouldPreload(0.9, 3), "different prediction")
}

func TestCache_InvalidThresholdFallsBack(t *testing.T) {
	tr := &elementTracker{}
	c := New(tr.factory, 0)

	assert.False(t, c.ShouldPreload(0.49, 1))
	assert.True(t, c.ShouldPreload(0.5, 1))
}

func TestCache_PrimeAndConsume(t *testing.T) {
	tr := &elementTracker{}
	c := New(tr.factory, 0.5)

	c.Prime(2, "http://example/2")
	require.True(t, c.Holds(2))

	el := tr.last()
	assert.Equal(t, "http://example/2", el.Source())

	// Not buffered enough yet; consume falls back to a cold load.
	got, ok := c.Consume(2)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, c.Holds(2), "cache is empty after every consume")

	// Warm handover once ready.
	c.Prime(2, "http://example/2")
	warm := tr.last()
	warm.setReady(media.HaveCurrentData)

	got, ok = c.Consume(2)
	require.True(t, ok)
	assert.Same(t, warm, got.(*fakeElement))
	assert.False(t, warm.isClosed(), "a handed-over element stays open")
	assert.False(t, c.Holds(2))
}

func TestCache_ConsumeMissPurges(t *testing.T) {
	tr := &elementTracker{}
	c := New(tr.factory, 0.5)

	c.Prime(2, "http://example/2")
	primed := tr.last()
	primed.setReady(media.HaveEnoughData)

	got, ok := c.Consume(5)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.True(t, primed.isClosed(), "a missed prediction is discarded")
}

func TestCache_ReplacementClosesOldElement(t *testing.T) {
	tr := &elementTracker{}
	c := New(tr.factory, 0.5)

	c.Prime(2, "http://example/2")
	first := tr.last()
	c.Prime(3, "http://example/3")

	assert.True(t, first.isClosed(), "capacity is one; the older prediction is evicted")
	assert.False(t, c.Holds(2))
	assert.True(t, c.Holds(3))
}

func TestCache_PrimeSameIndexIsIdempotent(t *testing.T) {
	tr := &elementTracker{}
	c := New(tr.factory, 0.5)

	c.Prime(2, "http://example/2")
	c.Prime(2, "http://example/2")

	tr.mu.Lock()
	created := len(tr.created)
	tr.mu.Unlock()
	assert.Equal(t, 1, created)
}

func TestCache_Invalidate(t *testing.T) {
	tr := &elementTracker{}
	c := New(tr.factory, 0.5)

	c.Prime(2, "http://example/2")
	el := tr.last()

	c.Invalidate()
	assert.False(t, c.Holds(2))
	assert.True(t, el.isClosed())
}
