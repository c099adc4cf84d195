package media

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAudio(t *testing.T, size int) *httptest.Server {
	t.Helper()
	payload := bytes.Repeat([]byte{0x55}, size)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		http.ServeContent(w, r, "track.mp3", time.Time{}, bytes.NewReader(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, el *StreamElement, want EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-el.Events():
			require.True(t, ok, "event channel closed while waiting for %s", want)
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestStreamElement_LoadEstimatesDuration(t *testing.T) {
	srv := serveAudio(t, 32000)

	el := NewStreamElement(Config{BytesPerSecond: 16000})
	defer el.Close()

	el.SetSource(srv.URL + "/track.mp3")

	collect(t, el, EventLoadStart, time.Second)
	dur := collect(t, el, EventDurationChange, 2*time.Second)
	assert.InDelta(t, 2.0, dur.Duration, 0.001, "32000 bytes at 16000 B/s")

	collect(t, el, EventCanPlay, 2*time.Second)
	assert.GreaterOrEqual(t, el.ReadyState(), HaveCurrentData)
	assert.Equal(t, 2.0, el.Duration())
}

func TestStreamElement_PlayWithoutSource(t *testing.T) {
	el := NewStreamElement(Config{})
	defer el.Close()

	err := el.Play(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestStreamElement_PlayAdvancesClock(t *testing.T) {
	srv := serveAudio(t, 1<<20)

	el := NewStreamElement(Config{TickInterval: 10 * time.Millisecond})
	defer el.Close()
	el.SetSource(srv.URL + "/track.mp3")
	collect(t, el, EventCanPlay, 2*time.Second)

	require.NoError(t, el.Play(context.Background()))
	assert.False(t, el.Paused())

	collect(t, el, EventTimeUpdate, 2*time.Second)
	assert.Greater(t, el.Position(), 0.0)

	el.Pause()
	assert.True(t, el.Paused())
	pos := el.Position()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, pos, el.Position(), "the clock stops on pause")
}

func TestStreamElement_PauseAbortsPendingPlay(t *testing.T) {
	// A server that never responds keeps the load pending, so Play waits
	// on readiness until the pause supersedes it.
	stall := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-stall
	}))
	t.Cleanup(func() {
		close(stall)
		srv.Close()
	})

	el := NewStreamElement(Config{})
	defer el.Close()
	el.SetSource(srv.URL + "/track.mp3")

	errCh := make(chan error, 1)
	go func() {
		errCh <- el.Play(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	el.Pause()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("play attempt did not abort")
	}
	assert.True(t, el.Paused())
}

func TestStreamElement_ContextCancelAbortsPlay(t *testing.T) {
	stall := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-stall
	}))
	t.Cleanup(func() {
		close(stall)
		srv.Close()
	})

	el := NewStreamElement(Config{})
	defer el.Close()
	el.SetSource(srv.URL + "/track.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- el.Play(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("play attempt did not abort on context cancel")
	}
}

func TestStreamElement_SeekClamps(t *testing.T) {
	srv := serveAudio(t, 32000)

	el := NewStreamElement(Config{BytesPerSecond: 16000})
	defer el.Close()
	el.SetSource(srv.URL + "/track.mp3")
	collect(t, el, EventCanPlay, 2*time.Second)

	el.Seek(-5)
	assert.Equal(t, 0.0, el.Position())

	el.Seek(100)
	assert.Equal(t, 2.0, el.Position(), "seek clamps to the duration")

	ev := collect(t, el, EventSeeked, time.Second)
	assert.Equal(t, 0.0, ev.Position)
}

func TestStreamElement_FailedLoadEmitsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	el := NewStreamElement(Config{})
	defer el.Close()
	el.SetSource(srv.URL + "/missing.mp3")

	ev := collect(t, el, EventError, 2*time.Second)
	assert.Error(t, ev.Err)
}

func TestStreamElement_ReachingEndEmitsEnded(t *testing.T) {
	srv := serveAudio(t, 800)

	// 800 bytes at 16000 B/s is a 50ms track.
	el := NewStreamElement(Config{BytesPerSecond: 16000, TickInterval: 10 * time.Millisecond})
	defer el.Close()
	el.SetSource(srv.URL + "/track.mp3")
	collect(t, el, EventCanPlay, 2*time.Second)

	require.NoError(t, el.Play(context.Background()))

	ev := collect(t, el, EventEnded, 3*time.Second)
	assert.Equal(t, el.Duration(), ev.Position)
	assert.True(t, el.Paused())
}

func TestStreamElement_SetSourceSupersedesLoad(t *testing.T) {
	slow := make(chan struct{})
	slowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-slow
		w.Write([]byte("late"))
	}))
	t.Cleanup(func() {
		close(slow)
		slowSrv.Close()
	})
	fast := serveAudio(t, 16000)

	el := NewStreamElement(Config{BytesPerSecond: 16000})
	defer el.Close()

	el.SetSource(slowSrv.URL + "/slow.mp3")
	el.SetSource(fast.URL + "/track.mp3")

	collect(t, el, EventCanPlay, 2*time.Second)
	assert.Equal(t, 1.0, el.Duration(), "only the newest source counts")
}
