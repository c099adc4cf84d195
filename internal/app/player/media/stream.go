package media

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Config holds stream element configuration.
type Config struct {
	Client         *http.Client  // HTTP client for stream fetches
	BytesPerSecond int           // Nominal bitrate for duration estimation
	TickInterval   time.Duration // Clock resolution for position updates
	WarmBytes      int64         // Bytes fetched up front to prime a source
}

const (
	defaultBytesPerSecond = 16000 // 128 kbps
	defaultTickInterval   = 250 * time.Millisecond
	defaultWarmBytes      = 64 << 10
)

// StreamElement is an Element over a remote HTTP audio stream. It does
// not decode audio; it validates and warms the stream, estimates the
// duration from the content length at a nominal bitrate, and advances a
// wall-clock position while "playing". Hosts with a real audio stack
// replace it via the Factory.
type StreamElement struct {
	mu sync.Mutex

	cfg    Config
	source string

	position float64
	duration float64
	volume   float64
	paused   bool
	ready    ReadyState

	// loadGen invalidates in-flight loads; cmdGen invalidates pending
	// play attempts. Both only ever increase.
	loadGen uint64
	cmdGen  uint64

	readyCh chan struct{} // closed when the current source becomes playable
	cmdCh   chan struct{} // closed on every newer command, waking pending plays

	events chan Event
	closed bool

	clockCancel func()
}

// NewStreamElement creates a stream element.
func NewStreamElement(cfg Config) *StreamElement {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BytesPerSecond <= 0 {
		cfg.BytesPerSecond = defaultBytesPerSecond
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.WarmBytes <= 0 {
		cfg.WarmBytes = defaultWarmBytes
	}
	return &StreamElement{
		cfg:     cfg,
		paused:  true,
		volume:  1,
		readyCh: make(chan struct{}),
		cmdCh:   make(chan struct{}),
		events:  make(chan Event, 32),
	}
}

// bumpCmdLocked invalidates pending play attempts and wakes any that
// are still waiting on readiness. Must be called with the lock held.
func (e *StreamElement) bumpCmdLocked() {
	e.cmdGen++
	close(e.cmdCh)
	e.cmdCh = make(chan struct{})
}

// NewStreamFactory returns a Factory producing stream elements sharing
// the given config.
func NewStreamFactory(cfg Config) Factory {
	return func() Element { return NewStreamElement(cfg) }
}

// SetSource points the element at a new stream URL. Any in-flight load
// or pending play attempt is discarded.
func (e *StreamElement) SetSource(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loadGen++
	e.bumpCmdLocked()
	e.stopClockLocked()
	e.source = url
	e.position = 0
	e.duration = 0
	e.paused = true
	e.ready = HaveNothing
	e.readyCh = make(chan struct{})
	e.sendLocked(Event{Type: EventLoadStart})

	gen := e.loadGen
	go e.load(url, gen)
}

// Source returns the current stream URL.
func (e *StreamElement) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// load fetches the head of the stream to validate it and estimate the
// duration. A stale load (superseded source) is discarded on completion.
func (e *StreamElement) load(url string, gen uint64) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		e.failLoad(gen, errors.Wrap(err, "failed to build stream request"))
		return
	}
	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		e.failLoad(gen, errors.Wrap(err, "stream fetch failed"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.failLoad(gen, errors.Newf("stream fetch returned status %d", resp.StatusCode))
		return
	}

	// Warm the connection by reading the first chunk.
	warmed, _ := io.CopyN(io.Discard, resp.Body, e.cfg.WarmBytes)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.loadGen {
		return // superseded by a newer source
	}

	if resp.ContentLength > 0 {
		e.duration = float64(resp.ContentLength) / float64(e.cfg.BytesPerSecond)
		e.sendLocked(Event{Type: EventDurationChange, Duration: e.duration})
	}
	if warmed >= e.cfg.WarmBytes || resp.ContentLength <= warmed {
		e.ready = HaveEnoughData
	} else {
		e.ready = HaveCurrentData
	}
	close(e.readyCh)
	e.sendLocked(Event{Type: EventCanPlay, Position: e.position, Duration: e.duration})
}

func (e *StreamElement) failLoad(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.loadGen {
		return
	}
	zlog.Debug().Msgf("media: load failed: %v", err)
	e.sendLocked(Event{Type: EventError, Err: err})
}

// Play starts playback once the current source is ready. A pause or
// source change issued while waiting aborts the attempt with ErrAborted.
func (e *StreamElement) Play(ctx context.Context) error {
	e.mu.Lock()
	if e.source == "" {
		e.mu.Unlock()
		return ErrNoSource
	}
	if !e.paused {
		e.mu.Unlock()
		return nil
	}
	e.cmdGen++
	cmd := e.cmdGen
	ready := e.readyCh
	superseded := e.cmdCh
	e.mu.Unlock()

	select {
	case <-ready:
	case <-superseded:
		return ErrAborted
	case <-ctx.Done():
		return ErrAborted
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cmd != e.cmdGen || e.closed {
		return ErrAborted
	}
	e.paused = false
	e.startClockLocked()
	e.sendLocked(Event{Type: EventPlaying, Position: e.position, Duration: e.duration})
	return nil
}

// Pause stops the clock, keeping the position.
func (e *StreamElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bumpCmdLocked()
	if e.paused {
		return
	}
	e.paused = true
	e.stopClockLocked()
	e.sendLocked(Event{Type: EventPause, Position: e.position, Duration: e.duration})
}

// Seek jumps the position. The jump completes synchronously; playback
// continues from the new position if running.
func (e *StreamElement) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sendLocked(Event{Type: EventSeeking, Position: e.position, Duration: e.duration})
	if seconds < 0 {
		seconds = 0
	}
	if e.duration > 0 && seconds > e.duration {
		seconds = e.duration
	}
	e.position = seconds
	e.sendLocked(Event{Type: EventSeeked, Position: e.position, Duration: e.duration})
}

// SetVolume stores the volume, clamped to [0, 1]. The simulated clock
// has no audible output; the value is kept for hosts that inspect it.
func (e *StreamElement) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.volume = v
}

// Paused reports whether the clock is stopped.
func (e *StreamElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Position returns the current position in seconds.
func (e *StreamElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Duration returns the estimated duration in seconds, 0 when unknown.
func (e *StreamElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// ReadyState reports how much of the current source is available.
func (e *StreamElement) ReadyState() ReadyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Events returns the element's event stream.
func (e *StreamElement) Events() <-chan Event {
	return e.events
}

// Close stops the element and closes the event stream.
func (e *StreamElement) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.loadGen++
	e.bumpCmdLocked()
	e.stopClockLocked()
	e.closed = true
	close(e.events)
}

// startClockLocked starts the position clock. Must be called with the
// lock held and the clock stopped.
func (e *StreamElement) startClockLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	e.clockCancel = cancel
	gen := e.loadGen

	go func() {
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()
		last := time.Now()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				elapsed := now.Sub(last).Seconds()
				last = now

				e.mu.Lock()
				if gen != e.loadGen || e.paused || e.closed {
					e.mu.Unlock()
					return
				}
				e.position += elapsed
				if e.duration > 0 && e.position >= e.duration {
					e.position = e.duration
					e.paused = true
					e.stopClockLocked()
					e.sendLocked(Event{Type: EventTimeUpdate, Position: e.position, Duration: e.duration})
					e.sendLocked(Event{Type: EventEnded, Position: e.position, Duration: e.duration})
					e.mu.Unlock()
					return
				}
				e.sendLocked(Event{Type: EventTimeUpdate, Position: e.position, Duration: e.duration})
				e.mu.Unlock()
			}
		}
	}()
}

// stopClockLocked cancels the position clock. Must be called with the
// lock held.
func (e *StreamElement) stopClockLocked() {
	if e.clockCancel != nil {
		e.clockCancel()
		e.clockCancel = nil
	}
}

// sendLocked emits an event without blocking. Must be called with the
// lock held.
func (e *StreamElement) sendLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		// Channel full, drop event rather than block the clock
	}
}
