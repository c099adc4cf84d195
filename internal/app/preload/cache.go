// Package preload keeps one track warm ahead of playback. The cache
// holds a single primed media element keyed by global track index and
// hands it over when the predicted track is actually selected.
package preload

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/yskmt/nagara/internal/app/player/media"
)

// DefaultThreshold is the playback progress fraction at which the next
// track starts warming.
const DefaultThreshold = 0.5

// readinessFloor is the minimum ready state for a warm handover; a
// partially buffered element still beats a cold load.
const readinessFloor = media.HaveCurrentData

// Cache is the capacity-1 predictive cache.
type Cache struct {
	mu       sync.Mutex
	factory  media.Factory
	entries  *lru.Cache[int, media.Element]
	handover bool // suppresses Close during a warm handover

	threshold float64
}

// New creates a cache that primes elements from the given factory.
func New(factory media.Factory, threshold float64) *Cache {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	c := &Cache{factory: factory, threshold: threshold}
	entries, err := lru.NewWithEvict(1, func(index int, el media.Element) {
		if !c.handover {
			el.Close()
		}
	})
	if err != nil {
		// Size 1 is a constant; NewWithEvict only fails on size <= 0.
		panic(err)
	}
	c.entries = entries
	return c
}

// ShouldPreload reports whether playback progress has crossed the warm
// threshold and the given index is not already primed.
func (c *Cache) ShouldPreload(progress float64, index int) bool {
	if progress < c.threshold {
		return false
	}
	return !c.Holds(index)
}

// Prime starts warming the track at the given global index. Replacing a
// different prediction closes the previously primed element. Priming is
// asynchronous and never disturbs current playback.
func (c *Cache) Prime(index int, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries.Peek(index); ok {
		return
	}
	el := c.factory()
	el.SetSource(url)
	c.entries.Add(index, el)
	zlog.Debug().Msgf("preload: warming track index=%d", index)
}

// Holds reports whether the cache has a primed element for the index.
func (c *Cache) Holds(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries.Peek(index)
	return ok
}

// Consume hands over the primed element for the index when it is ready
// enough to play. On a miss, or when the element has not buffered past
// the readiness floor, the cache is cleared and the caller falls back to
// a cold load. The cache is empty after every call.
func (c *Cache) Consume(index int) (media.Element, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries.Peek(index)
	if ok && el.ReadyState() >= readinessFloor {
		c.handover = true
		c.entries.Remove(index)
		c.handover = false
		return el, true
	}
	c.entries.Purge()
	return nil, false
}

// Invalidate drops any primed element. Called on track change, manual
// seek, and mode change: each can change what "next" means.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}
