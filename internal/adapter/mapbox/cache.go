package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/observability"
)

// gridScale rounds coordinates to four decimals, about 11 m, so incidents
// reported from the same spot share a lookup.
const gridScale = 1e4

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, pos domain.Position) (domain.Place, error) {
	key := gridKey(pos)
	if place, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	place, err := c.inner.ReverseGeocode(ctx, pos)
	if err != nil {
		return place, err
	}
	// Empty results are not cached so a later lookup can still succeed.
	if place.Name != "" || place.FormattedAddress != "" {
		c.cache.put(key, place)
	}
	return place, nil
}

type cell struct {
	lat, lng int64
}

func gridKey(pos domain.Position) cell {
	return cell{
		lat: int64(math.Round(pos.Lat * gridScale)),
		lng: int64(math.Round(pos.Lng * gridScale)),
	}
}

// lruCache is a thread-safe LRU of places keyed by grid cell.
type lruCache struct {
	maxEntries int

	mu      sync.Mutex
	order   *list.List // front is most recently used
	entries map[cell]*list.Element
}

type cacheEntry struct {
	key   cell
	place domain.Place
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		order:      list.New(),
		entries:    make(map[cell]*list.Element),
	}
}

func (c *lruCache) get(key cell) (domain.Place, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Place{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).place, true
}

func (c *lruCache) put(key cell, place domain.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).place = place
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, place: place})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
