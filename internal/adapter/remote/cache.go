package remote

import (
	"context"
	"sync"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"github.com/couchcryptid/hydro-risk-atlas/internal/observability"
)

// CachedExtractor wraps an Extractor with an in-memory LRU cache keyed by
// (block, query). Re-running the pipeline over an overlapping date range
// skips platform calls for blocks already extracted.
type CachedExtractor struct {
	inner   Extractor
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedExtractor creates a cache decorator around an extractor.
func NewCachedExtractor(inner Extractor, maxEntries int, metrics *observability.Metrics) *CachedExtractor {
	return &CachedExtractor{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedExtractor) Extract(ctx context.Context, blocks []domain.Block, q Query) ([]domain.ClimateObservation, error) {
	fp := q.fingerprint()
	var out []domain.ClimateObservation

	for _, block := range blocks {
		key := block.ID + "|" + fp
		if rows, ok := c.cache.get(key); ok {
			c.metrics.RemoteCache.WithLabelValues("hit").Inc()
			out = append(out, rows...)
			continue
		}
		c.metrics.RemoteCache.WithLabelValues("miss").Inc()

		rows, err := c.inner.Extract(ctx, []domain.Block{block}, q)
		if err != nil {
			return nil, err
		}
		// Only cache non-empty results so blocks with transient platform
		// gaps can be retried.
		if len(rows) > 0 {
			c.cache.put(key, rows)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// lruCache is a simple thread-safe LRU cache for extracted block tables.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.ClimateObservation
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.ClimateObservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.ClimateObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
