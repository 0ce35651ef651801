package worker

import (
	"container/list"
	"sync"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
)

// cacheKey is the idempotency key: (request_id, event_fingerprint).
// Spec §4.4 keys on this pair explicitly rather than the fingerprint
// alone, so a retried call with the same request_id/fingerprint pair hits
// the cache, but two unrelated requests that happen to submit the same
// event set do not collide.
type cacheKey struct {
	requestID   string
	fingerprint string
}

type cacheEntry struct {
	key     cacheKey
	results []domain.SuspiciousSequence
}

// idempotencyCache is a bounded LRU keyed on (request_id, fingerprint).
// No suitable bounded-LRU library appears anywhere in the retrieval pack
// (DESIGN.md records this), so this is a small purpose-built primitive
// over container/list, exactly the style spec §9 recommends ("prefer a
// purpose-built bounded LRU primitive"). Safe for concurrent use: spec §5
// requires the cache be shared across concurrently in-flight `detect`
// calls.
type idempotencyCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[cacheKey]*list.Element
}

func newIdempotencyCache(capacity int) *idempotencyCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &idempotencyCache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[cacheKey]*list.Element),
	}
}

// get returns the cached results and true on a hit, promoting the entry
// to most-recently-used.
func (c *idempotencyCache) get(k cacheKey) ([]domain.SuspiciousSequence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[k]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).results, true
}

// put inserts or refreshes an entry, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *idempotencyCache) put(k cacheKey, results []domain.SuspiciousSequence) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[k]; ok {
		el.Value.(*cacheEntry).results = results
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: k, results: results})
	c.index[k] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.index, oldest.Value.(*cacheEntry).key)
	}
}

// len reports the current entry count; used by tests and the health
// endpoint's diagnostics.
func (c *idempotencyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
