package worker

import "testing"

func TestIdempotencyCacheHitAndMiss(t *testing.T) {
	c := newIdempotencyCache(2)
	k1 := cacheKey{requestID: "r1", fingerprint: "f1"}

	if _, ok := c.get(k1); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.put(k1, nil)
	if _, ok := c.get(k1); !ok {
		t.Fatalf("expected hit after put")
	}
}

func TestIdempotencyCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newIdempotencyCache(2)
	k1 := cacheKey{requestID: "r1", fingerprint: "f1"}
	k2 := cacheKey{requestID: "r2", fingerprint: "f2"}
	k3 := cacheKey{requestID: "r3", fingerprint: "f3"}

	c.put(k1, nil)
	c.put(k2, nil)
	// touch k1 so k2 becomes the least-recently-used entry.
	c.get(k1)
	c.put(k3, nil)

	if _, ok := c.get(k2); ok {
		t.Fatalf("expected k2 to have been evicted")
	}
	if _, ok := c.get(k1); !ok {
		t.Fatalf("expected k1 to still be cached")
	}
	if _, ok := c.get(k3); !ok {
		t.Fatalf("expected k3 to be cached")
	}
	if got := c.len(); got != 2 {
		t.Fatalf("expected capacity-bounded length of 2, got %d", got)
	}
}

func TestIdempotencyCacheDifferentRequestsDoNotCollide(t *testing.T) {
	c := newIdempotencyCache(10)
	k1 := cacheKey{requestID: "r1", fingerprint: "same"}
	k2 := cacheKey{requestID: "r2", fingerprint: "same"}

	c.put(k1, nil)
	if _, ok := c.get(k2); ok {
		t.Fatalf("expected distinct request ids with the same fingerprint not to collide")
	}
}
