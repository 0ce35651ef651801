package layering

import (
	"sort"
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
)

// linearScanThreshold is the group-size cutoff spec §4.2 nominates between
// the cache-friendly linear scan and the indexed binary-search strategy.
const linearScanThreshold = 100

// groupIndex resolves the three window queries the matcher needs —
// placements of a side, cancellations of a side within a window, trades of
// a side within a window — against one (account_id, product_id) group's
// pre-sorted events.
type groupIndex interface {
	placements(side domain.Side) []int
	cancellationsInWindow(side domain.Side, after time.Time, window time.Duration) []int
	tradesInWindow(side domain.Side, after time.Time, window time.Duration) []int
}

// newGroupIndex picks the linear or indexed strategy by group size, per
// spec §4.2's "nominally 100 events" cutoff.
func newGroupIndex(events []domain.TransactionEvent) groupIndex {
	if len(events) <= linearScanThreshold {
		return &linearIndex{events: events}
	}
	return newSortedIndex(events)
}

// linearIndex scans the whole group for every query. Simpler and, for
// small groups, more cache-friendly than chasing pointers through a
// secondary index.
type linearIndex struct {
	events []domain.TransactionEvent
}

func (l *linearIndex) placements(side domain.Side) []int {
	var out []int
	for i, e := range l.events {
		if e.EventType == domain.EventOrderPlaced && e.Side == side {
			out = append(out, i)
		}
	}
	return out
}

func (l *linearIndex) cancellationsInWindow(side domain.Side, after time.Time, window time.Duration) []int {
	var out []int
	deadline := after.Add(window)
	for i, e := range l.events {
		if e.EventType != domain.EventOrderCancelled || e.Side != side {
			continue
		}
		if e.Timestamp.After(after) && !e.Timestamp.After(deadline) {
			out = append(out, i)
		}
	}
	return out
}

func (l *linearIndex) tradesInWindow(side domain.Side, after time.Time, window time.Duration) []int {
	var out []int
	deadline := after.Add(window)
	for i, e := range l.events {
		if e.EventType != domain.EventTradeExecuted || e.Side != side {
			continue
		}
		if e.Timestamp.After(after) && !e.Timestamp.After(deadline) {
			out = append(out, i)
		}
	}
	return out
}

// sortedIndex builds one sorted-by-timestamp index per (event_type, side)
// and answers window queries with a binary search for the lower and upper
// bound, giving O(log n) per query instead of O(n).
type sortedIndex struct {
	events []domain.TransactionEvent
	byKey  map[indexKey][]int // indices into events, already sorted by timestamp
}

type indexKey struct {
	eventType domain.EventType
	side      domain.Side
}

func newSortedIndex(events []domain.TransactionEvent) *sortedIndex {
	idx := &sortedIndex{events: events, byKey: make(map[indexKey][]int)}
	for i, e := range events {
		k := indexKey{eventType: e.EventType, side: e.Side}
		idx.byKey[k] = append(idx.byKey[k], i)
	}
	return idx
}

func (s *sortedIndex) placements(side domain.Side) []int {
	return s.byKey[indexKey{eventType: domain.EventOrderPlaced, side: side}]
}

func (s *sortedIndex) cancellationsInWindow(side domain.Side, after time.Time, window time.Duration) []int {
	return s.windowQuery(indexKey{eventType: domain.EventOrderCancelled, side: side}, after, window)
}

func (s *sortedIndex) tradesInWindow(side domain.Side, after time.Time, window time.Duration) []int {
	return s.windowQuery(indexKey{eventType: domain.EventTradeExecuted, side: side}, after, window)
}

// windowQuery returns indices whose timestamp falls in (after, after+window],
// located via binary search over the per-key sorted index.
func (s *sortedIndex) windowQuery(key indexKey, after time.Time, window time.Duration) []int {
	list := s.byKey[key]
	if len(list) == 0 {
		return nil
	}
	deadline := after.Add(window)

	lo := sort.Search(len(list), func(i int) bool {
		return s.events[list[i]].Timestamp.After(after)
	})
	hi := sort.Search(len(list), func(i int) bool {
		return s.events[list[i]].Timestamp.After(deadline)
	})
	if lo >= hi {
		return nil
	}
	out := make([]int, hi-lo)
	copy(out, list[lo:hi])
	return out
}
