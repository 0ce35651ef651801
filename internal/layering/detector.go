// Package layering implements the grouped, time-windowed, three-stage
// layering/spoofing pattern matcher (spec §4.2).
package layering

import (
	"sort"
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
)

// Detector matches the layering pattern: a burst of same-side placements,
// all cancelled within a window, followed by an opposite-side trade.
type Detector struct {
	cfg domain.DetectionConfig
}

func New(cfg domain.DetectionConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect runs the matcher over an unsorted batch of events and returns one
// SuspiciousSequence per matched run, ordered by (account_id, product_id,
// end_timestamp) per spec §4.2's determinism clause. Malformed-but-typed
// input (e.g. an empty batch) yields an empty, non-error result; only a
// detector-internal invariant violation panics, and none should occur on
// any input that passed domain.TransactionEvent.Validate.
func (d *Detector) Detect(events []domain.TransactionEvent) []domain.SuspiciousSequence {
	groups := groupByAccountProduct(events)

	var out []domain.SuspiciousSequence
	for _, key := range sortedGroupKeys(groups) {
		sorted := sortGroup(groups[key])
		out = append(out, detectGroup(key, sorted, d.cfg)...)
	}

	sort.Slice(out, func(i, j int) bool {
		return domain.ByGroupThenEnd(out[i], out[j]) < 0
	})
	return out
}

func groupByAccountProduct(events []domain.TransactionEvent) map[domain.GroupKey][]domain.TransactionEvent {
	groups := make(map[domain.GroupKey][]domain.TransactionEvent)
	for _, e := range events {
		k := domain.GroupKey{AccountID: e.AccountID, ProductID: e.ProductID}
		groups[k] = append(groups[k], e)
	}
	return groups
}

func sortedGroupKeys(groups map[domain.GroupKey][]domain.TransactionEvent) []domain.GroupKey {
	keys := make([]domain.GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].AccountID != keys[j].AccountID {
			return keys[i].AccountID < keys[j].AccountID
		}
		return keys[i].ProductID < keys[j].ProductID
	})
	return keys
}

// sortGroup orders events within a group by timestamp, breaking ties by
// event-type order then insertion index (spec invariant I1).
func sortGroup(events []domain.TransactionEvent) []domain.TransactionEvent {
	sorted := make([]domain.TransactionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.CompareForSort(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// detectGroup runs the three-stage matcher over one already-sorted group.
func detectGroup(key domain.GroupKey, events []domain.TransactionEvent, cfg domain.DetectionConfig) []domain.SuspiciousSequence {
	idx := newGroupIndex(events)
	consumedPlacement := make([]bool, len(events))
	consumedCancel := make([]bool, len(events))

	var findings []domain.SuspiciousSequence

	for i := 0; i < len(events); i++ {
		e := events[i]
		if e.EventType != domain.EventOrderPlaced || consumedPlacement[i] {
			continue
		}

		m := attemptMatch(events, idx, i, cfg, consumedPlacement, consumedCancel)
		if m == nil {
			// Step 2 or 3 failed: advance the anchor by one event.
			continue
		}

		finding := domain.SuspiciousSequence{
			AccountID:      key.AccountID,
			ProductID:      key.ProductID,
			StartTimestamp: events[m.runIndices[0]].Timestamp,
			EndTimestamp:   m.completingTradeTime,
			DetectionType:  domain.DetectionLayering,
			Detail: domain.LayeringDetail{
				Side:               events[i].Side,
				NumCancelledOrders: len(m.runIndices),
				OrderTimestamps:    m.orderTimestamps,
			},
		}
		if events[i].Side == domain.SideBuy {
			finding.TotalBuyQty = m.spoofQty
			finding.TotalSellQty = m.oppositeQty
		} else {
			finding.TotalSellQty = m.spoofQty
			finding.TotalBuyQty = m.oppositeQty
		}
		findings = append(findings, finding)

		for _, pi := range m.runIndices {
			consumedPlacement[pi] = true
		}
		for _, ci := range m.cancelIndices {
			consumedCancel[ci] = true
		}

		// Advance the anchor past the last placement in the matched run
		// (spec's non-overlap / advancement rule); the for-loop's i++ then
		// moves one past that.
		i = m.runIndices[len(m.runIndices)-1]
	}

	return findings
}

// matchResult captures everything needed to emit a finding and to mark
// consumed indices once a match succeeds.
type matchResult struct {
	runIndices          []int // placement indices, sorted ascending by position (== by timestamp)
	cancelIndices       []int
	orderTimestamps     []time.Time
	completingTradeTime time.Time
	spoofQty            int64
	oppositeQty         int64
}

// attemptMatch runs the three stages of spec §4.2 for a single candidate
// anchor. Returns nil if any stage fails.
func attemptMatch(events []domain.TransactionEvent, idx groupIndex, anchor int, cfg domain.DetectionConfig, consumedPlacement, consumedCancel []bool) *matchResult {
	side := events[anchor].Side
	anchorTime := events[anchor].Timestamp

	// Stage 1: accumulate a contiguous run of same-side placements, each
	// within orders_window of the anchor.
	runIndices := accumulateRun(events, idx, anchor, side, anchorTime, cfg.OrdersWindow, consumedPlacement)
	if len(runIndices) < 3 {
		return nil
	}

	// Stage 2: every placement in the run must have a distinct, timing-valid
	// cancellation within cancel_window of the run's last placement — the
	// point at which the whole burst is judged to have been cancelled,
	// not each placement's own timestamp (DESIGN.md "cancel window anchor").
	runEndTime := events[runIndices[len(runIndices)-1]].Timestamp
	candidates := idx.cancellationsInWindow(side, runEndTime, cfg.CancelWindow)

	cancelForPlacement := make(map[int]int, len(runIndices)) // placement idx -> cancellation idx
	usedCancel := make(map[int]bool, len(runIndices))
	for _, pIdx := range runIndices {
		placementTime := events[pIdx].Timestamp
		matched := -1
		for _, cIdx := range candidates {
			if consumedCancel[cIdx] || usedCancel[cIdx] {
				continue
			}
			if hasInterposedExecution(events, idx, side, placementTime, events[cIdx].Timestamp) {
				continue
			}
			matched = cIdx
			break
		}
		if matched == -1 {
			return nil
		}
		cancelForPlacement[pIdx] = matched
		usedCancel[matched] = true
	}

	cancelIndices := make([]int, 0, len(cancelForPlacement))
	lastCancelTime := events[runIndices[0]].Timestamp
	first := true
	for _, pIdx := range runIndices {
		cIdx := cancelForPlacement[pIdx]
		cancelIndices = append(cancelIndices, cIdx)
		ct := events[cIdx].Timestamp
		if first || ct.After(lastCancelTime) {
			lastCancelTime = ct
			first = false
		}
	}

	// Stage 3: an opposite-side trade strictly after the last cancellation,
	// within opposite_trade_window of it. Multiple qualifying trades all
	// contribute their quantity; the latest one's timestamp closes the
	// sequence (documented decision, DESIGN.md "opposite-side window").
	oppositeSide := side.Opposite()
	tradeIndices := idx.tradesInWindow(oppositeSide, lastCancelTime, cfg.OppositeTradeWindow)
	if len(tradeIndices) == 0 {
		return nil
	}

	var oppositeQty int64
	completingTime := events[tradeIndices[0]].Timestamp
	for _, ti := range tradeIndices {
		oppositeQty += events[ti].Quantity
		if events[ti].Timestamp.After(completingTime) {
			completingTime = events[ti].Timestamp
		}
	}

	var spoofQty int64
	orderTimestamps := make([]time.Time, 0, len(runIndices))
	for _, pIdx := range runIndices {
		spoofQty += events[pIdx].Quantity
		orderTimestamps = append(orderTimestamps, events[pIdx].Timestamp)
	}
	sort.Slice(orderTimestamps, func(i, j int) bool { return orderTimestamps[i].Before(orderTimestamps[j]) })

	return &matchResult{
		runIndices:          runIndices,
		cancelIndices:       cancelIndices,
		orderTimestamps:     orderTimestamps,
		completingTradeTime: completingTime,
		spoofQty:            spoofQty,
		oppositeQty:         oppositeQty,
	}
}

// accumulateRun extends the anchor into a contiguous run of same-side,
// unconsumed ORDER_PLACED events within orders_window of the anchor.
func accumulateRun(events []domain.TransactionEvent, idx groupIndex, anchor int, side domain.Side, anchorTime time.Time, window time.Duration, consumedPlacement []bool) []int {
	placements := idx.placements(side)
	deadline := anchorTime.Add(window)

	// Find anchor's position within the side's placement list.
	pos := -1
	for i, p := range placements {
		if p == anchor {
			pos = i
			break
		}
	}
	if pos == -1 {
		return nil
	}

	run := []int{anchor}
	for i := pos + 1; i < len(placements); i++ {
		pIdx := placements[i]
		if consumedPlacement[pIdx] {
			break
		}
		ts := events[pIdx].Timestamp
		if ts.After(deadline) {
			break
		}
		run = append(run, pIdx)
	}
	return run
}

// hasInterposedExecution implements the timing-only disqualification
// heuristic from spec §9 open question (1): a same-side TRADE_EXECUTED
// strictly between a placement and its candidate cancellation means that
// placement was (at least partially) executed before it was cancelled, so
// it cannot have been a pure spoof. DESIGN.md records this as the resolved
// heuristic: "interposed" means strictly inside the open interval
// (placementTime, cancelTime).
func hasInterposedExecution(events []domain.TransactionEvent, idx groupIndex, side domain.Side, placementTime, cancelTime time.Time) bool {
	if !cancelTime.After(placementTime) {
		return false
	}
	window := cancelTime.Sub(placementTime)
	trades := idx.tradesInWindow(side, placementTime, window)
	for _, ti := range trades {
		if events[ti].Timestamp.Before(cancelTime) {
			return true
		}
	}
	return false
}
