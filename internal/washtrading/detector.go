// Package washtrading implements the O(n) sliding-window wash-trading
// detector (spec §4.3).
package washtrading

import (
	"sort"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/shopspring/decimal"
)

var decimalHundred = decimal.NewFromInt(100)

// Detector evaluates alternation, volume, and price-change metrics over a
// sliding window of trades per (account_id, product_id) group.
type Detector struct {
	cfg domain.WashTradingConfig
}

func New(cfg domain.WashTradingConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect filters the batch to TRADE_EXECUTED events, groups by
// (account_id, product_id), and sweeps each group's sorted trades with a
// two-pointer window. Output is ordered by (account_id, product_id,
// end_timestamp) per spec §4.3.
func (d *Detector) Detect(events []domain.TransactionEvent) []domain.SuspiciousSequence {
	trades := filterTrades(events)
	groups := groupByAccountProduct(trades)

	var out []domain.SuspiciousSequence
	for _, key := range sortedGroupKeys(groups) {
		sorted := sortByTimestamp(groups[key])
		out = append(out, detectGroup(key, sorted, d.cfg)...)
	}

	sort.Slice(out, func(i, j int) bool {
		return domain.ByGroupThenEnd(out[i], out[j]) < 0
	})
	return out
}

func filterTrades(events []domain.TransactionEvent) []domain.TransactionEvent {
	var out []domain.TransactionEvent
	for _, e := range events {
		if e.EventType == domain.EventTradeExecuted {
			out = append(out, e)
		}
	}
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

func sortByTimestamp(events []domain.TransactionEvent) []domain.TransactionEvent {
	sorted := make([]domain.TransactionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.CompareForSort(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// detectGroup sweeps one group's sorted trades with a two-pointer window.
func detectGroup(key domain.GroupKey, trades []domain.TransactionEvent, cfg domain.WashTradingConfig) []domain.SuspiciousSequence {
	var out []domain.SuspiciousSequence

	left := 0
	for right := 0; right < len(trades); right++ {
		for trades[right].Timestamp.Sub(trades[left].Timestamp) > cfg.Window {
			left++
		}

		window := trades[left : right+1]
		if !satisfies(window, cfg) {
			continue
		}

		out = append(out, buildFinding(key, window, cfg))
		// A single burst yields at most one finding: advance left past
		// this window so the sweep cannot re-emit overlapping matches.
		left = right + 1
	}

	return out
}

// satisfies evaluates the validation predicate from spec §4.3 over the
// current window.
func satisfies(window []domain.TransactionEvent, cfg domain.WashTradingConfig) bool {
	if len(window) < 2 {
		return false
	}
	buyCount, sellCount := 0, 0
	var totalQty int64
	for _, t := range window {
		if t.Side == domain.SideBuy {
			buyCount++
		} else {
			sellCount++
		}
		totalQty += t.Quantity
	}
	if buyCount < cfg.MinBuyTrades || sellCount < cfg.MinSellTrades {
		return false
	}
	if totalQty < cfg.MinTotalVolume {
		return false
	}
	return alternationPercentage(window) >= cfg.MinAlternationPercent
}

// alternationPercentage is the percentage of adjacent trade pairs in the
// window whose side differs.
func alternationPercentage(window []domain.TransactionEvent) float64 {
	if len(window) < 2 {
		return 0
	}
	switches := 0
	for i := 1; i < len(window); i++ {
		if window[i].Side != window[i-1].Side {
			switches++
		}
	}
	return float64(switches) / float64(len(window)-1) * 100
}

func buildFinding(key domain.GroupKey, window []domain.TransactionEvent, cfg domain.WashTradingConfig) domain.SuspiciousSequence {
	var buyQty, sellQty int64
	minPrice := window[0].Price
	maxPrice := window[0].Price
	for _, t := range window {
		if t.Side == domain.SideBuy {
			buyQty += t.Quantity
		} else {
			sellQty += t.Quantity
		}
		if t.Price.LessThan(minPrice) {
			minPrice = t.Price
		}
		if t.Price.GreaterThan(maxPrice) {
			maxPrice = t.Price
		}
	}

	var priceChangePct *float64
	if !minPrice.IsZero() {
		pct, _ := maxPrice.Sub(minPrice).Div(minPrice).Mul(decimalHundred).Float64()
		if pct >= cfg.PriceChangeMinThreshold {
			priceChangePct = &pct
		}
	}

	return domain.SuspiciousSequence{
		AccountID:      key.AccountID,
		ProductID:      key.ProductID,
		StartTimestamp: window[0].Timestamp,
		EndTimestamp:   window[len(window)-1].Timestamp,
		TotalBuyQty:    buyQty,
		TotalSellQty:   sellQty,
		DetectionType:  domain.DetectionWashTrading,
		Detail: domain.WashTradingDetail{
			AlternationPercentage: alternationPercentage(window),
			PriceChangePercentage: priceChangePct,
		},
	}
}
