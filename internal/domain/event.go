// Package domain holds the immutable event and finding records shared by
// every component of the surveillance pipeline: detectors, worker,
// coordinator, and aggregator all speak this vocabulary.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the BUY/SELL side of an order or trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side. BUY and SELL are the only two sides,
// so this never panics on a validly constructed Side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// EventType distinguishes an order placement, cancellation, or execution.
type EventType string

const (
	EventOrderPlaced    EventType = "ORDER_PLACED"
	EventOrderCancelled EventType = "ORDER_CANCELLED"
	EventTradeExecuted  EventType = "TRADE_EXECUTED"
)

func (e EventType) Valid() bool {
	switch e {
	case EventOrderPlaced, EventOrderCancelled, EventTradeExecuted:
		return true
	}
	return false
}

// typeOrder gives the stable secondary sort key spec §4.2 requires when
// two events in the same group share a timestamp: PLACED < CANCELLED < EXECUTED.
func (e EventType) typeOrder() int {
	switch e {
	case EventOrderPlaced:
		return 0
	case EventOrderCancelled:
		return 1
	case EventTradeExecuted:
		return 2
	}
	return 3
}

// TransactionEvent is an immutable value object. Two events with identical
// fields are indistinguishable by design — callers must not rely on
// pointer identity.
type TransactionEvent struct {
	Timestamp time.Time
	AccountID string
	ProductID string
	Side      Side
	Price     decimal.Decimal
	Quantity  int64
	EventType EventType

	// insertionIndex breaks ties deterministically when two events in the
	// same group share both timestamp and EventType ordering. It is set by
	// the reader at parse time and is never part of the wire contract.
	insertionIndex int
}

// NewTransactionEvent validates and constructs an event. It is the only
// place callers should build a TransactionEvent from parsed fields.
func NewTransactionEvent(ts time.Time, accountID, productID string, side Side, price decimal.Decimal, qty int64, eventType EventType, insertionIndex int) (TransactionEvent, error) {
	ev := TransactionEvent{
		Timestamp:      ts,
		AccountID:      accountID,
		ProductID:      productID,
		Side:           side,
		Price:          price,
		Quantity:       qty,
		EventType:      eventType,
		insertionIndex: insertionIndex,
	}
	return ev, ev.Validate()
}

// Validate enforces the positivity and enum invariants from spec §3/§4.1.
func (e TransactionEvent) Validate() error {
	if e.AccountID == "" {
		return ErrInvalidEvent{Field: "account_id", Reason: "empty"}
	}
	if e.ProductID == "" {
		return ErrInvalidEvent{Field: "product_id", Reason: "empty"}
	}
	if !e.Side.Valid() {
		return ErrInvalidEvent{Field: "side", Reason: "must be BUY or SELL"}
	}
	if !e.EventType.Valid() {
		return ErrInvalidEvent{Field: "event_type", Reason: "unrecognised"}
	}
	if e.Price.Sign() <= 0 {
		return ErrInvalidEvent{Field: "price", Reason: "must be strictly positive"}
	}
	if e.Quantity <= 0 {
		return ErrInvalidEvent{Field: "quantity", Reason: "must be strictly positive"}
	}
	return nil
}

// InsertionIndex exposes the tie-break key used for deterministic ordering.
func (e TransactionEvent) InsertionIndex() int { return e.insertionIndex }

// ErrInvalidEvent is returned by the reader when a row fails field
// validation; the reader logs and skips the row, the pipeline continues
// (spec §7, error kind 1).
type ErrInvalidEvent struct {
	Field  string
	Reason string
}

func (e ErrInvalidEvent) Error() string {
	return "invalid event field " + e.Field + ": " + e.Reason
}

// GroupKey identifies the (account_id, product_id) partition events are
// grouped into before detection (spec invariant I1).
type GroupKey struct {
	AccountID string
	ProductID string
}

// CompareForSort implements the ordering used within a group: timestamp
// first, then EventType (PLACED < CANCELLED < EXECUTED), then insertion
// index — making detector output reproducible for identical input.
func CompareForSort(a, b TransactionEvent) int {
	if a.Timestamp.Before(b.Timestamp) {
		return -1
	}
	if a.Timestamp.After(b.Timestamp) {
		return 1
	}
	if ao, bo := a.EventType.typeOrder(), b.EventType.typeOrder(); ao != bo {
		return ao - bo
	}
	return a.insertionIndex - b.insertionIndex
}
