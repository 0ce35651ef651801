// Package transport defines the JSON wire contract shared by the worker,
// coordinator, and aggregator (spec §6), plus the sanitised error mapping
// every fatal path must go through (spec §7).
package transport

import (
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
)

// EventWire is the wire representation of domain.TransactionEvent.
type EventWire struct {
	Timestamp time.Time `json:"timestamp"`
	AccountID string    `json:"account_id"`
	ProductID string    `json:"product_id"`
	Side      string    `json:"side"`
	Price     string    `json:"price"`
	Quantity  int64     `json:"quantity"`
	EventType string    `json:"event_type"`
}

// DetectRequest is the request body for the worker's `detect` operation.
type DetectRequest struct {
	RequestID        string      `json:"request_id"`
	EventFingerprint string      `json:"event_fingerprint"`
	Events           []EventWire `json:"events"`
}

// Status is the tri-state outcome a worker response carries.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// DetectResponse is the worker's response to `detect`.
type DetectResponse struct {
	RequestID   string         `json:"request_id"`
	ServiceName string         `json:"service_name"`
	Status      Status         `json:"status"`
	Results     []SequenceWire `json:"results,omitempty"`
	Error       *string        `json:"error,omitempty"`
}

// SequenceWire is the wire representation of domain.SuspiciousSequence,
// flattened to the union-of-fields shape spec §6 describes for the wire
// form (the tagged variant lives only in the in-memory domain type).
type SequenceWire struct {
	AccountID      string     `json:"account_id"`
	ProductID      string     `json:"product_id"`
	StartTimestamp time.Time  `json:"start_timestamp"`
	EndTimestamp   time.Time  `json:"end_timestamp"`
	TotalBuyQty    int64      `json:"total_buy_qty"`
	TotalSellQty   int64      `json:"total_sell_qty"`
	DetectionType  string     `json:"detection_type"`

	// LAYERING-only fields.
	Side               *string     `json:"side,omitempty"`
	NumCancelledOrders *int        `json:"num_cancelled_orders,omitempty"`
	OrderTimestamps    []time.Time `json:"order_timestamps,omitempty"`

	// WASH_TRADING-only fields.
	AlternationPercentage *float64 `json:"alternation_percentage,omitempty"`
	PriceChangePercentage *float64 `json:"price_change_percentage,omitempty"`
}

// AggregateRequest is the request body for the aggregator's `aggregate`
// operation.
type AggregateRequest struct {
	RequestID        string              `json:"request_id"`
	ExpectedServices []string            `json:"expected_services"`
	Results          []AlgorithmResponse `json:"results"`
}

// AlgorithmResponse mirrors the coordinator's per-worker status record
// (spec §3 "Service status record") over the wire.
type AlgorithmResponse struct {
	ServiceName string         `json:"service_name"`
	Status      string         `json:"status"` // PENDING | SUCCESS | EXHAUSTED
	FinalStatus bool           `json:"final_status"`
	Results     []SequenceWire `json:"results,omitempty"`
	Error       *string        `json:"error,omitempty"`
}

// AggregateStatus is the terminal status of an aggregate call.
type AggregateStatus string

const (
	AggregateCompleted        AggregateStatus = "completed"
	AggregateValidationFailed AggregateStatus = "validation_failed"
)

// AggregateResponse is the aggregator's response.
type AggregateResponse struct {
	Status         AggregateStatus `json:"status"`
	MergedCount    int             `json:"merged_count"`
	FailedServices []string        `json:"failed_services"`
	Error          *string         `json:"error,omitempty"`
}

// ToWireEvent converts a domain event to its wire form.
func ToWireEvent(e domain.TransactionEvent) EventWire {
	return EventWire{
		Timestamp: e.Timestamp,
		AccountID: e.AccountID,
		ProductID: e.ProductID,
		Side:      string(e.Side),
		Price:     e.Price.String(),
		Quantity:  e.Quantity,
		EventType: string(e.EventType),
	}
}

// FromWireEvent converts a wire event back to the domain type, validating
// it in the process — this is the boundary where a malformed row (spec §7
// error kind 1) is caught.
func FromWireEvent(w EventWire, insertionIndex int) (domain.TransactionEvent, error) {
	price, err := parseDecimal(w.Price)
	if err != nil {
		return domain.TransactionEvent{}, domain.ErrInvalidEvent{Field: "price", Reason: err.Error()}
	}
	return domain.NewTransactionEvent(w.Timestamp, w.AccountID, w.ProductID, domain.Side(w.Side), price, w.Quantity, domain.EventType(w.EventType), insertionIndex)
}

// ToWireSequence flattens a domain.SuspiciousSequence to its wire form.
func ToWireSequence(s domain.SuspiciousSequence) SequenceWire {
	w := SequenceWire{
		AccountID:      s.AccountID,
		ProductID:      s.ProductID,
		StartTimestamp: s.StartTimestamp,
		EndTimestamp:   s.EndTimestamp,
		TotalBuyQty:    s.TotalBuyQty,
		TotalSellQty:   s.TotalSellQty,
		DetectionType:  string(s.DetectionType),
	}
	switch d := s.Detail.(type) {
	case domain.LayeringDetail:
		side := string(d.Side)
		n := d.NumCancelledOrders
		w.Side = &side
		w.NumCancelledOrders = &n
		w.OrderTimestamps = d.OrderTimestamps
	case domain.WashTradingDetail:
		alt := d.AlternationPercentage
		w.AlternationPercentage = &alt
		w.PriceChangePercentage = d.PriceChangePercentage
	}
	return w
}

// FromWireSequence reconstructs the tagged domain type from its wire form.
func FromWireSequence(w SequenceWire) (domain.SuspiciousSequence, error) {
	s := domain.SuspiciousSequence{
		AccountID:      w.AccountID,
		ProductID:      w.ProductID,
		StartTimestamp: w.StartTimestamp,
		EndTimestamp:   w.EndTimestamp,
		TotalBuyQty:    w.TotalBuyQty,
		TotalSellQty:   w.TotalSellQty,
		DetectionType:  domain.DetectionType(w.DetectionType),
	}
	switch s.DetectionType {
	case domain.DetectionLayering:
		if w.Side == nil || w.NumCancelledOrders == nil {
			return domain.SuspiciousSequence{}, domain.ErrInvalidFinding{Reason: "layering wire row missing side/num_cancelled_orders"}
		}
		s.Detail = domain.LayeringDetail{
			Side:               domain.Side(*w.Side),
			NumCancelledOrders: *w.NumCancelledOrders,
			OrderTimestamps:    w.OrderTimestamps,
		}
	case domain.DetectionWashTrading:
		if w.AlternationPercentage == nil {
			return domain.SuspiciousSequence{}, domain.ErrInvalidFinding{Reason: "wash-trading wire row missing alternation_percentage"}
		}
		s.Detail = domain.WashTradingDetail{
			AlternationPercentage: *w.AlternationPercentage,
			PriceChangePercentage: w.PriceChangePercentage,
		}
	default:
		return domain.SuspiciousSequence{}, domain.ErrInvalidFinding{Reason: "unknown detection_type on wire"}
	}
	return s, s.Validate()
}
