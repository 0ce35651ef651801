package domain

import "time"

// DetectionType tags which detector produced a SuspiciousSequence.
type DetectionType string

const (
	DetectionLayering    DetectionType = "LAYERING"
	DetectionWashTrading DetectionType = "WASH_TRADING"
)

// SuspiciousSequence is the polymorphic finding record described in spec
// §3. Rather than one struct with fields that are meaningless on the
// "wrong" variant, the common fields live on SuspiciousSequence and the
// per-algorithm fields live behind the Detail interface — the
// re-architecture cue in spec §9 ("a tagged variant is the natural
// representation in a typed target").
type SuspiciousSequence struct {
	AccountID      string
	ProductID      string
	StartTimestamp time.Time
	EndTimestamp   time.Time
	TotalBuyQty    int64
	TotalSellQty   int64
	DetectionType  DetectionType
	Detail         Detail
}

// Detail is satisfied by LayeringDetail and WashTradingDetail. It carries
// no behaviour beyond tagging — callers switch on SuspiciousSequence.DetectionType
// and type-assert the Detail they expect.
type Detail interface {
	detail()
}

// LayeringDetail holds the fields present only when DetectionType == LAYERING.
type LayeringDetail struct {
	Side               Side
	NumCancelledOrders int
	OrderTimestamps    []time.Time // sorted ascending
}

func (LayeringDetail) detail() {}

// WashTradingDetail holds the fields present only when
// DetectionType == WASH_TRADING. PriceChangePercentage is a pointer
// because spec §3 marks it "present only when ≥ 1".
type WashTradingDetail struct {
	AlternationPercentage float64
	PriceChangePercentage *float64
}

func (WashTradingDetail) detail() {}

// Validate enforces invariant I2 (start <= end) and the variant-specific
// shape rules from spec §3.
func (s SuspiciousSequence) Validate() error {
	if s.EndTimestamp.Before(s.StartTimestamp) {
		return ErrInvalidFinding{Reason: "end_timestamp before start_timestamp"}
	}
	switch s.DetectionType {
	case DetectionLayering:
		d, ok := s.Detail.(LayeringDetail)
		if !ok {
			return ErrInvalidFinding{Reason: "layering finding missing LayeringDetail"}
		}
		if d.NumCancelledOrders < 3 {
			return ErrInvalidFinding{Reason: "layering finding requires >= 3 cancelled orders"}
		}
	case DetectionWashTrading:
		d, ok := s.Detail.(WashTradingDetail)
		if !ok {
			return ErrInvalidFinding{Reason: "wash-trading finding missing WashTradingDetail"}
		}
		if d.AlternationPercentage < 60 {
			return ErrInvalidFinding{Reason: "wash-trading finding requires alternation >= 60"}
		}
		if s.TotalBuyQty+s.TotalSellQty < 10000 {
			return ErrInvalidFinding{Reason: "wash-trading finding requires total volume >= 10000"}
		}
	default:
		return ErrInvalidFinding{Reason: "unknown detection_type"}
	}
	return nil
}

// DedupKey is the identity spec §4.6 dedups on: identical
// (account_id, product_id, start_timestamp, end_timestamp, detection_type)
// are the same finding even if two workers somehow both reported it.
type DedupKey struct {
	AccountID      string
	ProductID      string
	StartTimestamp time.Time
	EndTimestamp   time.Time
	DetectionType  DetectionType
}

func (s SuspiciousSequence) DedupKey() DedupKey {
	return DedupKey{
		AccountID:      s.AccountID,
		ProductID:      s.ProductID,
		StartTimestamp: s.StartTimestamp,
		EndTimestamp:   s.EndTimestamp,
		DetectionType:  s.DetectionType,
	}
}

// ErrInvalidFinding signals a finding that violates spec §3's shape
// invariants — always a programmer error inside a detector, never
// something the pipeline should silently tolerate.
type ErrInvalidFinding struct {
	Reason string
}

func (e ErrInvalidFinding) Error() string {
	return "invalid suspicious sequence: " + e.Reason
}

// ByGroupThenEnd orders findings by (account_id, product_id, end_timestamp,
// detection_type) — the deterministic merge order spec §4.2/§4.3/§5 requires.
func ByGroupThenEnd(a, b SuspiciousSequence) int {
	if a.AccountID != b.AccountID {
		if a.AccountID < b.AccountID {
			return -1
		}
		return 1
	}
	if a.ProductID != b.ProductID {
		if a.ProductID < b.ProductID {
			return -1
		}
		return 1
	}
	if !a.EndTimestamp.Equal(b.EndTimestamp) {
		if a.EndTimestamp.Before(b.EndTimestamp) {
			return -1
		}
		return 1
	}
	if a.DetectionType != b.DetectionType {
		if a.DetectionType < b.DetectionType {
			return -1
		}
		return 1
	}
	return 0
}
