package aggregator

import (
	"testing"
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad timestamp: %v", err)
	}
	return ts
}

func layeringWire(t *testing.T, account string, start, end string) transport.SequenceWire {
	side := "BUY"
	n := 3
	return transport.SequenceWire{
		AccountID:          account,
		ProductID:          "AAPL",
		StartTimestamp:     mustTime(t, start),
		EndTimestamp:       mustTime(t, end),
		TotalBuyQty:        0,
		TotalSellQty:       300,
		DetectionType:      string(domain.DetectionLayering),
		Side:               &side,
		NumCancelledOrders: &n,
		OrderTimestamps:    []time.Time{mustTime(t, start)},
	}
}

func TestMergeConcatenatesSuccessAndRecordsExhausted(t *testing.T) {
	req := transport.AggregateRequest{
		RequestID:        "req-1",
		ExpectedServices: []string{"layering", "wash_trading"},
		Results: []transport.AlgorithmResponse{
			{
				ServiceName: "layering",
				Status:      "SUCCESS",
				FinalStatus: true,
				Results:     []transport.SequenceWire{layeringWire(t, "ACC001", "2025-01-15T10:00:00Z", "2025-01-15T10:01:00Z")},
			},
			{
				ServiceName: "wash_trading",
				Status:      "EXHAUSTED",
				FinalStatus: true,
			},
		},
	}

	result := Merge(req, DefaultPolicy())
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Status != transport.AggregateCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result.Findings))
	}
	if len(result.FailedServices) != 1 || result.FailedServices[0] != "wash_trading" {
		t.Fatalf("expected wash_trading recorded as failed, got %v", result.FailedServices)
	}
}

func TestMergeFailsClosedOnMissingService(t *testing.T) {
	req := transport.AggregateRequest{
		RequestID:        "req-2",
		ExpectedServices: []string{"layering", "wash_trading"},
		Results: []transport.AlgorithmResponse{
			{ServiceName: "layering", Status: "SUCCESS", FinalStatus: true},
		},
	}

	result := Merge(req, DefaultPolicy())
	if result.Err == nil {
		t.Fatalf("expected a completeness error for the missing service")
	}
	if result.Status != transport.AggregateValidationFailed {
		t.Fatalf("expected validation_failed status, got %s", result.Status)
	}
}

func TestMergeFailsClosedOnNonFinalService(t *testing.T) {
	req := transport.AggregateRequest{
		RequestID:        "req-3",
		ExpectedServices: []string{"layering"},
		Results: []transport.AlgorithmResponse{
			{ServiceName: "layering", Status: "PENDING", FinalStatus: false},
		},
	}

	result := Merge(req, DefaultPolicy())
	if result.Err == nil {
		t.Fatalf("expected a completeness error for a non-final service")
	}
}

func TestMergeDeduplicatesIdenticalFindings(t *testing.T) {
	w := layeringWire(t, "ACC001", "2025-01-15T10:00:00Z", "2025-01-15T10:01:00Z")
	req := transport.AggregateRequest{
		RequestID:        "req-4",
		ExpectedServices: []string{"layering"},
		Results: []transport.AlgorithmResponse{
			{
				ServiceName: "layering",
				Status:      "SUCCESS",
				FinalStatus: true,
				Results:     []transport.SequenceWire{w, w},
			},
		},
	}

	result := Merge(req, DefaultPolicy())
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected duplicate findings to collapse to 1, got %d", len(result.Findings))
	}
}

func TestMergeAllowPartialResultsIgnoresNonFinal(t *testing.T) {
	req := transport.AggregateRequest{
		RequestID:        "req-5",
		ExpectedServices: []string{"layering", "wash_trading"},
		Results: []transport.AlgorithmResponse{
			{ServiceName: "layering", Status: "SUCCESS", FinalStatus: true},
			{ServiceName: "wash_trading", Status: "PENDING", FinalStatus: false},
		},
	}

	result := Merge(req, Policy{ValidationStrict: false, AllowPartialResults: true})
	if result.Err != nil {
		t.Fatalf("unexpected error with ALLOW_PARTIAL_RESULTS: %v", result.Err)
	}
}
