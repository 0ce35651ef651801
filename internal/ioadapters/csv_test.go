package ioadapters

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/shopspring/decimal"
)

func TestCSVEventReaderSkipsMalformedRows(t *testing.T) {
	input := "timestamp,account_id,product_id,side,price,quantity,event_type\n" +
		"2025-01-15T10:00:00Z,ACC001,AAPL,BUY,150.00,100,ORDER_PLACED\n" +
		"not-a-timestamp,ACC001,AAPL,BUY,150.00,100,ORDER_PLACED\n" +
		"2025-01-15T10:01:00Z,ACC001,AAPL,SELL,150.50,100,TRADE_EXECUTED\n"

	reader := NewCSVEventReader(strings.NewReader(input))
	events, err := reader.ReadEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 valid events after skipping the malformed row, got %d", len(events))
	}
}

func TestCSVResultWriterSanitisesFormulaCells(t *testing.T) {
	price, _ := decimal.NewFromString("1")
	ts, _ := time.Parse(time.RFC3339, "2025-01-15T10:00:00Z")
	evt, err := domain.NewTransactionEvent(ts, "=cmd|'/c calc'!A1", "AAPL", domain.SideBuy, price, 100, domain.EventOrderPlaced, 0)
	if err != nil {
		t.Fatal(err)
	}

	finding := domain.SuspiciousSequence{
		AccountID:      evt.AccountID,
		ProductID:      evt.ProductID,
		StartTimestamp: ts,
		EndTimestamp:   ts.Add(time.Minute),
		TotalBuyQty:    300,
		TotalSellQty:   0,
		DetectionType:  domain.DetectionLayering,
		Detail: domain.LayeringDetail{
			Side:               domain.SideBuy,
			NumCancelledOrders: 3,
			OrderTimestamps:    []time.Time{ts},
		},
	}

	var buf bytes.Buffer
	writer := NewCSVResultWriter(CSVResultWriterConfig{SummaryWriter: &buf})
	if err := writer.WriteSummary([]domain.SuspiciousSequence{finding}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "'=cmd") {
		t.Fatalf("expected the formula-like account_id to be sanitised with a leading apostrophe, got:\n%s", buf.String())
	}
}

func TestCSVResultWriterPseudonymizesDetectionLogOnly(t *testing.T) {
	ts, _ := time.Parse(time.RFC3339, "2025-01-15T10:00:00Z")
	finding := domain.SuspiciousSequence{
		AccountID:      "ACC001",
		ProductID:      "AAPL",
		StartTimestamp: ts,
		EndTimestamp:   ts.Add(time.Minute),
		TotalBuyQty:    300,
		DetectionType:  domain.DetectionLayering,
		Detail: domain.LayeringDetail{
			Side:               domain.SideBuy,
			NumCancelledOrders: 3,
			OrderTimestamps:    []time.Time{ts},
		},
	}

	var summary, log bytes.Buffer
	writer := NewCSVResultWriter(CSVResultWriterConfig{
		SummaryWriter: &summary,
		LogWriter:     &log,
		Pseudonymize:  true,
		Salt:          "pepper",
	})
	if err := writer.WriteSummary([]domain.SuspiciousSequence{finding}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := writer.WriteDetectionLog([]domain.SuspiciousSequence{finding}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(summary.String(), "ACC001") == false {
		t.Fatalf("expected the summary table to keep the raw account_id")
	}
	if strings.Contains(log.String(), "ACC001") {
		t.Fatalf("expected the detection log to pseudonymise account_id, got:\n%s", log.String())
	}
}
