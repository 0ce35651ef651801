// Package ioadapters provides concrete CSV implementations of the
// external event-reader and result-writer interfaces. Reading/writing
// itself sits outside the detection pipeline's scope, but something
// concrete is needed to exercise the EventReader/ResultWriter contracts
// described in spec §6.
package ioadapters

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/rawblock/trade-surveillance-engine/internal/pseudonymize"
)

// EventReader produces the transaction events for one request.
type EventReader interface {
	ReadEvents() ([]domain.TransactionEvent, error)
}

// ResultWriter persists the two output artefacts for one request.
type ResultWriter interface {
	WriteSummary(findings []domain.SuspiciousSequence) error
	WriteDetectionLog(findings []domain.SuspiciousSequence) error
}

var csvHeader = []string{"timestamp", "account_id", "product_id", "side", "price", "quantity", "event_type"}

// CSVEventReader reads the 7-column event schema from an io.Reader,
// skipping (and logging) malformed rows rather than failing the whole
// read — spec §7 error kind 1.
type CSVEventReader struct {
	r io.Reader
}

func NewCSVEventReader(r io.Reader) *CSVEventReader {
	return &CSVEventReader{r: r}
}

func (e *CSVEventReader) ReadEvents() ([]domain.TransactionEvent, error) {
	reader := csv.NewReader(e.r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) < len(csvHeader) {
		return nil, fmt.Errorf("expected at least %d columns, got %d", len(csvHeader), len(header))
	}

	var events []domain.TransactionEvent
	skipped := 0
	index := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		event, err := parseRow(row, index)
		if err != nil {
			skipped++
			log.Printf("ioadapters: skipping malformed row %d: %v", index, err)
			continue
		}
		events = append(events, event)
		index++
	}
	if skipped > 0 {
		log.Printf("ioadapters: skipped %d malformed rows", skipped)
	}
	return events, nil
}

func parseRow(row []string, insertionIndex int) (domain.TransactionEvent, error) {
	if len(row) < 7 {
		return domain.TransactionEvent{}, fmt.Errorf("expected 7 fields, got %d", len(row))
	}
	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return domain.TransactionEvent{}, fmt.Errorf("bad timestamp %q: %w", row[0], err)
	}
	price, err := decimal.NewFromString(row[4])
	if err != nil {
		return domain.TransactionEvent{}, fmt.Errorf("bad price %q: %w", row[4], err)
	}
	qty, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		return domain.TransactionEvent{}, fmt.Errorf("bad quantity %q: %w", row[5], err)
	}
	return domain.NewTransactionEvent(ts, row[1], row[2], domain.Side(row[3]), price, qty, domain.EventType(row[6]), insertionIndex)
}

// CSVResultWriter writes the summary table and detection log described
// in spec §6.
type CSVResultWriter struct {
	summaryWriter io.Writer
	logWriter     io.Writer
	pseudonymize  bool
	salt          string
}

type CSVResultWriterConfig struct {
	SummaryWriter io.Writer
	LogWriter     io.Writer
	Pseudonymize  bool
	Salt          string
}

func NewCSVResultWriter(cfg CSVResultWriterConfig) *CSVResultWriter {
	return &CSVResultWriter{
		summaryWriter: cfg.SummaryWriter,
		logWriter:     cfg.LogWriter,
		pseudonymize:  cfg.Pseudonymize,
		salt:          cfg.Salt,
	}
}

func (w *CSVResultWriter) WriteSummary(findings []domain.SuspiciousSequence) error {
	writer := csv.NewWriter(w.summaryWriter)
	header := []string{
		"account_id", "product_id", "total_buy_qty", "total_sell_qty",
		"num_cancelled_orders", "detected_timestamp", "detection_type",
		"alternation_percentage", "price_change_percentage",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}

	for _, f := range findings {
		// Pseudonymisation applies to the detection log only (spec §6); the
		// summary table always carries the raw account_id.
		row := []string{
			sanitizeCell(f.AccountID),
			sanitizeCell(f.ProductID),
			strconv.FormatInt(f.TotalBuyQty, 10),
			strconv.FormatInt(f.TotalSellQty, 10),
			"0",
			f.EndTimestamp.UTC().Format(time.RFC3339Nano),
			string(f.DetectionType),
			"",
			"",
		}
		switch d := f.Detail.(type) {
		case domain.LayeringDetail:
			row[4] = strconv.Itoa(d.NumCancelledOrders)
		case domain.WashTradingDetail:
			row[7] = strconv.FormatFloat(d.AlternationPercentage, 'f', -1, 64)
			if d.PriceChangePercentage != nil {
				row[8] = strconv.FormatFloat(*d.PriceChangePercentage, 'f', -1, 64)
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *CSVResultWriter) WriteDetectionLog(findings []domain.SuspiciousSequence) error {
	writer := csv.NewWriter(w.logWriter)
	if err := writer.Write([]string{"account_id", "product_id", "order_timestamps", "duration_seconds"}); err != nil {
		return fmt.Errorf("writing detection log header: %w", err)
	}

	for _, f := range findings {
		accountID, err := w.accountCell(f.AccountID)
		if err != nil {
			return err
		}

		orderTimestamps := ""
		if d, ok := f.Detail.(domain.LayeringDetail); ok {
			parts := make([]string, 0, len(d.OrderTimestamps))
			for _, ts := range d.OrderTimestamps {
				parts = append(parts, ts.UTC().Format(time.RFC3339Nano))
			}
			orderTimestamps = strings.Join(parts, ";")
		}

		duration := f.EndTimestamp.Sub(f.StartTimestamp).Seconds()
		row := []string{
			sanitizeCell(accountID),
			sanitizeCell(f.ProductID),
			sanitizeCell(orderTimestamps),
			strconv.FormatFloat(duration, 'f', 3, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing detection log row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *CSVResultWriter) accountCell(accountID string) (string, error) {
	if !w.pseudonymize {
		return accountID, nil
	}
	return pseudonymize.Hash(w.salt, accountID)
}

// sanitizeCell prefixes a leading apostrophe on any cell that could be
// interpreted as a spreadsheet formula when opened by a careless
// analyst — spec §6 "CSV sanitisation".
func sanitizeCell(s string) string {
	if strings.ContainsAny(s, "=+-@\t\r") {
		return "'" + s
	}
	return s
}
