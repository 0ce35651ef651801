package washtrading

import (
	"testing"
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/shopspring/decimal"
)

func mustTrade(t *testing.T, ts string, account, product string, side domain.Side, price string, qty int64, idx int) domain.TransactionEvent {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", ts, err)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("bad price %q: %v", price, err)
	}
	e, err := domain.NewTransactionEvent(parsed, account, product, side, p, qty, domain.EventTradeExecuted, idx)
	if err != nil {
		t.Fatalf("invalid event: %v", err)
	}
	return e
}

// TestWashTradingMatch is spec §8 Scenario D.
func TestWashTradingMatch(t *testing.T) {
	events := []domain.TransactionEvent{
		mustTrade(t, "2025-01-15T10:30:00Z", "ACC002", "GOOG", domain.SideBuy, "100.00", 2000, 0),
		mustTrade(t, "2025-01-15T10:35:00Z", "ACC002", "GOOG", domain.SideSell, "100.50", 2000, 1),
		mustTrade(t, "2025-01-15T10:40:00Z", "ACC002", "GOOG", domain.SideBuy, "101.00", 2000, 2),
		mustTrade(t, "2025-01-15T10:45:00Z", "ACC002", "GOOG", domain.SideSell, "101.50", 2000, 3),
		mustTrade(t, "2025-01-15T10:50:00Z", "ACC002", "GOOG", domain.SideBuy, "102.00", 2000, 4),
		mustTrade(t, "2025-01-15T10:55:00Z", "ACC002", "GOOG", domain.SideSell, "102.50", 2000, 5),
	}

	findings := New(domain.DefaultWashTradingConfig()).Detect(events)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.DetectionType != domain.DetectionWashTrading {
		t.Fatalf("expected WASH_TRADING, got %s", f.DetectionType)
	}
	if f.TotalBuyQty != 6000 || f.TotalSellQty != 6000 {
		t.Errorf("expected 6000/6000, got %d/%d", f.TotalBuyQty, f.TotalSellQty)
	}
	detail := f.Detail.(domain.WashTradingDetail)
	if detail.AlternationPercentage != 100 {
		t.Errorf("expected 100%% alternation, got %v", detail.AlternationPercentage)
	}
	if detail.PriceChangePercentage == nil || *detail.PriceChangePercentage < 2.49 || *detail.PriceChangePercentage > 2.51 {
		t.Errorf("expected price_change_percentage ~2.50, got %v", detail.PriceChangePercentage)
	}
}

func TestWashTradingAlternationBoundary(t *testing.T) {
	cfg := domain.DefaultWashTradingConfig()

	// 3 buys and 3 sells arranged so that 3 of the 5 adjacent pairs switch
	// side: exactly 60% alternation.
	events := []domain.TransactionEvent{
		mustTrade(t, "2025-01-15T10:00:00Z", "ACC003", "MSFT", domain.SideBuy, "50.00", 2000, 0),
		mustTrade(t, "2025-01-15T10:01:00Z", "ACC003", "MSFT", domain.SideSell, "50.10", 2000, 1),
		mustTrade(t, "2025-01-15T10:02:00Z", "ACC003", "MSFT", domain.SideSell, "50.20", 2000, 2),
		mustTrade(t, "2025-01-15T10:03:00Z", "ACC003", "MSFT", domain.SideBuy, "50.30", 2000, 3),
		mustTrade(t, "2025-01-15T10:04:00Z", "ACC003", "MSFT", domain.SideBuy, "50.40", 2000, 4),
		mustTrade(t, "2025-01-15T10:05:00Z", "ACC003", "MSFT", domain.SideSell, "50.50", 2000, 5),
	}
	// Switches: B->S(1), S->S(0), S->B(1), B->B(0), B->S(1) = 3 switches / 5 = 60%.
	got := alternationPercentage(events)
	if got < 59.99 || got > 60.01 {
		t.Fatalf("test fixture construction error: expected exactly 60%% alternation, got %v", got)
	}

	findings := New(cfg).Detect(events)
	if len(findings) != 1 {
		t.Fatalf("expected a match at exactly 60%% alternation, got %d findings", len(findings))
	}
}

func TestWashTradingBelowVolumeThresholdFails(t *testing.T) {
	cfg := domain.DefaultWashTradingConfig()
	events := []domain.TransactionEvent{
		mustTrade(t, "2025-01-15T10:00:00Z", "ACC004", "AAPL", domain.SideBuy, "10.00", 1666, 0),
		mustTrade(t, "2025-01-15T10:01:00Z", "ACC004", "AAPL", domain.SideSell, "10.10", 1666, 1),
		mustTrade(t, "2025-01-15T10:02:00Z", "ACC004", "AAPL", domain.SideBuy, "10.20", 1666, 2),
		mustTrade(t, "2025-01-15T10:03:00Z", "ACC004", "AAPL", domain.SideSell, "10.30", 1666, 3),
		mustTrade(t, "2025-01-15T10:04:00Z", "ACC004", "AAPL", domain.SideBuy, "10.40", 1667, 4),
		mustTrade(t, "2025-01-15T10:05:00Z", "ACC004", "AAPL", domain.SideSell, "10.50", 1666, 5),
	}
	// Total volume = 9997 < 10000: must not match.
	findings := New(cfg).Detect(events)
	if len(findings) != 0 {
		t.Fatalf("expected 0 findings below the volume threshold, got %d", len(findings))
	}
}

func TestWashTradingEmptyInput(t *testing.T) {
	findings := New(domain.DefaultWashTradingConfig()).Detect(nil)
	if len(findings) != 0 {
		t.Fatalf("expected 0 findings for empty input, got %d", len(findings))
	}
}

func TestWashTradingIgnoresNonTradeEvents(t *testing.T) {
	p, _ := decimal.NewFromString("10.00")
	ts, _ := time.Parse(time.RFC3339, "2025-01-15T10:00:00Z")
	placed, err := domain.NewTransactionEvent(ts, "ACC005", "TSLA", domain.SideBuy, p, 1000, domain.EventOrderPlaced, 0)
	if err != nil {
		t.Fatal(err)
	}
	findings := New(domain.DefaultWashTradingConfig()).Detect([]domain.TransactionEvent{placed})
	if len(findings) != 0 {
		t.Fatalf("expected 0 findings when there are no executed trades, got %d", len(findings))
	}
}
