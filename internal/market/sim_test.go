package market

import (
	"errors"
	"testing"
)

func TestSimProviderQuotes(t *testing.T) {
	provider := NewSimProvider(1000, 42)

	if !provider.IsValidSymbol("AAPL") {
		t.Fatal("expected AAPL to be listed")
	}
	if provider.IsValidSymbol("ZZZZ") {
		t.Fatal("expected ZZZZ to be unlisted")
	}

	price, err := provider.GetCurrentPrice("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price <= 0 {
		t.Errorf("expected positive price, got %d", price)
	}

	// Jitter is bounded at ±0.5% per lookup.
	next, err := provider.GetCurrentPrice("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lo := price - price/100
	hi := price + price/100
	if next < lo || next > hi {
		t.Errorf("price moved from %d to %d, outside jitter bounds", price, next)
	}

	if _, err := provider.GetCurrentPrice("ZZZZ"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestSimProviderReferenceData(t *testing.T) {
	provider := NewSimProvider(1000, 1)

	if sector := provider.GetSector("JPM"); sector != "financials" {
		t.Errorf("expected financials, got %s", sector)
	}
	if sector := provider.GetSector("ZZZZ"); sector != "other" {
		t.Errorf("expected other for unlisted symbol, got %s", sector)
	}
	if vol := provider.GetHistoricalVolatility("TSLA", 30); vol <= 0 {
		t.Errorf("expected positive volatility, got %f", vol)
	}
	if adv := provider.GetAverageDailyValue("AAPL"); adv <= 0 {
		t.Errorf("expected positive daily value, got %d", adv)
	}
}

func TestSimProviderRateLimit(t *testing.T) {
	provider := NewSimProvider(1, 7)

	if _, err := provider.GetCurrentPrice("AAPL"); err != nil {
		t.Fatalf("first lookup should pass the limiter: %v", err)
	}
	if _, err := provider.GetCurrentPrice("AAPL"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited on burst exhaustion, got %v", err)
	}
}

func TestSimProviderBatchSkipsUnknown(t *testing.T) {
	provider := NewSimProvider(1000, 3)

	prices := provider.GetCurrentPrices([]string{"AAPL", "ZZZZ", "MSFT"})
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if _, ok := prices["ZZZZ"]; ok {
		t.Error("unknown symbol must be skipped, not zero-priced")
	}
}
