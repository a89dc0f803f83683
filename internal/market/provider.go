// Package market defines the market data capability consumed by the trading
// core. Access is always through the Provider interface so risk scoring and
// budget checks stay deterministic under test.
package market

import "errors"

// Provider supplies prices and symbol metadata. Prices are int64 cents.
type Provider interface {
	// GetCurrentPrice returns the current price for a symbol, or an error
	// if the symbol is unknown or the feed is unavailable.
	GetCurrentPrice(symbol string) (int64, error)

	// GetCurrentPrices returns current prices for the given symbols.
	// Symbols without a price are absent from the map.
	GetCurrentPrices(symbols []string) map[string]int64

	// GetSector returns the sector for a symbol, or "other" when unmapped.
	GetSector(symbol string) string

	// GetHistoricalVolatility returns the trailing volatility (percent,
	// annualized) over the given number of days.
	GetHistoricalVolatility(symbol string, days int) float64

	// GetAverageDailyValue returns the symbol's typical daily traded value
	// in cents, used as the liquidity denominator.
	GetAverageDailyValue(symbol string) int64

	// IsValidSymbol reports whether the symbol is recognized.
	IsValidSymbol(symbol string) bool
}

// Feed errors.
var (
	ErrSymbolNotFound = errors.New("market: symbol not found")
	ErrRateLimited    = errors.New("market: quote rate limit exceeded")
	ErrFeedUnavailable = errors.New("market: feed unavailable")
)
