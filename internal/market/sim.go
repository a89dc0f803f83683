package market

import (
	"math/rand"
	"sync"

	"golang.org/x/time/rate"
)

// listing is the static reference data for one simulated symbol.
type listing struct {
	price      int64 // cents
	sector     string
	volatility float64 // 30d, percent
	dailyValue int64   // cents
}

// defaultListings seeds the simulated exchange with a small liquid universe.
var defaultListings = map[string]listing{
	"AAPL": {price: 18950, sector: "technology", volatility: 22.4, dailyValue: 1_200_000_000_00},
	"MSFT": {price: 41520, sector: "technology", volatility: 19.8, dailyValue: 900_000_000_00},
	"NVDA": {price: 87230, sector: "technology", volatility: 48.1, dailyValue: 2_500_000_000_00},
	"GOOG": {price: 17110, sector: "technology", volatility: 24.6, dailyValue: 700_000_000_00},
	"JPM":  {price: 19840, sector: "financials", volatility: 17.2, dailyValue: 400_000_000_00},
	"GS":   {price: 45110, sector: "financials", volatility: 21.5, dailyValue: 200_000_000_00},
	"XOM":  {price: 11230, sector: "energy", volatility: 25.3, dailyValue: 350_000_000_00},
	"CVX":  {price: 15470, sector: "energy", volatility: 23.9, dailyValue: 250_000_000_00},
	"JNJ":  {price: 15890, sector: "healthcare", volatility: 13.1, dailyValue: 300_000_000_00},
	"PFE":  {price: 2870, sector: "healthcare", volatility: 28.7, dailyValue: 180_000_000_00},
	"KO":   {price: 6240, sector: "consumer", volatility: 11.9, dailyValue: 160_000_000_00},
	"TSLA": {price: 24410, sector: "consumer", volatility: 55.2, dailyValue: 1_800_000_000_00},
}

// SimProvider is a simulated market data feed. Quotes follow a bounded
// random walk around the listed price and lookups are throttled by a
// token bucket so hot loops cannot hammer the feed.
type SimProvider struct {
	mu       sync.Mutex
	listings map[string]listing
	rng      *rand.Rand
	limiter  *rate.Limiter
}

// NewSimProvider creates a simulated feed allowing qps quote lookups per second.
func NewSimProvider(qps float64, seed int64) *SimProvider {
	listings := make(map[string]listing, len(defaultListings))
	for sym, l := range defaultListings {
		listings[sym] = l
	}
	return &SimProvider{
		listings: listings,
		rng:      rand.New(rand.NewSource(seed)),
		limiter:  rate.NewLimiter(rate.Limit(qps), int(qps)),
	}
}

// GetCurrentPrice returns the listed price with up to ±0.5% jitter.
func (p *SimProvider) GetCurrentPrice(symbol string) (int64, error) {
	if !p.limiter.Allow() {
		return 0, ErrRateLimited
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.listings[symbol]
	if !ok {
		return 0, ErrSymbolNotFound
	}

	jitter := 1 + (p.rng.Float64()*2-1)*0.005
	price := int64(float64(l.price) * jitter)
	if price < 1 {
		price = 1
	}
	l.price = price
	p.listings[symbol] = l
	return price, nil
}

// GetCurrentPrices returns prices for the given symbols, skipping unknowns.
func (p *SimProvider) GetCurrentPrices(symbols []string) map[string]int64 {
	prices := make(map[string]int64, len(symbols))
	for _, sym := range symbols {
		price, err := p.GetCurrentPrice(sym)
		if err != nil {
			continue
		}
		prices[sym] = price
	}
	return prices
}

// GetSector returns the symbol's sector, or "other" for unmapped symbols.
func (p *SimProvider) GetSector(symbol string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.listings[symbol]; ok {
		return l.sector
	}
	return "other"
}

// GetHistoricalVolatility returns the trailing volatility for the symbol.
func (p *SimProvider) GetHistoricalVolatility(symbol string, days int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.listings[symbol]; ok {
		return l.volatility
	}
	return 0
}

// GetAverageDailyValue returns the symbol's typical daily traded value.
func (p *SimProvider) GetAverageDailyValue(symbol string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.listings[symbol]; ok {
		return l.dailyValue
	}
	return 0
}

// IsValidSymbol reports whether the symbol is listed.
func (p *SimProvider) IsValidSymbol(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.listings[symbol]
	return ok
}
