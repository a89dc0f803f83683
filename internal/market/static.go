package market

import "sync"

// StaticQuote is deterministic reference data for one symbol in tests.
type StaticQuote struct {
	Price      int64
	Sector     string
	Volatility float64
	DailyValue int64
}

// StaticProvider is a deterministic Provider for tests. Prices never move
// unless changed explicitly, and transient failures can be injected by
// setting FailCount.
type StaticProvider struct {
	mu     sync.Mutex
	Quotes map[string]StaticQuote

	// FailCount makes the next N GetCurrentPrice calls fail with
	// ErrFeedUnavailable before quotes succeed again.
	FailCount int

	// PriceCalls counts GetCurrentPrice invocations, including failures.
	PriceCalls int
}

// NewStaticProvider creates a provider over the given quote table.
func NewStaticProvider(quotes map[string]StaticQuote) *StaticProvider {
	return &StaticProvider{Quotes: quotes}
}

// SetPrice updates the quoted price for a symbol.
func (p *StaticProvider) SetPrice(symbol string, price int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.Quotes[symbol]
	q.Price = price
	p.Quotes[symbol] = q
}

func (p *StaticProvider) GetCurrentPrice(symbol string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PriceCalls++
	if p.FailCount > 0 {
		p.FailCount--
		return 0, ErrFeedUnavailable
	}
	q, ok := p.Quotes[symbol]
	if !ok {
		return 0, ErrSymbolNotFound
	}
	return q.Price, nil
}

func (p *StaticProvider) GetCurrentPrices(symbols []string) map[string]int64 {
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

func (p *StaticProvider) GetSector(symbol string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.Quotes[symbol]; ok && q.Sector != "" {
		return q.Sector
	}
	return "other"
}

func (p *StaticProvider) GetHistoricalVolatility(symbol string, days int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Quotes[symbol].Volatility
}

func (p *StaticProvider) GetAverageDailyValue(symbol string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Quotes[symbol].DailyValue
}

func (p *StaticProvider) IsValidSymbol(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.Quotes[symbol]
	return ok
}
