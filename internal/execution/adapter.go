// Package execution places validated, approved orders against the market.
// Market orders fill at the current price with bounded random slippage;
// limit orders fill at the limit price when the market satisfies it.
// Transient feed failures are retried a fixed number of times.
package execution

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"tradewarden/internal/market"
	"tradewarden/internal/models"

	"github.com/shopspring/decimal"
)

// MaxSlippagePct bounds the random market-order slippage factor (±0.2%).
const MaxSlippagePct = 0.002

// Order is a validated, approved order ready for placement.
type Order struct {
	Symbol     string
	Side       models.TradeSide
	OrderType  models.OrderType
	Quantity   int64
	LimitPrice int64 // cents, set iff OrderType is limit
}

// Fill is the realized result of a successful execution.
type Fill struct {
	Price    int64 // cents per share
	Quantity int64
	Value    int64 // cents
	Attempts int
}

// ErrNotFillable marks a limit order the market cannot currently satisfy.
// This is a distinct terminal outcome, not a transient failure: it does
// not consume retry attempts.
var ErrNotFillable = errors.New("execution: limit order not fillable at current price")

// FailedError is returned after the retry budget is exhausted.
type FailedError struct {
	Attempts int
	Last     error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("execution failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *FailedError) Unwrap() error { return e.Last }

// Adapter executes orders against a market data provider.
type Adapter struct {
	market      market.Provider
	maxAttempts int
	backoff     time.Duration
	rng         *rand.Rand
}

// NewAdapter creates an execution adapter. maxAttempts and backoff bound
// the retry loop; this is the only bounded-blocking point in the core.
func NewAdapter(provider market.Provider, maxAttempts int, backoff time.Duration) *Adapter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Adapter{
		market:      provider,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute places the order, retrying transient feed failures up to the
// attempt cap with a fixed backoff. A limit order the market cannot fill
// returns ErrNotFillable immediately.
func (a *Adapter) Execute(order Order) (*Fill, error) {
	var lastErr error

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		current, err := a.market.GetCurrentPrice(order.Symbol)
		if err != nil {
			lastErr = err
			if attempt < a.maxAttempts {
				time.Sleep(a.backoff)
			}
			continue
		}

		fillPrice, err := a.fillPrice(order, current)
		if err != nil {
			return nil, err
		}

		return &Fill{
			Price:    fillPrice,
			Quantity: order.Quantity,
			Value:    fillPrice * order.Quantity,
			Attempts: attempt,
		}, nil
	}

	return nil, &FailedError{Attempts: a.maxAttempts, Last: lastErr}
}

// fillPrice resolves the realized price for the order given the current
// market price.
func (a *Adapter) fillPrice(order Order, current int64) (int64, error) {
	if order.OrderType == models.OrderTypeLimit {
		// Buy fills when current <= limit; sell fills when current >= limit.
		if order.Side == models.TradeSideBuy && current > order.LimitPrice {
			return 0, ErrNotFillable
		}
		if order.Side == models.TradeSideSell && current < order.LimitPrice {
			return 0, ErrNotFillable
		}
		return order.LimitPrice, nil
	}

	return a.applySlippage(current), nil
}

// applySlippage adjusts a market-order price by a bounded random factor.
func (a *Adapter) applySlippage(price int64) int64 {
	slip := decimal.NewFromFloat((a.rng.Float64()*2 - 1) * MaxSlippagePct)
	adjusted := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(1).Add(slip)).
		Round(0).
		IntPart()
	if adjusted < 1 {
		adjusted = 1
	}
	return adjusted
}
