package services

import (
	"testing"
	"time"

	"tradewarden/internal/execution"
	"tradewarden/internal/market"
	"tradewarden/internal/notify"
	"tradewarden/internal/oversight"
	"tradewarden/internal/quota"
	"tradewarden/internal/risk"

	"gorm.io/gorm"
)

// testQuotes is the deterministic market used by service tests. PENY is a
// small, violently volatile listing used to trip the risk hard stop.
func testQuotes() map[string]market.StaticQuote {
	return map[string]market.StaticQuote{
		"AAPL": {Price: 10_000, Sector: "technology", Volatility: 18, DailyValue: 100_000_000_000},
		"MSFT": {Price: 40_000, Sector: "technology", Volatility: 15, DailyValue: 100_000_000_000},
		"JPM":  {Price: 20_000, Sector: "financials", Volatility: 15, DailyValue: 100_000_000_000},
		"PENY": {Price: 3_500, Sector: "other", Volatility: 55, DailyValue: 10_000_000},
	}
}

// testStack wires the full service graph over an in-memory database and a
// static market.
type testStack struct {
	provider   *market.StaticProvider
	ledger     quota.Ledger
	portfolios PortfolioServicer
	budget     BudgetGater
	approvals  ApprovalServicer
	trades     TradeServicer
	agents     AgentServicer
}

func newTestStack(t *testing.T, db *gorm.DB) *testStack {
	t.Helper()

	provider := market.NewStaticProvider(testQuotes())
	exec := execution.NewAdapter(provider, 3, time.Millisecond)
	notifier := notify.NewLogNotifier()
	ledger := quota.NewLedger(db)
	audit := NewAuditService(db)
	portfolios := NewPortfolioService(db, provider)
	budget := NewBudgetGate(ledger, notifier)
	approvals := NewApprovalService(db, oversight.NewLogClient(), notifier, 24*time.Hour)
	trades := NewTradeService(db, provider, exec, budget, ledger, portfolios, approvals, notifier, risk.DefaultConfig())
	approvals.SetExecutor(trades)
	agents := NewAgentService(db, ledger, trades, portfolios, audit)

	return &testStack{
		provider:   provider,
		ledger:     ledger,
		portfolios: portfolios,
		budget:     budget,
		approvals:  approvals,
		trades:     trades,
		agents:     agents,
	}
}
