package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tradewarden/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// DefaultTestBudget is the monthly budget used by agent fixtures, in cents.
const DefaultTestBudget int64 = 10_000_000 // $100,000

// CreateTestAgent creates an active agent with a funded portfolio and a
// backing monthly quota.
func CreateTestAgent(t *testing.T, db *gorm.DB, symbols ...string) *models.Agent {
	t.Helper()
	return CreateTestAgentWithBudget(t, db, DefaultTestBudget, symbols...)
}

// CreateTestAgentWithBudget creates an agent funded with the given monthly
// budget (in cents).
func CreateTestAgentWithBudget(t *testing.T, db *gorm.DB, budget int64, symbols ...string) *models.Agent {
	t.Helper()

	if len(symbols) == 0 {
		symbols = []string{"AAPL", "MSFT", "NVDA"}
	}

	q := &models.Quota{
		Limit:         budget,
		Period:        models.QuotaPeriodMonthly,
		OveragePolicy: models.OveragePolicyBlock,
	}

	agent := &models.Agent{
		Name:                fmt.Sprintf("Test Agent %d", nextID()),
		Status:              models.AgentStatusActive,
		RiskProfile:         models.RiskProfileModerate,
		MonthlyBudget:       budget,
		RiskTolerance:       models.RiskProfileModerate.Tolerance(),
		MaxDailyLoss:        budget / 20,
		MaxPositionSize:     budget * 3 / 10,
		MaxConcentrationPct: 40,
	}
	agent.SetAllowedSymbols(symbols)

	err := db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(agent).Error; txErr != nil {
			return txErr
		}
		q.EntityID = agent.ID
		if txErr := tx.Create(q).Error; txErr != nil {
			return txErr
		}
		if txErr := tx.Model(agent).Update("quota_id", q.ID).Error; txErr != nil {
			return txErr
		}
		agent.QuotaID = q.ID
		portfolio := &models.Portfolio{
			AgentID:        agent.ID,
			CashBalance:    budget,
			InitialFunding: budget,
			LastTotalValue: budget,
			DailyBaseline:  budget,
		}
		if txErr := tx.Create(portfolio).Error; txErr != nil {
			return txErr
		}
		agent.Portfolio = *portfolio
		return nil
	})
	if err != nil {
		t.Fatalf("failed to create test agent: %v", err)
	}
	return agent
}

// CreateTestPosition adds an open position to the agent's portfolio.
// Quantity is shares; costBasis is cents per share.
func CreateTestPosition(t *testing.T, db *gorm.DB, agent *models.Agent, symbol string, quantity, costBasis int64) *models.Position {
	t.Helper()

	pos := &models.Position{
		PortfolioID:  agent.Portfolio.ID,
		Symbol:       symbol,
		Quantity:     quantity,
		AvgCostBasis: costBasis,
		OpenedAt:     time.Now(),
	}
	if err := db.Create(pos).Error; err != nil {
		t.Fatalf("failed to create test position: %v", err)
	}

	agent.Portfolio.Positions = append(agent.Portfolio.Positions, *pos)
	return pos
}

// CreateTestPendingTrade creates a trade awaiting approval together with
// its pending approval request.
func CreateTestPendingTrade(t *testing.T, db *gorm.DB, agent *models.Agent, symbol string, quantity, quotedPrice int64) *models.Trade {
	t.Helper()

	trade := &models.Trade{
		AgentID:     agent.ID,
		Symbol:      symbol,
		Side:        models.TradeSideBuy,
		OrderType:   models.OrderTypeMarket,
		Quantity:    quantity,
		QuotedPrice: quotedPrice,
		Status:      models.TradeStatusPendingApproval,
		RiskScore:   65,
	}
	if err := db.Create(trade).Error; err != nil {
		t.Fatalf("failed to create test trade: %v", err)
	}

	request := &models.ApprovalRequest{
		AgentID:   agent.ID,
		TradeID:   trade.ID,
		Severity:  "high",
		Status:    models.ApprovalStatusPending,
		RiskScore: trade.RiskScore,
		RiskLevel: "high",
		Title:     fmt.Sprintf("Trade approval: buy %d %s", quantity, symbol),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := db.Create(request).Error; err != nil {
		t.Fatalf("failed to create test approval request: %v", err)
	}

	return trade
}

// RecordTestUsage appends a usage record to the agent's quota.
func RecordTestUsage(t *testing.T, db *gorm.DB, agent *models.Agent, amount int64) {
	t.Helper()

	rec := &models.UsageRecord{
		QuotaID:    agent.QuotaID,
		AgentID:    agent.ID,
		Amount:     amount,
		RecordedAt: time.Now(),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("failed to create test usage record: %v", err)
	}
}
