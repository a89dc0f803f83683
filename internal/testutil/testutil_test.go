package testutil_test

import (
	"testing"

	"tradewarden/internal/errors"
	"tradewarden/internal/models"
	"tradewarden/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"agents", "portfolios", "positions", "trades", "approval_requests", "portfolio_snapshots", "quotas", "usage_records", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	agent := testutil.CreateTestAgent(t, db)
	if agent.ID == "" {
		t.Fatal("agent should have a non-empty ID")
	}
	if agent.Portfolio.CashBalance != testutil.DefaultTestBudget {
		t.Errorf("expected funded portfolio, got %d", agent.Portfolio.CashBalance)
	}
	if agent.QuotaID == "" {
		t.Fatal("agent should have a backing quota")
	}

	pos := testutil.CreateTestPosition(t, db, agent, "AAPL", 10, 15_000)
	if pos.PortfolioID != agent.Portfolio.ID {
		t.Errorf("position should belong to the agent's portfolio")
	}

	trade := testutil.CreateTestPendingTrade(t, db, agent, "MSFT", 200, 40_000)
	var request models.ApprovalRequest
	if err := db.First(&request, "trade_id = ?", trade.ID).Error; err != nil {
		t.Fatalf("pending trade should carry an approval request: %v", err)
	}
	if request.Status != models.ApprovalStatusPending {
		t.Errorf("expected pending request, got %s", request.Status)
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrAgentNotFound, "custom message")
	testutil.AssertAppError(t, err, "AGENT_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
