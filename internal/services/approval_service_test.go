package services

import (
	"testing"
	"time"

	"tradewarden/internal/models"
	"tradewarden/internal/oversight"
	"tradewarden/internal/pagination"
	"tradewarden/internal/testutil"
)

func TestResolveApprovedExecutesTrade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)
	trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

	result, err := stack.approvals.Resolve(trade.ID, oversight.DecisionApproved, "looks fine")
	testutil.AssertNoError(t, err)

	if result.Status != models.TradeStatusFilled {
		t.Fatalf("expected filled, got %s", result.Status)
	}

	var persisted models.Trade
	testutil.AssertNoError(t, db.First(&persisted, "id = ?", trade.ID).Error)
	if persisted.Status != models.TradeStatusFilled {
		t.Errorf("expected persisted trade filled, got %s", persisted.Status)
	}
	if persisted.ExecutedAt == nil {
		t.Error("expected executed_at to be set")
	}

	var request models.ApprovalRequest
	testutil.AssertNoError(t, db.First(&request, "trade_id = ?", trade.ID).Error)
	if request.Status != models.ApprovalStatusApproved {
		t.Errorf("expected approved request, got %s", request.Status)
	}
	if request.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}

	portfolio, err := stack.portfolios.GetPortfolio(agent.ID)
	testutil.AssertNoError(t, err)
	if portfolio.CashBalance != testutil.DefaultTestBudget-result.FillValue {
		t.Errorf("expected cash debited by fill value, got %d", portfolio.CashBalance)
	}
}

func TestResolveRejectedTerminatesTrade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)
	trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

	result, err := stack.approvals.Resolve(trade.ID, oversight.DecisionRejected, "too concentrated")
	testutil.AssertNoError(t, err)
	if result.Status != models.TradeStatusRejected {
		t.Fatalf("expected rejected, got %s", result.Status)
	}

	var persisted models.Trade
	testutil.AssertNoError(t, db.First(&persisted, "id = ?", trade.ID).Error)
	if persisted.Status != models.TradeStatusRejected {
		t.Errorf("expected persisted trade rejected, got %s", persisted.Status)
	}
	if persisted.Reason != "too concentrated" {
		t.Errorf("expected rejection reason recorded, got %q", persisted.Reason)
	}

	portfolio, err := stack.portfolios.GetPortfolio(agent.ID)
	testutil.AssertNoError(t, err)
	if portfolio.CashBalance != testutil.DefaultTestBudget {
		t.Errorf("rejected trades must not move cash, got %d", portfolio.CashBalance)
	}
}

func TestResolveExactlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)
	trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

	_, err := stack.approvals.Resolve(trade.ID, oversight.DecisionRejected, "no")
	testutil.AssertNoError(t, err)

	_, err = stack.approvals.Resolve(trade.ID, oversight.DecisionApproved, "changed my mind")
	testutil.AssertAppError(t, err, "APPROVAL_ALREADY_RESOLVED")
}

func TestResolveTransitionIsExactlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)
	trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

	// Duplicate callbacks race to the same conditional status write; only
	// one may affect the row, no matter how the reads interleave.
	svc := stack.approvals.(*approvalService)
	var request models.ApprovalRequest
	testutil.AssertNoError(t, db.First(&request, "trade_id = ?", trade.ID).Error)

	now := time.Now()
	err := svc.transitionRequest(db, request.ID, models.ApprovalStatusApproved, "first caller", now)
	testutil.AssertNoError(t, err)

	err = svc.transitionRequest(db, request.ID, models.ApprovalStatusRejected, "second caller", now)
	testutil.AssertAppError(t, err, "APPROVAL_ALREADY_RESOLVED")

	var persisted models.ApprovalRequest
	testutil.AssertNoError(t, db.First(&persisted, "id = ?", request.ID).Error)
	if persisted.Status != models.ApprovalStatusApproved {
		t.Errorf("losing caller must not overwrite the resolution, got %s", persisted.Status)
	}
	if persisted.Reason != "first caller" {
		t.Errorf("losing caller must not overwrite the reason, got %q", persisted.Reason)
	}
}

func TestResolveAfterDeadlineExpires(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)
	trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

	past := time.Now().Add(-time.Hour)
	db.Model(&models.ApprovalRequest{}).Where("trade_id = ?", trade.ID).Update("expires_at", past)

	_, err := stack.approvals.Resolve(trade.ID, oversight.DecisionApproved, "late")
	testutil.AssertAppError(t, err, "APPROVAL_EXPIRED")

	var persisted models.Trade
	testutil.AssertNoError(t, db.First(&persisted, "id = ?", trade.ID).Error)
	if persisted.Status != models.TradeStatusCanceled {
		t.Errorf("expected expired trade canceled, got %s", persisted.Status)
	}
}

func TestResolveUnknownTrade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)

	_, err := stack.approvals.Resolve("00000000-0000-0000-0000-000000000000", oversight.DecisionApproved, "")
	testutil.AssertAppError(t, err, "APPROVAL_NOT_FOUND")
}

func TestResolveApprovedStaleness(t *testing.T) {
	t.Run("price_drift", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db)
		trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

		// 20% above the validation-time quote.
		stack.provider.SetPrice("AAPL", 12_000)

		_, err := stack.approvals.Resolve(trade.ID, oversight.DecisionApproved, "ok")
		testutil.AssertAppError(t, err, "APPROVAL_STALE")

		var persisted models.Trade
		testutil.AssertNoError(t, db.First(&persisted, "id = ?", trade.ID).Error)
		if persisted.Status != models.TradeStatusRejected {
			t.Errorf("expected stale trade rejected, got %s", persisted.Status)
		}
	})

	t.Run("tolerable_drift_executes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db)
		trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

		// 5% drift is within tolerance; the fill happens at the fresh price.
		stack.provider.SetPrice("AAPL", 10_500)

		result, err := stack.approvals.Resolve(trade.ID, oversight.DecisionApproved, "ok")
		testutil.AssertNoError(t, err)
		if result.Status != models.TradeStatusFilled {
			t.Fatalf("expected filled, got %s", result.Status)
		}
		if result.FillPrice < 10_479 || result.FillPrice > 10_521 {
			t.Errorf("expected fill near the fresh price 10500, got %d", result.FillPrice)
		}
	})

	t.Run("agent_terminated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db)
		trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)

		db.Model(&models.Agent{}).Where("id = ?", agent.ID).Update("status", models.AgentStatusTerminated)

		_, err := stack.approvals.Resolve(trade.ID, oversight.DecisionApproved, "ok")
		testutil.AssertAppError(t, err, "APPROVAL_STALE")
	})

	t.Run("cash_no_longer_covers", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db)
		// 1500 shares at $100 needs $150,000 against $100,000 cash.
		trade := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 1_500, 10_000)

		_, err := stack.approvals.Resolve(trade.ID, oversight.DecisionApproved, "ok")
		testutil.AssertAppError(t, err, "APPROVAL_STALE")
	})
}

func TestExpireStaleSweep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)

	expired := testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)
	fresh := testutil.CreateTestPendingTrade(t, db, agent, "MSFT", 50, 40_000)

	past := time.Now().Add(-time.Minute)
	db.Model(&models.ApprovalRequest{}).Where("trade_id = ?", expired.ID).Update("expires_at", past)

	count, err := stack.approvals.ExpireStale(time.Now())
	testutil.AssertNoError(t, err)
	if count != 1 {
		t.Fatalf("expected 1 expired, got %d", count)
	}

	var expiredTrade models.Trade
	testutil.AssertNoError(t, db.First(&expiredTrade, "id = ?", expired.ID).Error)
	if expiredTrade.Status != models.TradeStatusCanceled {
		t.Errorf("expected expired trade canceled, got %s", expiredTrade.Status)
	}

	var freshTrade models.Trade
	testutil.AssertNoError(t, db.First(&freshTrade, "id = ?", fresh.ID).Error)
	if freshTrade.Status != models.TradeStatusPendingApproval {
		t.Errorf("fresh pending trade must be untouched, got %s", freshTrade.Status)
	}
}

func TestGetAgentApprovals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)

	testutil.CreateTestPendingTrade(t, db, agent, "AAPL", 100, 10_000)
	testutil.CreateTestPendingTrade(t, db, agent, "MSFT", 50, 40_000)

	page, err := stack.approvals.GetAgentApprovals(agent.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 {
		t.Errorf("expected 2 approval requests, got %d", page.TotalItems)
	}
}
