package services

import (
	"testing"

	"tradewarden/internal/models"
	"tradewarden/internal/notify"
	"tradewarden/internal/quota"
	"tradewarden/internal/testutil"
)

func TestBudgetGateCheck(t *testing.T) {
	t.Run("buy_within_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		gate := NewBudgetGate(quota.NewLedger(db), notify.NewLogNotifier())
		agent := testutil.CreateTestAgentWithBudget(t, db, 1_000_000)
		testutil.RecordTestUsage(t, db, agent, 300_000)

		decision, err := gate.Check(agent, models.TradeSideBuy, 200_000)
		testutil.AssertNoError(t, err)
		if !decision.Allowed {
			t.Fatal("expected trade within budget to be allowed")
		}
		if decision.Remaining != 500_000 {
			t.Errorf("expected 500000 remaining after projection, got %d", decision.Remaining)
		}
	})

	t.Run("projected_equal_to_limit_allowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		gate := NewBudgetGate(quota.NewLedger(db), notify.NewLogNotifier())
		agent := testutil.CreateTestAgentWithBudget(t, db, 1_000_000)
		testutil.RecordTestUsage(t, db, agent, 900_000)

		decision, err := gate.Check(agent, models.TradeSideBuy, 100_000)
		testutil.AssertNoError(t, err)
		if !decision.Allowed {
			t.Fatal("projection exactly at the limit must be allowed")
		}
		if decision.Remaining != 0 {
			t.Errorf("expected nothing remaining, got %d", decision.Remaining)
		}
	})

	t.Run("buy_over_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		gate := NewBudgetGate(quota.NewLedger(db), notify.NewLogNotifier())
		agent := testutil.CreateTestAgentWithBudget(t, db, 1_000_000)
		testutil.RecordTestUsage(t, db, agent, 900_000)

		decision, err := gate.Check(agent, models.TradeSideBuy, 150_000)
		testutil.AssertAppError(t, err, "BUDGET_EXCEEDED")
		if decision == nil || decision.Allowed {
			t.Fatal("expected a blocking decision")
		}
		if decision.Overage != 50_000 {
			t.Errorf("expected overage 50000, got %d", decision.Overage)
		}
	})

	t.Run("sell_bypasses_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		gate := NewBudgetGate(quota.NewLedger(db), notify.NewLogNotifier())
		agent := testutil.CreateTestAgentWithBudget(t, db, 1_000_000)
		testutil.RecordTestUsage(t, db, agent, 1_000_000)

		decision, err := gate.Check(agent, models.TradeSideSell, 5_000_000)
		testutil.AssertNoError(t, err)
		if !decision.Allowed {
			t.Fatal("sells must pass regardless of quota usage")
		}
	})

	t.Run("ledger_failure_fails_closed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		gate := NewBudgetGate(quota.NewLedger(db), notify.NewLogNotifier())

		agent := &models.Agent{
			Base:          models.Base{ID: "11111111-1111-1111-1111-111111111111"},
			QuotaID:       "22222222-2222-2222-2222-222222222222",
			MonthlyBudget: 1_000_000,
		}
		_, err := gate.Check(agent, models.TradeSideBuy, 100_000)
		testutil.AssertAppError(t, err, "EXTERNAL_SERVICE_ERROR")
	})
}
