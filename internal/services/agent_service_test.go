package services

import (
	"testing"

	"tradewarden/internal/models"
	"tradewarden/internal/testutil"
)

func validCreateInput() CreateAgentInput {
	return CreateAgentInput{
		Name:           "Momentum Alpha",
		MonthlyBudget:  10_000_000, // $100,000
		RiskProfile:    models.RiskProfileModerate,
		AllowedSymbols: []string{"AAPL", "MSFT"},
	}
}

func TestCreateAgent(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)

		agent, err := stack.agents.CreateAgent(validCreateInput())
		testutil.AssertNoError(t, err)

		if agent.ID == "" {
			t.Fatal("expected non-empty agent id")
		}
		if agent.Status != models.AgentStatusActive {
			t.Errorf("expected active status, got %s", agent.Status)
		}
		if agent.RiskTolerance != 0.20 {
			t.Errorf("expected moderate tolerance 0.20, got %f", agent.RiskTolerance)
		}
		// Derived: 5% daily loss, 30% position size of the budget.
		if agent.MaxDailyLoss != 500_000 {
			t.Errorf("expected max daily loss 500000, got %d", agent.MaxDailyLoss)
		}
		if agent.MaxPositionSize != 3_000_000 {
			t.Errorf("expected max position size 3000000, got %d", agent.MaxPositionSize)
		}
		if !agent.SymbolAllowed("AAPL") || agent.SymbolAllowed("JPM") {
			t.Errorf("allowed universe wrong: %s", agent.AllowedSymbols)
		}

		// Portfolio funded with the full budget.
		if agent.Portfolio.CashBalance != 10_000_000 {
			t.Errorf("expected funded cash 10000000, got %d", agent.Portfolio.CashBalance)
		}
		if agent.Portfolio.InitialFunding != 10_000_000 {
			t.Errorf("expected initial funding recorded, got %d", agent.Portfolio.InitialFunding)
		}

		// Quota allocated in the ledger and bound to the agent.
		var q models.Quota
		testutil.AssertNoError(t, db.First(&q, "id = ?", agent.QuotaID).Error)
		if q.EntityID != agent.ID {
			t.Errorf("expected quota entity %s, got %s", agent.ID, q.EntityID)
		}
		if q.Limit != 10_000_000 {
			t.Errorf("expected quota limit 10000000, got %d", q.Limit)
		}
	})

	t.Run("position_size_override", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)

		input := validCreateInput()
		override := int64(1_000_000)
		input.MaxPositionSize = &override

		agent, err := stack.agents.CreateAgent(input)
		testutil.AssertNoError(t, err)
		if agent.MaxPositionSize != 1_000_000 {
			t.Errorf("expected overridden position size, got %d", agent.MaxPositionSize)
		}
	})

	t.Run("budget_bounds", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)

		for _, budget := range []int64{MinMonthlyBudget, MaxMonthlyBudget} {
			input := validCreateInput()
			input.MonthlyBudget = budget
			_, err := stack.agents.CreateAgent(input)
			testutil.AssertNoError(t, err)
		}

		for _, budget := range []int64{0, MinMonthlyBudget - 1, MaxMonthlyBudget + 1} {
			input := validCreateInput()
			input.MonthlyBudget = budget
			_, err := stack.agents.CreateAgent(input)
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		}
	})

	t.Run("invalid_input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)

		tests := []struct {
			name   string
			mutate func(*CreateAgentInput)
		}{
			{"empty_name", func(in *CreateAgentInput) { in.Name = "  " }},
			{"long_name", func(in *CreateAgentInput) {
				in.Name = string(make([]byte, 101))
			}},
			{"bad_profile", func(in *CreateAgentInput) { in.RiskProfile = "yolo" }},
			{"no_symbols", func(in *CreateAgentInput) { in.AllowedSymbols = nil }},
			{"blank_symbol", func(in *CreateAgentInput) { in.AllowedSymbols = []string{"AAPL", " "} }},
			{"negative_position_size", func(in *CreateAgentInput) {
				bad := int64(-1)
				in.MaxPositionSize = &bad
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				input := validCreateInput()
				tt.mutate(&input)
				_, err := stack.agents.CreateAgent(input)
				testutil.AssertAppError(t, err, "INVALID_INPUT")
			})
		}
	})
}

func TestGetAgentByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	stack := newTestStack(t, db)
	agent := testutil.CreateTestAgent(t, db)

	found, err := stack.agents.GetAgentByID(agent.ID)
	testutil.AssertNoError(t, err)
	if found.Portfolio.ID == "" {
		t.Error("expected portfolio to be preloaded")
	}

	_, err = stack.agents.GetAgentByID("00000000-0000-0000-0000-000000000000")
	testutil.AssertAppError(t, err, "AGENT_NOT_FOUND")
}

func TestTerminateAgent(t *testing.T) {
	t.Run("liquidates_and_reports", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db)
		testutil.CreateTestPosition(t, db, agent, "AAPL", 10, 9_000)
		testutil.CreateTestPosition(t, db, agent, "MSFT", 5, 38_000)
		testutil.CreateTestPendingTrade(t, db, agent, "JPM", 300, 20_000)

		report, err := stack.agents.TerminateAgent(agent.ID, true)
		testutil.AssertNoError(t, err)

		if report.TradesCanceled != 1 {
			t.Errorf("expected 1 trade canceled, got %d", report.TradesCanceled)
		}
		if report.PositionsClosed != 2 {
			t.Errorf("expected 2 positions closed, got %d", report.PositionsClosed)
		}
		if report.PositionsFailed != 0 {
			t.Errorf("expected no failed liquidations, got %d", report.PositionsFailed)
		}
		if report.TerminatedAt.IsZero() {
			t.Error("expected termination timestamp")
		}

		var persisted models.Agent
		testutil.AssertNoError(t, db.First(&persisted, "id = ?", agent.ID).Error)
		if persisted.Status != models.AgentStatusTerminated {
			t.Errorf("expected terminated status, got %s", persisted.Status)
		}

		portfolio, err := stack.portfolios.GetPortfolio(agent.ID)
		testutil.AssertNoError(t, err)
		if len(portfolio.Positions) != 0 {
			t.Errorf("expected all positions liquidated, got %d", len(portfolio.Positions))
		}

		var q models.Quota
		testutil.AssertNoError(t, db.First(&q, "id = ?", agent.QuotaID).Error)
		if !q.Finalized {
			t.Error("expected quota finalized")
		}
	})

	t.Run("liquidation_failure_absorbed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db, "AAPL", "DLST")
		testutil.CreateTestPosition(t, db, agent, "AAPL", 10, 9_000)
		// DLST is no longer listed, so its sell cannot execute.
		testutil.CreateTestPosition(t, db, agent, "DLST", 5, 1_000)

		report, err := stack.agents.TerminateAgent(agent.ID, true)
		testutil.AssertNoError(t, err)

		if report.PositionsClosed != 1 {
			t.Errorf("expected 1 position closed, got %d", report.PositionsClosed)
		}
		if report.PositionsFailed != 1 {
			t.Errorf("expected 1 failed liquidation, got %d", report.PositionsFailed)
		}

		// Termination completes regardless.
		var persisted models.Agent
		testutil.AssertNoError(t, db.First(&persisted, "id = ?", agent.ID).Error)
		if persisted.Status != models.AgentStatusTerminated {
			t.Errorf("expected terminated status, got %s", persisted.Status)
		}
	})

	t.Run("keep_positions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db)
		testutil.CreateTestPosition(t, db, agent, "AAPL", 10, 9_000)

		report, err := stack.agents.TerminateAgent(agent.ID, false)
		testutil.AssertNoError(t, err)
		if report.PositionsClosed != 0 {
			t.Errorf("expected no liquidation, got %d", report.PositionsClosed)
		}

		portfolio, err := stack.portfolios.GetPortfolio(agent.ID)
		testutil.AssertNoError(t, err)
		if len(portfolio.Positions) != 1 {
			t.Errorf("expected position retained, got %d", len(portfolio.Positions))
		}
	})

	t.Run("already_terminated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)
		agent := testutil.CreateTestAgent(t, db)

		_, err := stack.agents.TerminateAgent(agent.ID, false)
		testutil.AssertNoError(t, err)

		_, err = stack.agents.TerminateAgent(agent.ID, false)
		testutil.AssertAppError(t, err, "AGENT_TERMINATED")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		stack := newTestStack(t, db)

		_, err := stack.agents.TerminateAgent("00000000-0000-0000-0000-000000000000", true)
		testutil.AssertAppError(t, err, "AGENT_NOT_FOUND")
	})
}
