package services

import (
	"fmt"
	"time"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/logger"
	"tradewarden/internal/models"
	"tradewarden/internal/notify"
	"tradewarden/internal/quota"
)

// Utilization levels at which informational signals are emitted. Signals
// never block a trade.
const (
	utilizationWarning  = 0.80
	utilizationCritical = 0.90
)

// budgetGate admits buy trades against the agent's monthly quota. Sells
// always pass and consume no quota.
type budgetGate struct {
	ledger   quota.Ledger
	notifier notify.Notifier
}

// NewBudgetGate creates a new BudgetGater.
func NewBudgetGate(ledger quota.Ledger, notifier notify.Notifier) BudgetGater {
	return &budgetGate{ledger: ledger, notifier: notifier}
}

// Check evaluates a trade against the agent's quota. A ledger read failure
// is a hard rejection: budget cannot be assumed available when usage is
// unknown.
func (g *budgetGate) Check(agent *models.Agent, side models.TradeSide, amount int64) (*BudgetDecision, error) {
	if side == models.TradeSideSell {
		return &BudgetDecision{Allowed: true, Limit: agent.MonthlyBudget}, nil
	}

	usage, err := g.ledger.GetUsage(agent.QuotaID, time.Now())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExternalService, err)
	}

	limit := agent.MonthlyBudget
	projected := usage + amount

	if projected > limit {
		overage := projected - limit
		decision := &BudgetDecision{
			Allowed:      false,
			CurrentUsage: usage,
			Limit:        limit,
			Projected:    projected,
			Remaining:    limit - usage,
			Overage:      overage,
			Utilization:  float64(projected) / float64(limit),
		}
		return decision, apperrors.WithMessage(apperrors.ErrBudgetExceeded,
			fmt.Sprintf("Trade exceeds monthly budget by %d cents (used %d of %d, %d remaining)",
				overage, usage, limit, limit-usage))
	}

	utilization := float64(projected) / float64(limit)
	switch {
	case utilization >= utilizationCritical:
		logger.Get().Warnw("budget utilization critical",
			"agent_id", agent.ID, "utilization", utilization)
		g.notifier.Send(notify.Notification{
			AgentID:  agent.ID,
			Severity: "critical",
			Title:    "Budget nearly exhausted",
			Body:     fmt.Sprintf("Monthly budget utilization at %.0f%%", utilization*100),
		})
	case utilization >= utilizationWarning:
		logger.Get().Infow("budget utilization warning",
			"agent_id", agent.ID, "utilization", utilization)
		g.notifier.Send(notify.Notification{
			AgentID:  agent.ID,
			Severity: "warning",
			Title:    "Budget running low",
			Body:     fmt.Sprintf("Monthly budget utilization at %.0f%%", utilization*100),
		})
	}

	return &BudgetDecision{
		Allowed:      true,
		CurrentUsage: usage,
		Limit:        limit,
		Projected:    projected,
		Remaining:    limit - projected,
		Utilization:  utilization,
	}, nil
}
