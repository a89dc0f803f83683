package services

import (
	"time"

	"tradewarden/internal/models"
	"tradewarden/internal/oversight"
	"tradewarden/internal/pagination"
	"tradewarden/internal/risk"

	"gorm.io/gorm"
)

// CreateAgentInput holds the parameters for creating a trading agent.
// MonthlyBudget and MaxPositionSize are int64 cents.
type CreateAgentInput struct {
	Name            string
	MonthlyBudget   int64
	RiskProfile     models.RiskProfile
	AllowedSymbols  []string
	MaxPositionSize *int64 // optional override; defaults to 30% of budget
}

// TerminationReport summarizes an agent termination. Liquidation failures
// are absorbed into the report, never surfaced as hard errors.
type TerminationReport struct {
	AgentID         string    `json:"agent_id"`
	TradesCanceled  int       `json:"trades_canceled"`
	PositionsClosed int       `json:"positions_closed"`
	PositionsFailed int       `json:"positions_failed"`
	FinalCash       int64     `json:"final_cash"`
	FinalValue      int64     `json:"final_value"`
	RealizedPnL     int64     `json:"realized_pnl"`
	QuotaUsage      int64     `json:"quota_usage"`
	TerminatedAt    time.Time `json:"terminated_at"`
}

// AgentServicer defines the contract for the agent lifecycle manager.
type AgentServicer interface {
	CreateAgent(input CreateAgentInput) (*models.Agent, error)
	GetAgentByID(agentID string) (*models.Agent, error)
	TerminateAgent(agentID string, closePositions bool) (*TerminationReport, error)
}

// TradeResult is the immediate outcome of a submitted trade.
type TradeResult struct {
	TradeID      string             `json:"trade_id"`
	AgentID      string             `json:"agent_id"`
	Status       models.TradeStatus `json:"status"`
	Symbol       string             `json:"symbol"`
	Side         models.TradeSide   `json:"side"`
	FillPrice    int64              `json:"fill_price,omitempty"`
	FillQuantity int64              `json:"fill_quantity,omitempty"`
	FillValue    int64              `json:"fill_value,omitempty"`
	RiskScore    int                `json:"risk_score"`
	ExecutedAt   *time.Time         `json:"executed_at,omitempty"`
}

// TradeServicer defines the contract for the trade pipeline.
type TradeServicer interface {
	// SubmitTrade runs the full decision pipeline. bypass is set only by
	// internal termination-liquidation calls and skips the risk hard stop
	// and the oversight handoff.
	SubmitTrade(agentID string, req models.TradeRequest, bypass bool) (*TradeResult, error)

	// ExecuteApproved resumes an approved pending trade at the execution
	// step, re-quoting the market and rejecting stale approvals.
	ExecuteApproved(trade *models.Trade) (*TradeResult, error)

	// CancelPending cancels every pending_approval trade for the agent.
	CancelPending(agentID, reason string) (int, error)

	GetAgentTrades(agentID string, page pagination.PageRequest) (*pagination.PageResponse[models.Trade], error)
}

// BudgetDecision is the outcome of a budget gate check.
type BudgetDecision struct {
	Allowed      bool    `json:"allowed"`
	CurrentUsage int64   `json:"current_usage"`
	Limit        int64   `json:"limit"`
	Projected    int64   `json:"projected"`
	Remaining    int64   `json:"remaining"`
	Overage      int64   `json:"overage,omitempty"`
	Utilization  float64 `json:"utilization"`
}

// BudgetGater admits or rejects trades against the agent's monthly quota.
type BudgetGater interface {
	Check(agent *models.Agent, side models.TradeSide, amount int64) (*BudgetDecision, error)
}

// PositionValuation is one position enriched with current market data.
type PositionValuation struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	AvgCostBasis  int64   `json:"avg_cost_basis"`
	CurrentPrice  int64   `json:"current_price"`
	MarketValue   int64   `json:"market_value"`
	CostValue     int64   `json:"cost_value"`
	UnrealizedPnL int64   `json:"unrealized_pnl"`
	PercentChange float64 `json:"percent_change"`
}

// PortfolioValuation is a full portfolio valuation.
type PortfolioValuation struct {
	TotalValue     int64               `json:"total_value"`
	CashBalance    int64               `json:"cash_balance"`
	PositionsValue int64               `json:"positions_value"`
	DailyPnL       int64               `json:"daily_pnl"`
	RealizedPnL    int64               `json:"realized_pnl"`
	UnrealizedPnL  int64               `json:"unrealized_pnl"`
	TotalPnL       int64               `json:"total_pnl"`
	PercentReturn  float64             `json:"percent_return"`
	Positions      []PositionValuation `json:"positions"`
}

// PortfolioServicer owns portfolio state: fills, valuation, snapshots.
type PortfolioServicer interface {
	GetPortfolio(agentID string) (*models.Portfolio, error)

	// ApplyFill mutates cash and positions for a confirmed fill inside the
	// given transaction, then records a snapshot. All-or-nothing: any
	// invariant violation rolls the transaction back untouched.
	ApplyFill(tx *gorm.DB, agent *models.Agent, side models.TradeSide, symbol string, fillPrice, fillQuantity int64) error

	// Value computes a full valuation. priceOverrides wins over the market
	// feed; positions with no price fall back to their own cost basis.
	Value(agentID string, priceOverrides map[string]int64) (*PortfolioValuation, error)

	GetSnapshots(agentID string, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioSnapshot], error)
}

// ApprovedTradeExecutor resumes an approved trade at the execution step.
// Implemented by the trade pipeline; split out so the approval service
// can be wired without a constructor cycle.
type ApprovedTradeExecutor interface {
	ExecuteApproved(trade *models.Trade) (*TradeResult, error)
}

// ApprovalServicer defines the contract for the oversight orchestrator.
type ApprovalServicer interface {
	// Submit hands a trade off to human oversight: registers the request
	// with the external service, then durably records the pending trade
	// and its approval request. A submission failure aborts the trade.
	Submit(agent *models.Agent, trade *models.Trade, assessment risk.Assessment) (*models.ApprovalRequest, error)

	// Resolve applies an oversight decision to a pending trade. Approval
	// resumes execution; rejection and expiry are terminal.
	Resolve(tradeID string, decision oversight.Decision, reason string) (*TradeResult, error)

	// ExpireStale expires every pending request past its deadline and
	// cancels the underlying trades. Returns the number expired.
	ExpireStale(now time.Time) (int, error)

	GetAgentApprovals(agentID string, page pagination.PageRequest) (*pagination.PageResponse[models.ApprovalRequest], error)

	// SetExecutor wires the trade pipeline after construction.
	SetExecutor(executor ApprovedTradeExecutor)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(agentID, action, resourceType, resourceID string, details map[string]any)
}
