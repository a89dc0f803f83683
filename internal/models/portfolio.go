package models

import "time"

// Portfolio holds an agent's cash and positions. Owned exclusively by one
// agent. Cash can never go negative; mutation happens only through the
// portfolio service inside a transaction.
type Portfolio struct {
	Base
	AgentID        string `gorm:"type:uuid;not null;uniqueIndex" json:"agent_id"`
	CashBalance    int64  `gorm:"type:bigint;not null" json:"cash_balance"`
	InitialFunding int64  `gorm:"type:bigint;not null" json:"initial_funding"`
	// The column name is pinned: gorm's namer would otherwise split the
	// PnL initialism into pn_l.
	RealizedPnL    int64  `gorm:"column:realized_pnl;type:bigint;not null;default:0" json:"realized_pnl"`
	LastTotalValue int64  `gorm:"type:bigint;not null;default:0" json:"last_total_value"`

	// DailyBaseline is the total value at the start of the current day,
	// used to derive daily P&L.
	DailyBaseline int64 `gorm:"type:bigint;not null;default:0" json:"daily_baseline"`

	// Relationships
	Positions []Position `gorm:"foreignKey:PortfolioID" json:"positions,omitempty"`
}

// Position represents an open holding. Quantity is always > 0 while the
// record exists; a position sold down to zero is removed, never retained.
type Position struct {
	Base
	PortfolioID string `gorm:"type:uuid;not null;uniqueIndex:uq_positions_portfolio_symbol" json:"portfolio_id"`
	Symbol      string `gorm:"not null;uniqueIndex:uq_positions_portfolio_symbol" json:"symbol"`
	Quantity    int64  `gorm:"type:bigint;not null" json:"quantity"`

	// AvgCostBasis is the quantity-weighted average cost per share in cents.
	// Recomputed on buys, unchanged on sells.
	AvgCostBasis int64     `gorm:"type:bigint;not null" json:"avg_cost_basis"`
	OpenedAt     time.Time `gorm:"not null" json:"opened_at"`
}
