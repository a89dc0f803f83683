package models

import "time"

// TradeSide is the direction of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Valid reports whether the side is recognized.
func (s TradeSide) Valid() bool { return s == TradeSideBuy || s == TradeSideSell }

// OrderType is the order kind.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Valid reports whether the order type is recognized.
func (t OrderType) Valid() bool { return t == OrderTypeMarket || t == OrderTypeLimit }

// TradeStatus is the lifecycle state of a persisted trade.
type TradeStatus string

const (
	TradeStatusPendingApproval TradeStatus = "pending_approval"
	TradeStatusFilled          TradeStatus = "filled"
	TradeStatusCanceled        TradeStatus = "canceled"
	TradeStatusRejected        TradeStatus = "rejected"
)

// MaxTradeQuantity bounds the quantity of a single trade request.
const MaxTradeQuantity = 1_000_000

// Trade is a persisted trade record. Requests rejected before execution are
// never persisted; a Trade exists only once it is pending approval or filled.
// Prices and values are int64 cents.
type Trade struct {
	Base
	AgentID   string      `gorm:"type:uuid;not null;index" json:"agent_id"`
	Symbol    string      `gorm:"not null" json:"symbol"`
	Side      TradeSide   `gorm:"not null" json:"side"`
	OrderType OrderType   `gorm:"not null" json:"order_type"`
	Quantity  int64       `gorm:"type:bigint;not null" json:"quantity"`
	Status    TradeStatus `gorm:"not null" json:"status"`

	// LimitPrice is set iff OrderType is limit.
	LimitPrice int64 `gorm:"type:bigint" json:"limit_price,omitempty"`

	// QuotedPrice is the market price resolved at validation time. Approved
	// trades are re-quoted at execution and checked against this for drift.
	QuotedPrice int64 `gorm:"type:bigint;not null" json:"quoted_price"`

	// Fill fields are zero until the trade reaches filled.
	FillPrice    int64 `gorm:"type:bigint" json:"fill_price,omitempty"`
	FillQuantity int64 `gorm:"type:bigint" json:"fill_quantity,omitempty"`
	FillValue    int64 `gorm:"type:bigint" json:"fill_value,omitempty"`
	Attempts     int   `json:"attempts,omitempty"`

	RiskScore  int        `json:"risk_score"`
	Reason     string     `json:"reason,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// TradeRequest is the ephemeral trade intent submitted by an agent. It is
// not persisted until accepted into a Trade record.
type TradeRequest struct {
	Symbol     string    `json:"symbol"`
	Side       TradeSide `json:"side"`
	OrderType  OrderType `json:"order_type"`
	Quantity   int64     `json:"quantity"`
	LimitPrice int64     `json:"limit_price,omitempty"`
}
