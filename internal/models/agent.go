package models

import "strings"

// AgentStatus represents the lifecycle state of a trading agent.
type AgentStatus string

const (
	AgentStatusActive     AgentStatus = "active"
	AgentStatusTerminated AgentStatus = "terminated"
)

// RiskProfile maps to a risk tolerance used when deriving agent risk parameters.
type RiskProfile string

const (
	RiskProfileConservative RiskProfile = "conservative"
	RiskProfileModerate     RiskProfile = "moderate"
	RiskProfileAggressive   RiskProfile = "aggressive"
)

// Tolerance returns the numeric risk tolerance for the profile.
func (p RiskProfile) Tolerance() float64 {
	switch p {
	case RiskProfileConservative:
		return 0.10
	case RiskProfileModerate:
		return 0.20
	case RiskProfileAggressive:
		return 0.35
	}
	return 0
}

// Valid reports whether the profile is one of the recognized values.
func (p RiskProfile) Valid() bool {
	return p == RiskProfileConservative || p == RiskProfileModerate || p == RiskProfileAggressive
}

// Agent represents an autonomous trading agent. Budget and risk parameters
// are immutable after creation; status is mutated only by the lifecycle
// manager. All monetary amounts are int64 cents.
type Agent struct {
	Base
	Name          string      `gorm:"not null" json:"name"`
	Status        AgentStatus `gorm:"not null;default:'active'" json:"status"`
	RiskProfile   RiskProfile `gorm:"not null" json:"risk_profile"`
	MonthlyBudget int64       `gorm:"type:bigint;not null" json:"monthly_budget"`

	// Derived risk parameters, fixed at creation.
	RiskTolerance       float64 `gorm:"not null" json:"risk_tolerance"`
	MaxDailyLoss        int64   `gorm:"type:bigint;not null" json:"max_daily_loss"`
	MaxPositionSize     int64   `gorm:"type:bigint;not null" json:"max_position_size"`
	MaxConcentrationPct float64 `gorm:"not null" json:"max_concentration_pct"`

	// AllowedSymbols is stored as a comma-separated list.
	AllowedSymbols string `gorm:"not null" json:"-"`

	// QuotaID references the usage-ledger quota backing the monthly budget.
	QuotaID string `gorm:"type:uuid;not null" json:"quota_id"`

	// Relationships
	Portfolio Portfolio `gorm:"foreignKey:AgentID" json:"portfolio"`
	Trades    []Trade   `gorm:"foreignKey:AgentID" json:"trades,omitempty"`
}

// AllowedSymbolList returns the agent's allowed universe as a slice.
func (a *Agent) AllowedSymbolList() []string {
	if a.AllowedSymbols == "" {
		return nil
	}
	return strings.Split(a.AllowedSymbols, ",")
}

// SetAllowedSymbols stores the allowed universe from a slice.
func (a *Agent) SetAllowedSymbols(symbols []string) {
	a.AllowedSymbols = strings.Join(symbols, ",")
}

// SymbolAllowed reports whether the symbol is in the agent's allowed universe.
func (a *Agent) SymbolAllowed(symbol string) bool {
	for _, s := range a.AllowedSymbolList() {
		if s == symbol {
			return true
		}
	}
	return false
}
