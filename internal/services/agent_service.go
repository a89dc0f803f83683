package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/logger"
	"tradewarden/internal/models"
	"tradewarden/internal/quota"
	"tradewarden/internal/uuid"

	"gorm.io/gorm"
)

// Budget bounds, int64 cents.
const (
	MinMonthlyBudget = 100_000     // $1,000
	MaxMonthlyBudget = 100_000_000 // $1,000,000

	maxAgentNameLength = 100

	// Fractions of the monthly budget used to derive risk parameters
	// fixed at creation.
	dailyLossFraction    = 0.05
	positionSizeFraction = 0.30
	concentrationPctCap  = 40.0
)

// agentService manages the agent lifecycle: provisioning with quota
// allocation and funded portfolio, and terminal decommissioning.
type agentService struct {
	db         *gorm.DB
	ledger     quota.Ledger
	trades     TradeServicer
	portfolios PortfolioServicer
	audit      AuditServicer
}

// NewAgentService creates a new AgentServicer.
func NewAgentService(db *gorm.DB, ledger quota.Ledger, trades TradeServicer, portfolios PortfolioServicer, audit AuditServicer) AgentServicer {
	return &agentService{
		db:         db,
		ledger:     ledger,
		trades:     trades,
		portfolios: portfolios,
		audit:      audit,
	}
}

// CreateAgent provisions a new agent: quota allocation in the usage
// ledger first, then agent and funded portfolio in one transaction. A
// persistence failure after allocation rolls the quota back so the
// ledger holds no orphans.
func (s *agentService) CreateAgent(input CreateAgentInput) (*models.Agent, error) {
	if err := validateCreateAgent(input); err != nil {
		return nil, err
	}

	agent := &models.Agent{
		Name:                strings.TrimSpace(input.Name),
		Status:              models.AgentStatusActive,
		RiskProfile:         input.RiskProfile,
		MonthlyBudget:       input.MonthlyBudget,
		RiskTolerance:       input.RiskProfile.Tolerance(),
		MaxDailyLoss:        int64(float64(input.MonthlyBudget) * dailyLossFraction),
		MaxConcentrationPct: concentrationPctCap,
	}
	agent.ID = uuid.New()
	agent.SetAllowedSymbols(input.AllowedSymbols)

	if input.MaxPositionSize != nil {
		agent.MaxPositionSize = *input.MaxPositionSize
	} else {
		agent.MaxPositionSize = int64(float64(input.MonthlyBudget) * positionSizeFraction)
	}

	quotaID, err := s.ledger.CreateQuota(agent.ID, input.MonthlyBudget, models.QuotaPeriodMonthly, models.OveragePolicyBlock)
	if err != nil {
		return nil, err
	}
	agent.QuotaID = quotaID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(agent).Error; txErr != nil {
			return txErr
		}
		portfolio := &models.Portfolio{
			AgentID:        agent.ID,
			CashBalance:    input.MonthlyBudget,
			InitialFunding: input.MonthlyBudget,
			LastTotalValue: input.MonthlyBudget,
			DailyBaseline:  input.MonthlyBudget,
		}
		if txErr := tx.Create(portfolio).Error; txErr != nil {
			return txErr
		}
		agent.Portfolio = *portfolio
		return nil
	})
	if err != nil {
		// Compensating rollback: the quota was allocated outside the
		// transaction and must not outlive the failed agent.
		if delErr := s.ledger.DeleteQuota(quotaID); delErr != nil {
			logger.Get().Errorw("failed to roll back quota after agent creation failure",
				"quota_id", quotaID, "error", delErr)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.audit.Log(agent.ID, "agent.created", "agent", agent.ID, map[string]any{
		"name":           agent.Name,
		"monthly_budget": agent.MonthlyBudget,
		"risk_profile":   agent.RiskProfile,
		"quota_id":       agent.QuotaID,
	})

	return agent, nil
}

// GetAgentByID returns an agent with its portfolio loaded.
func (s *agentService) GetAgentByID(agentID string) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.Preload("Portfolio.Positions").First(&agent, "id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &agent, nil
}

// TerminateAgent decommissions an agent: pending trades are canceled,
// positions optionally liquidated, the quota finalized, and the agent
// marked terminated. Termination is one-way and never fails partway
// once the agent is found active; individual liquidation failures are
// absorbed into the report.
func (s *agentService) TerminateAgent(agentID string, closePositions bool) (*TerminationReport, error) {
	agent, err := s.GetAgentByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent.Status != models.AgentStatusActive {
		return nil, apperrors.ErrAgentTerminated
	}

	report := &TerminationReport{AgentID: agent.ID}

	canceled, err := s.trades.CancelPending(agent.ID, "agent terminated")
	if err != nil {
		logger.Get().Errorw("failed to cancel pending trades during termination",
			"agent_id", agent.ID, "error", err)
	}
	report.TradesCanceled = canceled

	if closePositions {
		s.liquidate(agent, report)
	}

	usage, err := s.ledger.FinalizeQuota(agent.QuotaID)
	if err != nil {
		logger.Get().Errorw("failed to finalize quota during termination",
			"agent_id", agent.ID, "quota_id", agent.QuotaID, "error", err)
	}
	report.QuotaUsage = usage

	now := time.Now()
	if err := s.db.Model(&models.Agent{}).Where("id = ?", agent.ID).
		Update("status", models.AgentStatusTerminated).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	report.TerminatedAt = now

	if valuation, valErr := s.portfolios.Value(agent.ID, nil); valErr == nil {
		report.FinalCash = valuation.CashBalance
		report.FinalValue = valuation.TotalValue
		report.RealizedPnL = valuation.RealizedPnL
	} else {
		logger.Get().Errorw("failed to value portfolio during termination",
			"agent_id", agent.ID, "error", valErr)
	}

	s.audit.Log(agent.ID, "agent.terminated", "agent", agent.ID, map[string]any{
		"trades_canceled":  report.TradesCanceled,
		"positions_closed": report.PositionsClosed,
		"positions_failed": report.PositionsFailed,
		"final_value":      report.FinalValue,
		"realized_pnl":     report.RealizedPnL,
		"quota_usage":      report.QuotaUsage,
	})

	return report, nil
}

// liquidate sells every open position at market through the normal
// pipeline with the risk hard stop and oversight handoff bypassed.
// Failures leave the position open and are counted in the report.
func (s *agentService) liquidate(agent *models.Agent, report *TerminationReport) {
	portfolio, err := s.portfolios.GetPortfolio(agent.ID)
	if err != nil {
		logger.Get().Errorw("failed to load portfolio for liquidation",
			"agent_id", agent.ID, "error", err)
		return
	}

	for i := range portfolio.Positions {
		pos := &portfolio.Positions[i]
		_, sellErr := s.trades.SubmitTrade(agent.ID, models.TradeRequest{
			Symbol:    pos.Symbol,
			Side:      models.TradeSideSell,
			OrderType: models.OrderTypeMarket,
			Quantity:  pos.Quantity,
		}, true)
		if sellErr != nil {
			logger.Get().Errorw("failed to liquidate position during termination",
				"agent_id", agent.ID, "symbol", pos.Symbol, "quantity", pos.Quantity, "error", sellErr)
			report.PositionsFailed++
			continue
		}
		report.PositionsClosed++
	}
}

func validateCreateAgent(input CreateAgentInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Agent name is required")
	}
	if len(name) > maxAgentNameLength {
		return apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("Agent name must be at most %d characters", maxAgentNameLength))
	}
	if input.MonthlyBudget < MinMonthlyBudget || input.MonthlyBudget > MaxMonthlyBudget {
		return apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("Monthly budget must be between %d and %d cents", MinMonthlyBudget, MaxMonthlyBudget))
	}
	if !input.RiskProfile.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown risk profile")
	}
	if len(input.AllowedSymbols) == 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one allowed symbol is required")
	}
	for _, sym := range input.AllowedSymbols {
		if strings.TrimSpace(sym) == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Allowed symbols must be non-empty")
		}
	}
	if input.MaxPositionSize != nil && *input.MaxPositionSize <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Max position size must be positive")
	}
	return nil
}
