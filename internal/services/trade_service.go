package services

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/execution"
	"tradewarden/internal/logger"
	"tradewarden/internal/market"
	"tradewarden/internal/models"
	"tradewarden/internal/notify"
	"tradewarden/internal/pagination"
	"tradewarden/internal/quota"
	"tradewarden/internal/risk"

	"gorm.io/gorm"
)

const (
	// riskHardStop rejects any trade scoring above it, regardless of value.
	riskHardStop = 80

	// approvalPriceDriftPct bounds how far the market may move between
	// validation and approval before an approved trade is stale.
	approvalPriceDriftPct = 0.10
)

// agentLocks serializes trade processing per agent. Concurrent trades for
// the same agent must not interleave their read-modify-write of cash and
// position state. A fixed stripe set keeps memory constant across agent
// churn; two agents hashing to the same stripe serialize against each
// other, which over-serializes but never under-serializes.
type agentLocks struct {
	stripes [64]sync.Mutex
}

func newAgentLocks() *agentLocks {
	return &agentLocks{}
}

func (l *agentLocks) get(agentID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}

// tradeService is the trade pipeline orchestrator: validation, risk
// scoring, budget gating, oversight handoff, execution, and settlement.
type tradeService struct {
	db         *gorm.DB
	market     market.Provider
	exec       *execution.Adapter
	budget     BudgetGater
	ledger     quota.Ledger
	portfolios PortfolioServicer
	approvals  ApprovalServicer
	notifier   notify.Notifier
	riskCfg    risk.Config
	locks      *agentLocks
}

// NewTradeService creates a new TradeServicer.
func NewTradeService(
	db *gorm.DB,
	provider market.Provider,
	exec *execution.Adapter,
	budget BudgetGater,
	ledger quota.Ledger,
	portfolios PortfolioServicer,
	approvals ApprovalServicer,
	notifier notify.Notifier,
	riskCfg risk.Config,
) TradeServicer {
	return &tradeService{
		db:         db,
		market:     provider,
		exec:       exec,
		budget:     budget,
		ledger:     ledger,
		portfolios: portfolios,
		approvals:  approvals,
		notifier:   notifier,
		riskCfg:    riskCfg,
		locks:      newAgentLocks(),
	}
}

// SubmitTrade runs the full decision pipeline for one trade request.
// Rejections before execution leave all state untouched; only a confirmed
// fill mutates the portfolio.
func (s *tradeService) SubmitTrade(agentID string, req models.TradeRequest, bypass bool) (*TradeResult, error) {
	lock := s.locks.get(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, currentPrice, err := s.validate(agentID, req)
	if err != nil {
		return nil, err
	}

	estimatedValue := req.Quantity * currentPrice

	if _, err := s.budget.Check(agent, req.Side, estimatedValue); err != nil {
		return nil, err
	}

	assessment, err := s.assess(agent, req, estimatedValue)
	if err != nil {
		return nil, err
	}

	if assessment.Score > riskHardStop && !bypass {
		return nil, apperrors.WithMessage(apperrors.ErrRiskRejected,
			fmt.Sprintf("Trade rejected: risk score %d exceeds hard limit %d (%s)",
				assessment.Score, riskHardStop, assessment.Recommendation))
	}

	// Only trade value binds the oversight handoff. The assessment's
	// oversight flag also considers the score, but that signal is
	// informational: a high-scoring trade below the value threshold
	// executes directly (the hard stop above already caught the worst).
	if estimatedValue > s.riskCfg.OversightValueThreshold && !bypass {
		trade := s.newTrade(agent, req, currentPrice, assessment.Score, models.TradeStatusPendingApproval)
		if _, err := s.approvals.Submit(agent, trade, assessment); err != nil {
			return nil, err
		}
		return &TradeResult{
			TradeID:   trade.ID,
			AgentID:   agent.ID,
			Status:    models.TradeStatusPendingApproval,
			Symbol:    trade.Symbol,
			Side:      trade.Side,
			RiskScore: assessment.Score,
		}, nil
	}

	trade := s.newTrade(agent, req, currentPrice, assessment.Score, models.TradeStatusFilled)
	return s.execute(agent, trade, false)
}

// ExecuteApproved resumes an approved pending trade at the execution step.
// The market is re-quoted: an approval arriving hours later executes at
// the then-current price, and is rejected as stale when the market has
// drifted too far from the validation-time quote or the trade no longer
// fits the portfolio.
func (s *tradeService) ExecuteApproved(trade *models.Trade) (*TradeResult, error) {
	lock := s.locks.get(trade.AgentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := s.loadAgent(trade.AgentID)
	if err != nil {
		return nil, err
	}

	if err := s.checkStale(agent, trade); err != nil {
		s.markTerminal(trade, models.TradeStatusRejected, err.Error())
		s.notifier.Send(notify.Notification{
			AgentID:  agent.ID,
			Severity: "warning",
			Title:    "Approved trade rejected as stale",
			Body:     fmt.Sprintf("%s %d %s: %v", trade.Side, trade.Quantity, trade.Symbol, err),
		})
		return nil, err
	}

	return s.execute(agent, trade, true)
}

// CancelPending cancels every pending_approval trade for the agent and
// marks the matching approval requests rejected.
func (s *tradeService) CancelPending(agentID, reason string) (int, error) {
	lock := s.locks.get(agentID)
	lock.Lock()
	defer lock.Unlock()

	var pending []models.Trade
	if err := s.db.Where("agent_id = ? AND status = ?", agentID, models.TradeStatusPendingApproval).
		Find(&pending).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := time.Now()
	for i := range pending {
		trade := &pending[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if txErr := tx.Model(trade).Updates(map[string]interface{}{
				"status": models.TradeStatusCanceled,
				"reason": reason,
			}).Error; txErr != nil {
				return txErr
			}
			return tx.Model(&models.ApprovalRequest{}).
				Where("trade_id = ? AND status = ?", trade.ID, models.ApprovalStatusPending).
				Updates(map[string]interface{}{
					"status":      models.ApprovalStatusRejected,
					"reason":      reason,
					"resolved_at": now,
				}).Error
		})
		if err != nil {
			return i, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return len(pending), nil
}

// GetAgentTrades returns a paginated trade history for an agent.
func (s *tradeService) GetAgentTrades(agentID string, page pagination.PageRequest) (*pagination.PageResponse[models.Trade], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Trade{}).Where("agent_id = ?", agentID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var trades []models.Trade
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&trades).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(trades, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// validate runs every hard gate that precedes scoring and resolves the
// current market price. No state is written on any failure path.
func (s *tradeService) validate(agentID string, req models.TradeRequest) (*models.Agent, int64, error) {
	agent, err := s.loadAgent(agentID)
	if err != nil {
		return nil, 0, err
	}
	if agent.Status != models.AgentStatusActive {
		return nil, 0, apperrors.ErrAgentTerminated
	}

	if !req.Side.Valid() {
		return nil, 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown trade side")
	}
	if !req.OrderType.Valid() {
		return nil, 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown order type")
	}
	if req.Quantity <= 0 || req.Quantity > models.MaxTradeQuantity {
		return nil, 0, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("Quantity must be between 1 and %d", models.MaxTradeQuantity))
	}
	if req.OrderType == models.OrderTypeLimit && req.LimitPrice <= 0 {
		return nil, 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Limit orders require a positive limit price")
	}
	if req.OrderType == models.OrderTypeMarket && req.LimitPrice != 0 {
		return nil, 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Market orders must not carry a limit price")
	}

	if !agent.SymbolAllowed(req.Symbol) {
		return nil, 0, apperrors.WithMessage(apperrors.ErrSymbolNotAllowed,
			fmt.Sprintf("Symbol %s is not in the agent's allowed universe", req.Symbol))
	}
	if !s.market.IsValidSymbol(req.Symbol) {
		return nil, 0, apperrors.WithMessage(apperrors.ErrUnknownSymbol,
			fmt.Sprintf("Symbol %s is not recognized", req.Symbol))
	}

	currentPrice, err := s.market.GetCurrentPrice(req.Symbol)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrExternalService, err)
	}

	portfolio, err := s.portfolios.GetPortfolio(agentID)
	if err != nil {
		return nil, 0, err
	}

	estimatedValue := req.Quantity * currentPrice
	switch req.Side {
	case models.TradeSideSell:
		pos := findPosition(portfolio.Positions, req.Symbol)
		if pos == nil || pos.Quantity < req.Quantity {
			held := int64(0)
			if pos != nil {
				held = pos.Quantity
			}
			return nil, 0, apperrors.WithMessage(apperrors.ErrInsufficientPosition,
				fmt.Sprintf("Cannot sell %d %s: holding %d", req.Quantity, req.Symbol, held))
		}
	case models.TradeSideBuy:
		if portfolio.CashBalance < estimatedValue {
			return nil, 0, apperrors.WithMessage(apperrors.ErrInsufficientCash,
				fmt.Sprintf("Buy of %d exceeds available cash %d", estimatedValue, portfolio.CashBalance))
		}
	}

	return agent, currentPrice, nil
}

// assess assembles the risk engine input from market and portfolio state.
func (s *tradeService) assess(agent *models.Agent, req models.TradeRequest, estimatedValue int64) (risk.Assessment, error) {
	valuation, err := s.portfolios.Value(agent.ID, nil)
	if err != nil {
		return risk.Assessment{}, err
	}

	sector := s.market.GetSector(req.Symbol)
	var symbolValue, sectorValue int64
	for _, pv := range valuation.Positions {
		if pv.Symbol == req.Symbol {
			symbolValue = pv.MarketValue
		}
		if s.market.GetSector(pv.Symbol) == sector {
			sectorValue += pv.MarketValue
		}
	}

	in := risk.Input{
		TradeValue:          estimatedValue,
		PortfolioValue:      valuation.TotalValue,
		ExistingSymbolValue: symbolValue,
		SectorValue:         sectorValue,
		Volatility:          s.market.GetHistoricalVolatility(req.Symbol, s.riskCfg.VolatilityLookbackDays),
		AvgDailyValue:       s.market.GetAverageDailyValue(req.Symbol),
	}
	return risk.Evaluate(in, s.riskCfg), nil
}

// execute places the order and settles the fill. persisted marks whether
// the trade row already exists (the approved-resumption path).
func (s *tradeService) execute(agent *models.Agent, trade *models.Trade, persisted bool) (*TradeResult, error) {
	fill, err := s.exec.Execute(execution.Order{
		Symbol:     trade.Symbol,
		Side:       trade.Side,
		OrderType:  trade.OrderType,
		Quantity:   trade.Quantity,
		LimitPrice: trade.LimitPrice,
	})
	if err != nil {
		mapped := mapExecutionError(err)
		if persisted {
			s.markTerminal(trade, models.TradeStatusCanceled, mapped.Message)
		}
		return nil, mapped
	}

	now := time.Now()
	trade.Status = models.TradeStatusFilled
	trade.FillPrice = fill.Price
	trade.FillQuantity = fill.Quantity
	trade.FillValue = fill.Value
	trade.Attempts = fill.Attempts
	trade.ExecutedAt = &now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if persisted {
			if txErr := tx.Model(&models.Trade{}).Where("id = ?", trade.ID).Updates(map[string]interface{}{
				"status":        trade.Status,
				"fill_price":    trade.FillPrice,
				"fill_quantity": trade.FillQuantity,
				"fill_value":    trade.FillValue,
				"attempts":      trade.Attempts,
				"executed_at":   now,
			}).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		} else {
			if txErr := tx.Create(trade).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		}
		return s.portfolios.ApplyFill(tx, agent, trade.Side, trade.Symbol, fill.Price, fill.Quantity)
	})
	if err != nil {
		return nil, err
	}

	// Usage recording is best-effort and ordered after settlement; the
	// external ledger is the system of record and a recording failure
	// must not unwind a confirmed fill.
	if trade.Side == models.TradeSideBuy {
		if recErr := s.ledger.RecordUsage(agent.QuotaID, agent.ID, fill.Value, map[string]any{
			"trade_id": trade.ID,
			"symbol":   trade.Symbol,
		}); recErr != nil {
			logger.Get().Errorw("failed to record quota usage for filled trade",
				"agent_id", agent.ID, "trade_id", trade.ID, "error", recErr)
		}
	}

	s.notifier.Broadcast("portfolio", "portfolio.updated", map[string]any{
		"agent_id":   agent.ID,
		"trade_id":   trade.ID,
		"symbol":     trade.Symbol,
		"side":       trade.Side,
		"fill_value": fill.Value,
	})

	return &TradeResult{
		TradeID:      trade.ID,
		AgentID:      agent.ID,
		Status:       models.TradeStatusFilled,
		Symbol:       trade.Symbol,
		Side:         trade.Side,
		FillPrice:    fill.Price,
		FillQuantity: fill.Quantity,
		FillValue:    fill.Value,
		RiskScore:    trade.RiskScore,
		ExecutedAt:   &now,
	}, nil
}

// checkStale re-validates an approved trade against current conditions.
func (s *tradeService) checkStale(agent *models.Agent, trade *models.Trade) error {
	if agent.Status != models.AgentStatusActive {
		return apperrors.WithMessage(apperrors.ErrApprovalStale, "Agent is no longer active")
	}

	current, err := s.market.GetCurrentPrice(trade.Symbol)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrExternalService, err)
	}

	if trade.QuotedPrice > 0 {
		drift := float64(current-trade.QuotedPrice) / float64(trade.QuotedPrice)
		if drift < 0 {
			drift = -drift
		}
		if drift > approvalPriceDriftPct {
			return apperrors.WithMessage(apperrors.ErrApprovalStale,
				fmt.Sprintf("Market moved %.1f%% since validation (quoted %d, now %d)",
					drift*100, trade.QuotedPrice, current))
		}
	}

	portfolio, err := s.portfolios.GetPortfolio(agent.ID)
	if err != nil {
		return err
	}

	switch trade.Side {
	case models.TradeSideSell:
		pos := findPosition(portfolio.Positions, trade.Symbol)
		if pos == nil || pos.Quantity < trade.Quantity {
			return apperrors.WithMessage(apperrors.ErrApprovalStale, "Position no longer supports the approved sale")
		}
	case models.TradeSideBuy:
		if portfolio.CashBalance < trade.Quantity*current {
			return apperrors.WithMessage(apperrors.ErrApprovalStale, "Cash no longer covers the approved purchase")
		}
	}

	return nil
}

func (s *tradeService) newTrade(agent *models.Agent, req models.TradeRequest, quotedPrice int64, score int, status models.TradeStatus) *models.Trade {
	return &models.Trade{
		AgentID:     agent.ID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		OrderType:   req.OrderType,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		QuotedPrice: quotedPrice,
		Status:      status,
		RiskScore:   score,
	}
}

func (s *tradeService) loadAgent(agentID string) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.First(&agent, "id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &agent, nil
}

// markTerminal best-effort marks a persisted trade terminal with a reason.
func (s *tradeService) markTerminal(trade *models.Trade, status models.TradeStatus, reason string) {
	if err := s.db.Model(&models.Trade{}).Where("id = ?", trade.ID).Updates(map[string]interface{}{
		"status": status,
		"reason": reason,
	}).Error; err != nil {
		logger.Get().Errorw("failed to mark trade terminal",
			"trade_id", trade.ID, "status", status, "error", err)
	}
	trade.Status = status
	trade.Reason = reason
}

// mapExecutionError converts adapter errors into surfaced AppErrors.
func mapExecutionError(err error) *apperrors.AppError {
	if errors.Is(err, execution.ErrNotFillable) {
		return apperrors.WithMessage(apperrors.ErrExecutionFailed, "Limit order is not fillable at the current price")
	}
	var failed *execution.FailedError
	if errors.As(err, &failed) {
		return apperrors.Wrap(
			apperrors.WithMessage(apperrors.ErrExecutionFailed,
				fmt.Sprintf("Order execution failed after %d attempts", failed.Attempts)),
			err)
	}
	return apperrors.Wrap(apperrors.ErrExecutionFailed, err)
}
