package services

import (
	"errors"
	"fmt"
	"time"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/logger"
	"tradewarden/internal/market"
	"tradewarden/internal/models"
	"tradewarden/internal/pagination"

	"gorm.io/gorm"
)

// portfolioService owns portfolio state: it is the only component that
// mutates cash and positions, always inside a transaction.
type portfolioService struct {
	db     *gorm.DB
	market market.Provider
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB, provider market.Provider) PortfolioServicer {
	return &portfolioService{db: db, market: provider}
}

// GetPortfolio returns the agent's portfolio with positions loaded.
func (s *portfolioService) GetPortfolio(agentID string) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := s.db.Preload("Positions").First(&portfolio, "agent_id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &portfolio, nil
}

// ApplyFill applies a confirmed fill to the agent's portfolio inside tx.
// Buys debit cash and blend the position's cost basis; sells credit cash,
// realize P&L against the blended basis, and remove positions that reach
// zero. The cash and quantity invariants are enforced here as a final
// guard; a violation rolls the whole transaction back.
func (s *portfolioService) ApplyFill(tx *gorm.DB, agent *models.Agent, side models.TradeSide, symbol string, fillPrice, fillQuantity int64) error {
	var portfolio models.Portfolio
	if err := tx.Preload("Positions").First(&portfolio, "agent_id = ?", agent.ID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	fillValue := fillPrice * fillQuantity
	now := time.Now()

	switch side {
	case models.TradeSideBuy:
		if portfolio.CashBalance < fillValue {
			return apperrors.WithMessage(apperrors.ErrInvariantViolation,
				fmt.Sprintf("buy of %d would drive cash negative (cash %d)", fillValue, portfolio.CashBalance))
		}
		portfolio.CashBalance -= fillValue

		pos := findPosition(portfolio.Positions, symbol)
		if pos == nil {
			created := models.Position{
				PortfolioID:  portfolio.ID,
				Symbol:       symbol,
				Quantity:     fillQuantity,
				AvgCostBasis: fillPrice,
				OpenedAt:     now,
			}
			if err := tx.Create(&created).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			portfolio.Positions = append(portfolio.Positions, created)
		} else {
			// Quantity-weighted blend of prior basis and new fill cost.
			newQuantity := pos.Quantity + fillQuantity
			newBasis := (pos.Quantity*pos.AvgCostBasis + fillValue) / newQuantity
			if err := tx.Model(pos).Updates(map[string]interface{}{
				"quantity":       newQuantity,
				"avg_cost_basis": newBasis,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			pos.Quantity = newQuantity
			pos.AvgCostBasis = newBasis
		}

	case models.TradeSideSell:
		pos := findPosition(portfolio.Positions, symbol)
		if pos == nil || pos.Quantity < fillQuantity {
			// Validation already checked sufficiency; reaching this point
			// means the pipeline invariant was violated upstream.
			return apperrors.WithMessage(apperrors.ErrInvariantViolation,
				fmt.Sprintf("sell of %d %s against missing or short position", fillQuantity, symbol))
		}

		portfolio.CashBalance += fillValue
		portfolio.RealizedPnL += fillValue - fillQuantity*pos.AvgCostBasis

		remaining := pos.Quantity - fillQuantity
		if remaining == 0 {
			// Hard delete: a zero position is removed, never retained,
			// and the (portfolio, symbol) slot must be reusable.
			if err := tx.Unscoped().Delete(pos).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			portfolio.Positions = removePosition(portfolio.Positions, symbol)
		} else {
			if err := tx.Model(pos).Update("quantity", remaining).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			pos.Quantity = remaining
		}

	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown trade side")
	}

	// Revalue the portfolio and roll the daily baseline on day change.
	positionsValue := s.positionsValue(portfolio.Positions, nil)
	total := portfolio.CashBalance + positionsValue

	if portfolio.UpdatedAt.YearDay() != now.YearDay() || portfolio.UpdatedAt.Year() != now.Year() {
		portfolio.DailyBaseline = portfolio.LastTotalValue
	}
	portfolio.LastTotalValue = total

	if err := tx.Model(&models.Portfolio{}).Where("id = ?", portfolio.ID).Updates(map[string]interface{}{
		"cash_balance":     portfolio.CashBalance,
		"realized_pnl":     portfolio.RealizedPnL,
		"last_total_value": portfolio.LastTotalValue,
		"daily_baseline":   portfolio.DailyBaseline,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Snapshots are append-only and ordered after the mutation they describe.
	snapshot := &models.PortfolioSnapshot{
		AgentID:        agent.ID,
		RecordedAt:     now,
		TotalValue:     total,
		CashBalance:    portfolio.CashBalance,
		PositionsValue: positionsValue,
		PositionCount:  len(portfolio.Positions),
	}
	if err := tx.Create(snapshot).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return nil
}

// Value computes a full valuation of the agent's portfolio.
func (s *portfolioService) Value(agentID string, priceOverrides map[string]int64) (*PortfolioValuation, error) {
	var agent models.Agent
	if err := s.db.Preload("Portfolio.Positions").First(&agent, "id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	portfolio := agent.Portfolio
	valuation := &PortfolioValuation{
		CashBalance: portfolio.CashBalance,
		RealizedPnL: portfolio.RealizedPnL,
		Positions:   []PositionValuation{},
	}

	if len(portfolio.Positions) == 0 {
		valuation.TotalValue = portfolio.CashBalance
		// With nothing held, realized P&L is the whole P&L: a fully
		// liquidated book must not report zero total while realized is not.
		valuation.TotalPnL = valuation.RealizedPnL
		valuation.DailyPnL = valuation.TotalValue - portfolio.DailyBaseline
		if portfolio.InitialFunding > 0 {
			valuation.PercentReturn = float64(valuation.TotalValue-portfolio.InitialFunding) / float64(portfolio.InitialFunding) * 100
		}
		return valuation, nil
	}

	prices := priceOverrides
	if prices == nil {
		symbols := make([]string, 0, len(portfolio.Positions))
		for i := range portfolio.Positions {
			symbols = append(symbols, portfolio.Positions[i].Symbol)
		}
		prices = s.market.GetCurrentPrices(symbols)
	}

	for i := range portfolio.Positions {
		pos := &portfolio.Positions[i]
		price, ok := prices[pos.Symbol]
		if !ok || price <= 0 {
			logger.Get().Warnw("no current price for position, falling back to cost basis",
				"agent_id", agentID, "symbol", pos.Symbol)
			price = pos.AvgCostBasis
		}

		marketValue := pos.Quantity * price
		costValue := pos.Quantity * pos.AvgCostBasis
		pv := PositionValuation{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgCostBasis:  pos.AvgCostBasis,
			CurrentPrice:  price,
			MarketValue:   marketValue,
			CostValue:     costValue,
			UnrealizedPnL: marketValue - costValue,
		}
		if costValue > 0 {
			pv.PercentChange = float64(marketValue-costValue) / float64(costValue) * 100
		}

		valuation.Positions = append(valuation.Positions, pv)
		valuation.PositionsValue += marketValue
		valuation.UnrealizedPnL += pv.UnrealizedPnL
	}

	valuation.TotalValue = valuation.CashBalance + valuation.PositionsValue
	valuation.DailyPnL = valuation.TotalValue - portfolio.DailyBaseline
	valuation.TotalPnL = valuation.RealizedPnL + valuation.UnrealizedPnL
	if portfolio.InitialFunding > 0 {
		valuation.PercentReturn = float64(valuation.TotalValue-portfolio.InitialFunding) / float64(portfolio.InitialFunding) * 100
	}

	return valuation, nil
}

// GetSnapshots returns paginated snapshot history for an agent.
func (s *portfolioService) GetSnapshots(agentID string, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioSnapshot], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.PortfolioSnapshot{}).Where("agent_id = ?", agentID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.PortfolioSnapshot
	if err := base.Order("recorded_at DESC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// positionsValue sums the market value of positions, falling back to each
// position's own cost basis when no price is available.
func (s *portfolioService) positionsValue(positions []models.Position, prices map[string]int64) int64 {
	if prices == nil {
		symbols := make([]string, 0, len(positions))
		for i := range positions {
			symbols = append(symbols, positions[i].Symbol)
		}
		prices = s.market.GetCurrentPrices(symbols)
	}

	var total int64
	for i := range positions {
		pos := &positions[i]
		price, ok := prices[pos.Symbol]
		if !ok || price <= 0 {
			price = pos.AvgCostBasis
		}
		total += pos.Quantity * price
	}
	return total
}

func findPosition(positions []models.Position, symbol string) *models.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}

func removePosition(positions []models.Position, symbol string) []models.Position {
	out := positions[:0]
	for i := range positions {
		if positions[i].Symbol != symbol {
			out = append(out, positions[i])
		}
	}
	return out
}
