package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/models"
	"tradewarden/internal/services"
)

// TradeHandler handles trade submission and history requests.
type TradeHandler struct {
	tradeService services.TradeServicer
	auditService services.AuditServicer
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeService services.TradeServicer, auditService services.AuditServicer) *TradeHandler {
	return &TradeHandler{tradeService: tradeService, auditService: auditService}
}

// SubmitTradeRequest represents the request payload for submitting a trade.
// LimitPrice is int64 cents and required iff order_type is limit.
type SubmitTradeRequest struct {
	Symbol     string           `json:"symbol" binding:"required,ticker"`
	Side       models.TradeSide `json:"side" binding:"required,trade_side"`
	OrderType  models.OrderType `json:"order_type" binding:"required,order_type"`
	Quantity   int64            `json:"quantity" binding:"required,gt=0"`
	LimitPrice int64            `json:"limit_price,omitempty" binding:"omitempty,gt=0"`
}

// SubmitTrade handles running a trade request through the decision pipeline.
// A filled trade returns 200; a trade handed to oversight returns 202.
func (h *TradeHandler) SubmitTrade(c *gin.Context) {
	agentID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SubmitTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.tradeService.SubmitTrade(agentID, models.TradeRequest{
		Symbol:     req.Symbol,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	}, false)
	if err != nil {
		h.auditService.Log(agentID, "trade.rejected", "trade", "", map[string]any{
			"symbol": req.Symbol,
			"side":   req.Side,
			"error":  err.Error(),
		})
		respondWithError(c, err)
		return
	}

	h.auditService.Log(agentID, "trade.submitted", "trade", result.TradeID, map[string]any{
		"symbol": result.Symbol,
		"side":   result.Side,
		"status": result.Status,
	})

	if result.Status == models.TradeStatusPendingApproval {
		c.JSON(http.StatusAccepted, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTrades handles listing an agent's trade history.
func (h *TradeHandler) GetTrades(c *gin.Context) {
	agentID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := parsePageRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	trades, err := h.tradeService.GetAgentTrades(agentID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}
