package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradewarden/internal/services"
)

// PortfolioHandler handles portfolio and snapshot requests.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

// GetPortfolio handles retrieving an agent's raw portfolio state.
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	agentID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.portfolioService.GetPortfolio(agentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, portfolio)
}

// GetPortfolioValue handles computing a full mark-to-market valuation.
func (h *PortfolioHandler) GetPortfolioValue(c *gin.Context) {
	agentID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	valuation, err := h.portfolioService.Value(agentID, nil)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, valuation)
}

// GetSnapshots handles listing an agent's portfolio snapshot history.
func (h *PortfolioHandler) GetSnapshots(c *gin.Context) {
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

	snapshots, err := h.portfolioService.GetSnapshots(agentID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshots)
}
