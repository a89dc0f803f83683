package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/models"
	"tradewarden/internal/services"
)

// AgentHandler handles agent lifecycle requests.
type AgentHandler struct {
	agentService services.AgentServicer
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(agentService services.AgentServicer) *AgentHandler {
	return &AgentHandler{agentService: agentService}
}

// CreateAgentRequest represents the request payload for creating an agent.
// MonthlyBudget and MaxPositionSize are int64 cents.
type CreateAgentRequest struct {
	Name            string             `json:"name" binding:"required,min=1,max=100"`
	MonthlyBudget   int64              `json:"monthly_budget" binding:"required,gt=0"`
	RiskProfile     models.RiskProfile `json:"risk_profile" binding:"required,risk_profile"`
	AllowedSymbols  []string           `json:"allowed_symbols" binding:"required,min=1,dive,ticker"`
	MaxPositionSize *int64             `json:"max_position_size,omitempty" binding:"omitempty,gt=0"`
}

// CreateAgent handles provisioning a new trading agent.
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	agent, err := h.agentService.CreateAgent(services.CreateAgentInput{
		Name:            req.Name,
		MonthlyBudget:   req.MonthlyBudget,
		RiskProfile:     req.RiskProfile,
		AllowedSymbols:  req.AllowedSymbols,
		MaxPositionSize: req.MaxPositionSize,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, agent)
}

// GetAgent handles retrieving an agent with its portfolio.
func (h *AgentHandler) GetAgent(c *gin.Context) {
	agentID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	agent, err := h.agentService.GetAgentByID(agentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, agent)
}

// TerminateAgent handles decommissioning an agent. The close_positions
// query parameter controls whether open positions are liquidated.
func (h *AgentHandler) TerminateAgent(c *gin.Context) {
	agentID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	closePositions := c.DefaultQuery("close_positions", "true") != "false"

	report, err := h.agentService.TerminateAgent(agentID, closePositions)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
