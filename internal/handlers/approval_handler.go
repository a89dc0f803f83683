package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/oversight"
	"tradewarden/internal/services"
)

// ApprovalHandler handles oversight callbacks and approval history.
type ApprovalHandler struct {
	approvalService services.ApprovalServicer
	auditService    services.AuditServicer
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(approvalService services.ApprovalServicer, auditService services.AuditServicer) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, auditService: auditService}
}

// OversightCallbackRequest represents the resolution delivered by the
// external oversight service.
type OversightCallbackRequest struct {
	TradeID  string             `json:"trade_id" binding:"required,uuid"`
	Decision oversight.Decision `json:"decision" binding:"required,oversight_decision"`
	Reason   string             `json:"reason" binding:"max=500"`
}

// OversightCallback handles an asynchronous approve/reject decision. An
// approval resumes execution inline, so the response carries the final
// trade result.
func (h *ApprovalHandler) OversightCallback(c *gin.Context) {
	var req OversightCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.approvalService.Resolve(req.TradeID, req.Decision, req.Reason)
	if err != nil {
		h.auditService.Log("", "approval.resolution_failed", "trade", req.TradeID, map[string]any{
			"decision": req.Decision,
			"error":    err.Error(),
		})
		respondWithError(c, err)
		return
	}

	h.auditService.Log(result.AgentID, "approval.resolved", "trade", req.TradeID, map[string]any{
		"decision": req.Decision,
		"status":   result.Status,
	})

	c.JSON(http.StatusOK, result)
}

// GetApprovals handles listing an agent's approval request history.
func (h *ApprovalHandler) GetApprovals(c *gin.Context) {
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

	approvals, err := h.approvalService.GetAgentApprovals(agentID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, approvals)
}
