package services

import (
	"errors"
	"fmt"
	"time"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/logger"
	"tradewarden/internal/models"
	"tradewarden/internal/notify"
	"tradewarden/internal/oversight"
	"tradewarden/internal/pagination"
	"tradewarden/internal/risk"
	"tradewarden/internal/uuid"

	"gorm.io/gorm"
)

// approvalService orchestrates the human-oversight lifecycle: submission
// to the external service, durable pending state, and exactly-once
// resolution by callback or expiry.
type approvalService struct {
	db       *gorm.DB
	client   oversight.Client
	notifier notify.Notifier
	timeout  time.Duration
	executor ApprovedTradeExecutor
}

// NewApprovalService creates a new ApprovalServicer. The executor is wired
// afterwards via SetExecutor.
func NewApprovalService(db *gorm.DB, client oversight.Client, notifier notify.Notifier, timeout time.Duration) ApprovalServicer {
	return &approvalService{
		db:       db,
		client:   client,
		notifier: notifier,
		timeout:  timeout,
	}
}

// SetExecutor wires the trade pipeline after construction.
func (s *approvalService) SetExecutor(executor ApprovedTradeExecutor) {
	s.executor = executor
}

// Submit registers the trade with the external oversight service and, only
// once that succeeds, durably persists the pending trade alongside its
// approval request. Ordering matters: if submission fails nothing is
// persisted and the caller surfaces the error with no trade on record.
func (s *approvalService) Submit(agent *models.Agent, trade *models.Trade, assessment risk.Assessment) (*models.ApprovalRequest, error) {
	if trade.ID == "" {
		trade.ID = uuid.New()
	}

	title := fmt.Sprintf("Trade approval: %s %d %s ($%.2f)",
		trade.Side, trade.Quantity, trade.Symbol,
		float64(trade.Quantity*trade.QuotedPrice)/100)
	description := describeAssessment(trade, assessment)
	severity := severityForLevel(assessment.Level)
	expiresAt := time.Now().Add(s.timeout)

	externalID, err := s.client.SubmitRequest(oversight.SubmitInput{
		RequestID:   trade.ID,
		Severity:    severity,
		Title:       title,
		Description: description,
		Payload: map[string]any{
			"agent_id":     agent.ID,
			"trade_id":     trade.ID,
			"symbol":       trade.Symbol,
			"side":         trade.Side,
			"quantity":     trade.Quantity,
			"quoted_price": trade.QuotedPrice,
			"risk_score":   assessment.Score,
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, apperrors.Wrap(
			apperrors.WithMessage(apperrors.ErrExternalService, "Oversight submission failed; trade not accepted"),
			err)
	}

	request := &models.ApprovalRequest{
		AgentID:        agent.ID,
		TradeID:        trade.ID,
		ExternalID:     externalID,
		Severity:       severity,
		Status:         models.ApprovalStatusPending,
		RiskScore:      assessment.Score,
		RiskLevel:      string(assessment.Level),
		Title:          title,
		Description:    description,
		Recommendation: assessment.Recommendation,
		ExpiresAt:      expiresAt,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(trade).Error; txErr != nil {
			return txErr
		}
		return tx.Create(request).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notifier.Send(notify.Notification{
		AgentID:  agent.ID,
		Severity: severity,
		Title:    "Trade pending human approval",
		Body:     fmt.Sprintf("%s (expires %s)", title, expiresAt.Format(time.RFC3339)),
	})

	return request, nil
}

// Resolve applies an oversight decision to a pending trade. Requests
// resolve exactly once; a decision arriving after the deadline expires
// the request instead of honoring it.
func (s *approvalService) Resolve(tradeID string, decision oversight.Decision, reason string) (*TradeResult, error) {
	if !decision.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown oversight decision")
	}

	var request models.ApprovalRequest
	if err := s.db.First(&request, "trade_id = ?", tradeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrApprovalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if request.Status != models.ApprovalStatusPending {
		return nil, apperrors.WithMessage(apperrors.ErrApprovalAlreadyResolved,
			fmt.Sprintf("Approval request already %s", request.Status))
	}

	now := time.Now()
	if now.After(request.ExpiresAt) {
		if err := s.expire(&request, now); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrApprovalExpired
	}

	var trade models.Trade
	if err := s.db.First(&trade, "id = ?", tradeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTradeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if decision == oversight.DecisionRejected {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if txErr := s.transitionRequest(tx, request.ID, models.ApprovalStatusRejected, reason, now); txErr != nil {
				return txErr
			}
			if txErr := tx.Model(&trade).Updates(map[string]interface{}{
				"status": models.TradeStatusRejected,
				"reason": reason,
			}).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.notifier.Send(notify.Notification{
			AgentID:  request.AgentID,
			Severity: "info",
			Title:    "Trade rejected by oversight",
			Body:     fmt.Sprintf("%s: %s", request.Title, reason),
		})
		return &TradeResult{
			TradeID:   trade.ID,
			AgentID:   trade.AgentID,
			Status:    models.TradeStatusRejected,
			Symbol:    trade.Symbol,
			Side:      trade.Side,
			RiskScore: trade.RiskScore,
		}, nil
	}

	if err := s.transitionRequest(s.db, request.ID, models.ApprovalStatusApproved, reason, now); err != nil {
		return nil, err
	}

	s.notifier.Send(notify.Notification{
		AgentID:  request.AgentID,
		Severity: "info",
		Title:    "Trade approved by oversight",
		Body:     request.Title,
	})

	return s.executor.ExecuteApproved(&trade)
}

// ExpireStale expires every pending request past its deadline and cancels
// the underlying trades. Called periodically by the background sweeper;
// resolution callbacks also expire lazily so the sweep is a backstop, not
// a correctness requirement.
func (s *approvalService) ExpireStale(now time.Time) (int, error) {
	var stale []models.ApprovalRequest
	if err := s.db.Where("status = ? AND expires_at < ?", models.ApprovalStatusPending, now).
		Find(&stale).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	expired := 0
	for i := range stale {
		if err := s.expire(&stale[i], now); err != nil {
			logger.Get().Errorw("failed to expire approval request",
				"request_id", stale[i].ID, "trade_id", stale[i].TradeID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// GetAgentApprovals returns paginated approval history for an agent.
func (s *approvalService) GetAgentApprovals(agentID string, page pagination.PageRequest) (*pagination.PageResponse[models.ApprovalRequest], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.ApprovalRequest{}).Where("agent_id = ?", agentID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var requests []models.ApprovalRequest
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&requests).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(requests, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// transitionRequest moves a request out of pending with a conditional
// write. Concurrent resolvers race to this update; exactly one affects a
// row, every other caller gets APPROVAL_ALREADY_RESOLVED. All resolution
// paths (callback, expiry, sweep) must go through here.
func (s *approvalService) transitionRequest(tx *gorm.DB, requestID string, to models.ApprovalStatus, reason string, resolvedAt time.Time) error {
	res := tx.Model(&models.ApprovalRequest{}).
		Where("id = ? AND status = ?", requestID, models.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":      to,
			"reason":      reason,
			"resolved_at": resolvedAt,
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.WithMessage(apperrors.ErrApprovalAlreadyResolved,
			"Approval request was resolved by a concurrent caller")
	}
	return nil
}

// expire marks one pending request expired and cancels its trade.
func (s *approvalService) expire(request *models.ApprovalRequest, now time.Time) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := s.transitionRequest(tx, request.ID, models.ApprovalStatusExpired, "approval window elapsed", now); txErr != nil {
			return txErr
		}
		if txErr := tx.Model(&models.Trade{}).Where("id = ?", request.TradeID).Updates(map[string]interface{}{
			"status": models.TradeStatusCanceled,
			"reason": "approval window elapsed",
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Send(notify.Notification{
		AgentID:  request.AgentID,
		Severity: "warning",
		Title:    "Trade approval expired",
		Body:     request.Title,
	})
	return nil
}

// describeAssessment renders the risk assessment for a human reviewer.
func describeAssessment(trade *models.Trade, assessment risk.Assessment) string {
	desc := fmt.Sprintf("Agent requests %s of %d %s at quoted price %d cents. Risk score %d (%s).",
		trade.Side, trade.Quantity, trade.Symbol, trade.QuotedPrice, assessment.Score, assessment.Level)
	for _, f := range assessment.Factors {
		desc += fmt.Sprintf(" [%s: %s]", f.Name, f.Message)
	}
	return desc
}

func severityForLevel(level risk.Level) string {
	switch level {
	case risk.LevelCritical:
		return "critical"
	case risk.LevelHigh:
		return "high"
	case risk.LevelMedium:
		return "medium"
	}
	return "low"
}
