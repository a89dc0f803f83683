package models

import "time"

// ApprovalStatus is the state of a human-approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// ApprovalRequest is a durable record of a trade awaiting human oversight.
// Keyed by trade id so a process restart does not lose pending trades;
// resolved exactly once, by callback or by expiry.
type ApprovalRequest struct {
	Base
	AgentID string `gorm:"type:uuid;not null;index" json:"agent_id"`
	TradeID string `gorm:"type:uuid;not null;uniqueIndex" json:"trade_id"`

	// ExternalID is the id assigned by the oversight service, distinct
	// from our own request id.
	ExternalID string `json:"external_id"`

	Severity string         `gorm:"not null" json:"severity"`
	Status   ApprovalStatus `gorm:"not null;default:'pending'" json:"status"`

	// Embedded risk context from the assessment that triggered oversight.
	RiskScore      int    `json:"risk_score"`
	RiskLevel      string `json:"risk_level"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`

	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}
