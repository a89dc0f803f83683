package models

// AuditLog records sensitive agent operations for compliance review.
type AuditLog struct {
	Base
	AgentID      string `gorm:"index" json:"agent_id"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Details      string `json:"details,omitempty"`
}
