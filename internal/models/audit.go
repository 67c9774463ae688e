package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded against an action log.
const (
	AuditActionCreate       = "create"
	AuditActionAssign       = "assign"
	AuditActionUpdateStatus = "update_status"
	AuditActionApprove      = "approve"
	AuditActionReject       = "reject"
	AuditActionComment      = "comment"
	AuditActionAttach       = "attach"
)

// AuditEntry captures a state change on an action log. It is written in the same
// transaction as the change it describes.
type AuditEntry struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ActionLogID uint              `gorm:"not null;index" json:"action_log_id"`
	ActorID     uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole   string            `gorm:"size:50;not null" json:"actor_role"`
	Action      string            `gorm:"size:64;not null;index" json:"action"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}
