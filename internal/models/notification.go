package models

import "time"

// Notification types.
const (
	NotificationAssignment   = "assignment"
	NotificationStatusChange = "status_change"
	NotificationComment      = "comment"
	NotificationApproval     = "approval"
	NotificationRejection    = "rejection"
	NotificationDueDate      = "due_date"
)

// Notification is a message addressed to one user about one action log.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ActionLogID uint      `gorm:"not null;index" json:"action_log_id"`
	CommentID   *uint     `json:"comment_id"`
	Type        string    `gorm:"size:32;not null" json:"type"`
	Message     string    `gorm:"type:text" json:"message"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
