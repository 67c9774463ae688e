package models

import "time"

// Comment belongs to the thread of a single action log. Replies reference their parent.
type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ActionLogID     uint      `gorm:"not null;index" json:"action_log_id"`
	AuthorID        uint      `gorm:"not null;index" json:"author_id"`
	Author          User      `json:"author"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment_id"`
	Body            string    `gorm:"type:text;not null" json:"comment"`
	Status          string    `gorm:"size:20" json:"status"`
	IsApproved      bool      `gorm:"not null;default:false" json:"is_approved"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SnapshotFrom copies the log's status and approval flag at posting time.
func (c *Comment) SnapshotFrom(log ActionLog) {
	c.Status = log.Status
	c.IsApproved = log.IsApproved()
}
