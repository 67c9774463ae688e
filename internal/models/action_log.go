package models

import (
	"errors"
	"time"
)

// Action log statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
)

// Action log priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Approval ladder stages. ApprovalNone is stored as an empty string.
const (
	ApprovalNone                          = ""
	ApprovalUnitHeadApproved              = "unit_head_approved"
	ApprovalAssistantCommissionerApproved = "assistant_commissioner_approved"
	ApprovalCommissionerApproved          = "commissioner_approved"
)

// Approval decisions recorded on ApprovalRecord.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

var (
	// ErrInvalidStatus indicates a status outside the known set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrApprovalOutOfOrder indicates an approval stage that is not the next rung of the ladder.
	ErrApprovalOutOfOrder = errors.New("approval stage out of order")
)

var validStatuses = map[string]struct{}{
	StatusOpen:       {},
	StatusInProgress: {},
	StatusClosed:     {},
}

var nextApprovalStage = map[string]string{
	ApprovalNone:                          ApprovalUnitHeadApproved,
	ApprovalUnitHeadApproved:              ApprovalAssistantCommissionerApproved,
	ApprovalAssistantCommissionerApproved: ApprovalCommissionerApproved,
}

// ActionLog is a trackable unit of work with assignment, status and a three-stage approval ladder.
type ActionLog struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Title            string          `gorm:"size:200;not null" json:"title"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	Priority         string          `gorm:"size:20;not null;default:Medium" json:"priority"`
	DueDate          *time.Time      `json:"due_date"`
	Status           string          `gorm:"size:20;not null;default:open;index" json:"status"`
	ApprovalStatus   string          `gorm:"size:40;not null;default:''" json:"approval_status"`
	CreatedByID      uint            `gorm:"not null;index" json:"created_by_id"`
	CreatedBy        User            `json:"created_by"`
	DepartmentID     *uint           `gorm:"index" json:"department_id"`
	Department       *Department     `json:"department,omitempty"`
	DepartmentUnitID *uint           `gorm:"index" json:"department_unit_id"`
	DepartmentUnit   *DepartmentUnit `json:"department_unit,omitempty"`
	Assignees        []User          `gorm:"many2many:action_log_assignees" json:"assigned_to"`
	ApprovedByID     *uint           `json:"approved_by_id"`
	ApprovedBy       *User           `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	RejectionReason  string          `gorm:"type:text" json:"rejection_reason"`
	Version          uint            `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AssigneeIDs lists the ids of the current assignees.
func (l ActionLog) AssigneeIDs() []uint {
	ids := make([]uint, 0, len(l.Assignees))
	for _, user := range l.Assignees {
		ids = append(ids, user.ID)
	}
	return ids
}

// IsAssignedTo reports whether the user is among the assignees.
func (l ActionLog) IsAssignedTo(userID uint) bool {
	for _, user := range l.Assignees {
		if user.ID == userID {
			return true
		}
	}
	return false
}

// HasAssignees reports whether anybody is assigned.
func (l ActionLog) HasAssignees() bool {
	return len(l.Assignees) > 0
}

// IsApproved reports whether at least the first approval stage has been reached.
func (l ActionLog) IsApproved() bool {
	return l.ApprovalStatus != ApprovalNone
}

// ReplaceAssignees swaps the assignee set and reopens the log.
func (l *ActionLog) ReplaceAssignees(users []User) {
	l.Assignees = append([]User(nil), users...)
	l.Status = StatusOpen
}

// ChangeStatus sets the log to any known status.
func (l *ActionLog) ChangeStatus(status string) error {
	if !IsValidStatus(status) {
		return ErrInvalidStatus
	}
	l.Status = status
	return nil
}

// Approve advances the ladder to stage and closes the log.
func (l *ActionLog) Approve(stage string, approverID uint, at time.Time) error {
	next, ok := nextApprovalStage[l.ApprovalStatus]
	if !ok || next != stage {
		return ErrApprovalOutOfOrder
	}
	l.ApprovalStatus = stage
	l.Status = StatusClosed
	l.ApprovedByID = &approverID
	l.ApprovedAt = &at
	l.RejectionReason = ""
	return nil
}

// Reject sends the log back to its assignees without moving the ladder.
func (l *ActionLog) Reject(reason string) {
	l.Status = StatusInProgress
	l.RejectionReason = reason
}

// NextApprovalStage returns the stage that follows current, if any.
func NextApprovalStage(current string) (string, bool) {
	next, ok := nextApprovalStage[current]
	return next, ok
}

// IsValidStatus reports whether status is known.
func IsValidStatus(status string) bool {
	_, ok := validStatuses[status]
	return ok
}

// AssignmentHistory is an append-only record of one assignment.
type AssignmentHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ActionLogID  uint      `gorm:"not null;index" json:"action_log_id"`
	AssignedByID uint      `gorm:"not null" json:"assigned_by_id"`
	AssignedBy   User      `json:"assigned_by"`
	AssignedTo   []User    `gorm:"many2many:assignment_history_assignees" json:"assigned_to"`
	AssignedAt   time.Time `gorm:"not null;index" json:"assigned_at"`
	Comment      string    `gorm:"type:text" json:"comment"`
}

// ApprovalRecord is an append-only record of an approval or rejection decision.
type ApprovalRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ActionLogID uint      `gorm:"not null;index" json:"action_log_id"`
	ApproverID  uint      `gorm:"not null" json:"approver_id"`
	Approver    User      `json:"approver"`
	Decision    string    `gorm:"size:20;not null" json:"decision"`
	Stage       string    `gorm:"size:40;not null" json:"stage"`
	Comment     string    `gorm:"type:text" json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}
