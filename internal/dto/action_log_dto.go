package dto

import (
	"time"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// ActionLogCreateRequest is the payload for creating an action log.
type ActionLogCreateRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"required,max=10000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  []uint     `json:"assigned_to" validate:"omitempty,dive,gt=0"`
}

// ActionLogAssignRequest replaces the assignee set.
type ActionLogAssignRequest struct {
	AssignedTo []uint `json:"assigned_to" validate:"required,min=1,dive,gt=0"`
	Comment    string `json:"comment" validate:"max=4000"`
}

// ActionLogStatusRequest moves the log to a new status. The comment is mandatory.
type ActionLogStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=open in_progress closed"`
	Comment string `json:"comment" validate:"required,max=4000"`
}

// ActionLogApproveRequest carries the optional approval comment.
type ActionLogApproveRequest struct {
	Comment string `json:"comment" validate:"max=4000"`
}

// ActionLogRejectRequest carries the mandatory rejection reason.
type ActionLogRejectRequest struct {
	Reason string `json:"reason" validate:"required,max=4000"`
}

// ActionLogPatchRequest combines assignment, status and approval in one call.
// Absent fields are left untouched.
type ActionLogPatchRequest struct {
	AssignedTo     *[]uint `json:"assigned_to" validate:"omitempty,dive,gt=0"`
	Status         *string `json:"status" validate:"omitempty,oneof=open in_progress closed"`
	ApprovalStatus *string `json:"approval_status" validate:"omitempty,oneof=unit_head_approved assistant_commissioner_approved commissioner_approved"`
	Comment        string  `json:"comment" validate:"max=4000"`
}

// ActionLogListQuery captures search, filter and pagination parameters.
type ActionLogListQuery struct {
	Search       string `query:"search" validate:"max=200"`
	Status       string `query:"status" validate:"omitempty,oneof=open in_progress closed"`
	AssignedToMe bool   `query:"assigned_to_me"`
	Page         int    `query:"page" validate:"omitempty,min=1"`
	PageSize     int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ActionLogPermissions tells the viewer which commands are currently available.
type ActionLogPermissions struct {
	CanAssign       bool `json:"can_assign"`
	CanReassign     bool `json:"can_reassign"`
	CanUpdateStatus bool `json:"can_update_status"`
	CanApprove      bool `json:"can_approve"`
	DaysRemaining   *int `json:"days_remaining"`
}

// ActionLogResponse is the authoritative snapshot returned after every query and command.
type ActionLogResponse struct {
	ID                 uint                 `json:"id"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Priority           string               `json:"priority"`
	DueDate            *time.Time           `json:"due_date"`
	Status             string               `json:"status"`
	ApprovalStatus     *string              `json:"approval_status"`
	CreatedBy          UserSummary          `json:"created_by"`
	DepartmentID       *uint                `json:"department_id"`
	DepartmentName     string               `json:"department_name,omitempty"`
	DepartmentUnitID   *uint                `json:"department_unit_id"`
	DepartmentUnitName string               `json:"department_unit_name,omitempty"`
	AssignedTo         []UserSummary        `json:"assigned_to"`
	ApprovedBy         *UserSummary         `json:"approved_by"`
	ApprovedAt         *time.Time           `json:"approved_at"`
	RejectionReason    string               `json:"rejection_reason,omitempty"`
	CommentCount       int64                `json:"comment_count"`
	Version            uint                 `json:"version"`
	Permissions        ActionLogPermissions `json:"permissions"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewActionLogResponse converts the aggregate. Viewer permissions and comment counts are filled by the service.
func NewActionLogResponse(log models.ActionLog) ActionLogResponse {
	response := ActionLogResponse{
		ID:               log.ID,
		Title:            log.Title,
		Description:      log.Description,
		Priority:         log.Priority,
		DueDate:          log.DueDate,
		Status:           log.Status,
		CreatedBy:        NewUserSummary(log.CreatedBy),
		DepartmentID:     log.DepartmentID,
		DepartmentUnitID: log.DepartmentUnitID,
		AssignedTo:       NewUserSummarySlice(log.Assignees),
		ApprovedAt:       log.ApprovedAt,
		RejectionReason:  log.RejectionReason,
		Version:          log.Version,
		CreatedAt:        log.CreatedAt,
		UpdatedAt:        log.UpdatedAt,
	}
	if log.ApprovalStatus != models.ApprovalNone {
		stage := log.ApprovalStatus
		response.ApprovalStatus = &stage
	}
	if log.Department != nil {
		response.DepartmentName = log.Department.Name
	}
	if log.DepartmentUnit != nil {
		response.DepartmentUnitName = log.DepartmentUnit.Name
	}
	if log.ApprovedBy != nil {
		approver := NewUserSummary(*log.ApprovedBy)
		response.ApprovedBy = &approver
	}
	return response
}

// ActionLogListResponse is a page of action logs.
type ActionLogListResponse struct {
	Items      []ActionLogResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// AssignmentHistoryResponse serialises one assignment history entry.
type AssignmentHistoryResponse struct {
	ID         uint          `json:"id"`
	AssignedBy UserSummary   `json:"assigned_by"`
	AssignedTo []UserSummary `json:"assigned_to"`
	AssignedAt time.Time     `json:"assigned_at"`
	Comment    string        `json:"comment"`
}

// NewAssignmentHistoryResponseSlice converts history entries.
func NewAssignmentHistoryResponseSlice(entries []models.AssignmentHistory) []AssignmentHistoryResponse {
	out := make([]AssignmentHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, AssignmentHistoryResponse{
			ID:         entry.ID,
			AssignedBy: NewUserSummary(entry.AssignedBy),
			AssignedTo: NewUserSummarySlice(entry.AssignedTo),
			AssignedAt: entry.AssignedAt,
			Comment:    entry.Comment,
		})
	}
	return out
}

// ApprovalRecordResponse serialises an approval or rejection decision.
type ApprovalRecordResponse struct {
	ID        uint        `json:"id"`
	Approver  UserSummary `json:"approver"`
	Decision  string      `json:"decision"`
	Stage     string      `json:"stage"`
	Comment   string      `json:"comment"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewApprovalRecordResponseSlice converts approval records.
func NewApprovalRecordResponseSlice(records []models.ApprovalRecord) []ApprovalRecordResponse {
	out := make([]ApprovalRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, ApprovalRecordResponse{
			ID:        record.ID,
			Approver:  NewUserSummary(record.Approver),
			Decision:  record.Decision,
			Stage:     record.Stage,
			Comment:   record.Comment,
			CreatedAt: record.CreatedAt,
		})
	}
	return out
}
