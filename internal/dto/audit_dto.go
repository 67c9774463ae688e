package dto

import (
	"time"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// AuditListQuery captures filters for the global audit trail.
type AuditListQuery struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=200"`
	ActorID  *uint  `query:"actor_id"`
	Action   string `query:"action" validate:"omitempty,oneof=create assign update_status approve reject comment attach"`
}

// AuditEntryResponse serialises an audit entry.
type AuditEntryResponse struct {
	ID          uint                   `json:"id"`
	ActionLogID uint                   `json:"action_log_id"`
	ActorID     uint                   `json:"actor_id"`
	ActorRole   string                 `json:"actor_role"`
	Action      string                 `json:"action"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewAuditEntryResponseSlice converts audit entries.
func NewAuditEntryResponseSlice(entries []models.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		metadata := map[string]interface{}(entry.Metadata)
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		out = append(out, AuditEntryResponse{
			ID:          entry.ID,
			ActionLogID: entry.ActionLogID,
			ActorID:     entry.ActorID,
			ActorRole:   entry.ActorRole,
			Action:      entry.Action,
			Metadata:    metadata,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return out
}

// AuditListResponse is a page of audit entries.
type AuditListResponse struct {
	Items      []AuditEntryResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}
