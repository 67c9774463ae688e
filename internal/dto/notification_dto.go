package dto

import (
	"time"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// NotificationListQuery filters the caller's notifications.
type NotificationListQuery struct {
	UnreadOnly bool `query:"unread_only"`
	Limit      int  `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset     int  `query:"offset" validate:"omitempty,min=0"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	ActionLogID uint      `json:"action_log_id"`
	CommentID   *uint     `json:"comment_id,omitempty"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          model.ID,
		UserID:      model.UserID,
		ActionLogID: model.ActionLogID,
		CommentID:   model.CommentID,
		Type:        model.Type,
		Message:     model.Message,
		Read:        model.Read,
		CreatedAt:   model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notifications into DTOs.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		out = append(out, NewNotificationResponse(notification))
	}
	return out
}
