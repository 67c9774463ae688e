package dto

import (
	"time"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// CommentCreateRequest posts a comment or a reply.
type CommentCreateRequest struct {
	Comment         string `json:"comment" validate:"required,max=4000"`
	ParentCommentID *uint  `json:"parent_comment_id" validate:"omitempty,gt=0"`
}

// CommentResponse is a node of the comment tree.
type CommentResponse struct {
	ID              uint              `json:"id"`
	ActionLogID     uint              `json:"action_log_id"`
	Author          UserSummary       `json:"author"`
	ParentCommentID *uint             `json:"parent_comment_id"`
	Comment         string            `json:"comment"`
	Status          string            `json:"status,omitempty"`
	IsApproved      bool              `json:"is_approved"`
	Unread          bool              `json:"unread"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Replies         []CommentResponse `json:"replies"`
}

// NewCommentResponse converts a single comment without replies.
func NewCommentResponse(comment models.Comment) CommentResponse {
	return CommentResponse{
		ID:              comment.ID,
		ActionLogID:     comment.ActionLogID,
		Author:          NewUserSummary(comment.Author),
		ParentCommentID: comment.ParentCommentID,
		Comment:         comment.Body,
		Status:          comment.Status,
		IsApproved:      comment.IsApproved,
		CreatedAt:       comment.CreatedAt,
		UpdatedAt:       comment.UpdatedAt,
		Replies:         []CommentResponse{},
	}
}

// UnreadCountResponse reports unread comments for the viewer.
type UnreadCountResponse struct {
	ActionLogID uint `json:"action_log_id"`
	Unread      int  `json:"unread"`
}
