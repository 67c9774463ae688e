package dto

import (
	"time"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// AttachmentResponse describes a stored attachment.
type AttachmentResponse struct {
	ID          uint        `json:"id"`
	ActionLogID uint        `json:"action_log_id"`
	FileName    string      `json:"file_name"`
	URL         string      `json:"url"`
	MimeType    string      `json:"mime_type"`
	SizeBytes   int64       `json:"size_bytes"`
	Checksum    string      `json:"checksum"`
	UploadedBy  UserSummary `json:"uploaded_by"`
	UploadedAt  time.Time   `json:"uploaded_at"`
}

// NewAttachmentResponse converts an attachment model.
func NewAttachmentResponse(attachment models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          attachment.ID,
		ActionLogID: attachment.ActionLogID,
		FileName:    attachment.FileName,
		URL:         attachment.URL,
		MimeType:    attachment.MimeType,
		SizeBytes:   attachment.SizeBytes,
		Checksum:    attachment.Checksum,
		UploadedBy:  NewUserSummary(attachment.UploadedBy),
		UploadedAt:  attachment.CreatedAt,
	}
}

// NewAttachmentResponseSlice converts attachment models.
func NewAttachmentResponseSlice(attachments []models.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(attachments))
	for _, attachment := range attachments {
		out = append(out, NewAttachmentResponse(attachment))
	}
	return out
}
