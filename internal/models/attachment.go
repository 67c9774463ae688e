package models

import "time"

// Attachment stores metadata about a file uploaded against an action log.
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ActionLogID  uint      `gorm:"not null;index" json:"action_log_id"`
	UploadedByID uint      `gorm:"not null" json:"uploaded_by_id"`
	UploadedBy   User      `json:"uploaded_by"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	URL          string    `gorm:"size:512;not null" json:"url"`
	MimeType     string    `gorm:"size:128;not null" json:"mime_type"`
	SizeBytes    int64     `gorm:"not null" json:"size_bytes"`
	Checksum     string    `gorm:"size:128;index" json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
}
