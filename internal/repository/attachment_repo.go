package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// AttachmentRepository persists metadata about uploaded files.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment, audit *models.AuditEntry) error
	ListByActionLog(ctx context.Context, actionLogID uint) ([]models.Attachment, error)
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository constructs a repository for attachment records.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment, audit *models.AuditEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("UploadedBy").Create(attachment).Error; err != nil {
			return err
		}
		if audit == nil {
			return nil
		}
		audit.ActionLogID = attachment.ActionLogID
		return tx.Create(audit).Error
	})
}

func (r *attachmentRepository) ListByActionLog(ctx context.Context, actionLogID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	if err := r.db.WithContext(ctx).
		Preload("UploadedBy").
		Where("action_log_id = ?", actionLogID).
		Order("created_at DESC, id DESC").
		Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}
