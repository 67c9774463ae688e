package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// CommentRepository persists action log comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment, audit *models.AuditEntry) error
	FindByID(ctx context.Context, id uint) (models.Comment, error)
	ListByActionLog(ctx context.Context, actionLogID uint) ([]models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository constructs a comment repository backed by GORM.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment, audit *models.AuditEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(comment).Error; err != nil {
			return err
		}
		if audit == nil {
			return nil
		}
		audit.ActionLogID = comment.ActionLogID
		if audit.Metadata == nil {
			audit.Metadata = map[string]interface{}{}
		}
		audit.Metadata["comment_id"] = comment.ID
		return tx.Create(audit).Error
	})
}

func (r *commentRepository) FindByID(ctx context.Context, id uint) (models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *commentRepository) ListByActionLog(ctx context.Context, actionLogID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("action_log_id = ?", actionLogID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
