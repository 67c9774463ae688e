package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// ErrStaleVersion indicates the row changed since it was loaded.
var ErrStaleVersion = errors.New("action log was modified concurrently")

// ActionLogChange groups the records written atomically alongside an action log mutation.
type ActionLogChange struct {
	ExpectedVersion  uint
	ReplaceAssignees bool
	History          *models.AssignmentHistory
	Approval         *models.ApprovalRecord
	Comments         []*models.Comment
	Audit            []models.AuditEntry
}

// ActionLogRepository persists action logs and their append-only companions.
type ActionLogRepository interface {
	Create(ctx context.Context, log *models.ActionLog, change ActionLogChange) error
	Apply(ctx context.Context, log *models.ActionLog, change ActionLogChange) error
	GetByID(ctx context.Context, id uint) (models.ActionLog, error)
	List(ctx context.Context) ([]models.ActionLog, error)
	ListDueBetween(ctx context.Context, from, to time.Time, statuses []string) ([]models.ActionLog, error)
	ListAssignmentHistory(ctx context.Context, actionLogID uint) ([]models.AssignmentHistory, error)
	ListApprovals(ctx context.Context, actionLogID uint) ([]models.ApprovalRecord, error)
	CountComments(ctx context.Context, actionLogIDs []uint) (map[uint]int64, error)
}

type actionLogAssignee struct {
	ActionLogID uint `gorm:"primaryKey"`
	UserID      uint `gorm:"primaryKey"`
}

func (actionLogAssignee) TableName() string { return "action_log_assignees" }

type historyAssignee struct {
	AssignmentHistoryID uint `gorm:"primaryKey"`
	UserID              uint `gorm:"primaryKey"`
}

func (historyAssignee) TableName() string { return "assignment_history_assignees" }

type actionLogRepository struct {
	db *gorm.DB
}

// NewActionLogRepository instantiates a GORM-backed repository.
func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepository{db: db}
}

func (r *actionLogRepository) Create(ctx context.Context, log *models.ActionLog, change ActionLogChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if log.Version == 0 {
			log.Version = 1
		}
		if err := tx.Omit("CreatedBy", "Department", "DepartmentUnit", "ApprovedBy", "Assignees").Create(log).Error; err != nil {
			return err
		}
		if err := replaceAssignees(tx, log.ID, log.AssigneeIDs()); err != nil {
			return err
		}
		return writeChangeRecords(tx, log.ID, change)
	})
}

func (r *actionLogRepository) Apply(ctx context.Context, log *models.ActionLog, change ActionLogChange) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ActionLog{}).
			Where("id = ? AND version = ?", log.ID, change.ExpectedVersion).
			Updates(map[string]interface{}{
				"status":             log.Status,
				"approval_status":    log.ApprovalStatus,
				"approved_by_id":     log.ApprovedByID,
				"approved_at":        log.ApprovedAt,
				"rejection_reason":   log.RejectionReason,
				"department_id":      log.DepartmentID,
				"department_unit_id": log.DepartmentUnitID,
				"version":            change.ExpectedVersion + 1,
				"updated_at":         now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleVersion
		}

		if change.ReplaceAssignees {
			if err := replaceAssignees(tx, log.ID, log.AssigneeIDs()); err != nil {
				return err
			}
		}

		return writeChangeRecords(tx, log.ID, change)
	})
	if err != nil {
		return err
	}

	log.Version = change.ExpectedVersion + 1
	log.UpdatedAt = now
	return nil
}

func (r *actionLogRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("CreatedBy.Role").
		Preload("CreatedBy.DepartmentUnit").
		Preload("Assignees", func(db *gorm.DB) *gorm.DB {
			return db.Order("users.id ASC")
		}).
		Preload("Assignees.Role").
		Preload("Assignees.DepartmentUnit").
		Preload("Department").
		Preload("DepartmentUnit").
		Preload("ApprovedBy")
}

func (r *actionLogRepository) GetByID(ctx context.Context, id uint) (models.ActionLog, error) {
	var log models.ActionLog
	if err := r.withRelations(ctx).First(&log, id).Error; err != nil {
		return models.ActionLog{}, err
	}
	return log, nil
}

func (r *actionLogRepository) List(ctx context.Context) ([]models.ActionLog, error) {
	var logs []models.ActionLog
	if err := r.withRelations(ctx).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *actionLogRepository) ListDueBetween(ctx context.Context, from, to time.Time, statuses []string) ([]models.ActionLog, error) {
	query := r.withRelations(ctx).
		Where("due_date IS NOT NULL AND due_date >= ? AND due_date < ?", from, to)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var logs []models.ActionLog
	if err := query.Order("due_date ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *actionLogRepository) ListAssignmentHistory(ctx context.Context, actionLogID uint) ([]models.AssignmentHistory, error) {
	var history []models.AssignmentHistory
	if err := r.db.WithContext(ctx).
		Preload("AssignedBy").
		Preload("AssignedTo", func(db *gorm.DB) *gorm.DB {
			return db.Order("users.id ASC")
		}).
		Where("action_log_id = ?", actionLogID).
		Order("assigned_at DESC, id DESC").
		Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

func (r *actionLogRepository) ListApprovals(ctx context.Context, actionLogID uint) ([]models.ApprovalRecord, error) {
	var records []models.ApprovalRecord
	if err := r.db.WithContext(ctx).
		Preload("Approver").
		Where("action_log_id = ?", actionLogID).
		Order("created_at DESC, id DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *actionLogRepository) CountComments(ctx context.Context, actionLogIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(actionLogIDs))
	if len(actionLogIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ActionLogID uint
		Total       int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("action_log_id, COUNT(*) AS total").
		Where("action_log_id IN ?", actionLogIDs).
		Group("action_log_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ActionLogID] = row.Total
	}
	return counts, nil
}

func replaceAssignees(tx *gorm.DB, actionLogID uint, userIDs []uint) error {
	if err := tx.Where("action_log_id = ?", actionLogID).Delete(&actionLogAssignee{}).Error; err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	rows := make([]actionLogAssignee, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, actionLogAssignee{ActionLogID: actionLogID, UserID: id})
	}
	return tx.Create(&rows).Error
}

func writeChangeRecords(tx *gorm.DB, actionLogID uint, change ActionLogChange) error {
	if change.History != nil {
		change.History.ActionLogID = actionLogID
		if err := tx.Omit("AssignedBy", "AssignedTo").Create(change.History).Error; err != nil {
			return err
		}
		if len(change.History.AssignedTo) > 0 {
			rows := make([]historyAssignee, 0, len(change.History.AssignedTo))
			for _, user := range change.History.AssignedTo {
				rows = append(rows, historyAssignee{AssignmentHistoryID: change.History.ID, UserID: user.ID})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
	}

	if change.Approval != nil {
		change.Approval.ActionLogID = actionLogID
		if err := tx.Omit("Approver").Create(change.Approval).Error; err != nil {
			return err
		}
	}

	for _, comment := range change.Comments {
		comment.ActionLogID = actionLogID
		if err := tx.Omit("Author").Create(comment).Error; err != nil {
			return err
		}
	}

	for i := range change.Audit {
		change.Audit[i].ActionLogID = actionLogID
		if err := tx.Create(&change.Audit[i]).Error; err != nil {
			return err
		}
	}

	return nil
}
