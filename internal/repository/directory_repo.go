package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// DirectoryRepository reads users, roles, departments and department units.
type DirectoryRepository interface {
	GetUser(ctx context.Context, id uint) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	ListUsersByDepartment(ctx context.Context, departmentID uint) ([]models.User, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	ListDepartmentUnits(ctx context.Context) ([]models.DepartmentUnit, error)
	UpsertRoles(ctx context.Context, roles []models.Role) (int64, error)
	SaveUser(ctx context.Context, user *models.User) error
}

type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository constructs a GORM-backed directory.
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) users(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Role").
		Preload("Department").
		Preload("DepartmentUnit")
}

func (r *directoryRepository) GetUser(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.users(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *directoryRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.users(ctx).Where("is_active = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *directoryRepository) ListUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	if err := r.users(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *directoryRepository) ListUsersByDepartment(ctx context.Context, departmentID uint) ([]models.User, error) {
	var users []models.User
	if err := r.users(ctx).
		Where("department_id = ? AND is_active = ?", departmentID, true).
		Order("last_name ASC, first_name ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *directoryRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	if err := r.db.WithContext(ctx).Preload("Units").Order("name ASC").Find(&departments).Error; err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *directoryRepository) ListDepartmentUnits(ctx context.Context) ([]models.DepartmentUnit, error) {
	var units []models.DepartmentUnit
	if err := r.db.WithContext(ctx).Order("department_id ASC, name ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *directoryRepository) UpsertRoles(ctx context.Context, roles []models.Role) (int64, error) {
	if len(roles) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"can_create_logs",
			"can_update_status",
			"can_approve",
			"can_view_all_logs",
			"can_configure",
			"can_view_all_users",
			"can_assign_to_commissioner",
			"updated_at",
		}),
	}).Create(&roles)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *directoryRepository) SaveUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit("Role", "Department", "DepartmentUnit").Save(user).Error
}
