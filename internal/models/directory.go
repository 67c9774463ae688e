package models

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role names recognised by the workflow.
const (
	RoleEconomist             = "economist"
	RoleSeniorEconomist       = "senior_economist"
	RolePrincipalEconomist    = "principal_economist"
	RoleAssistantCommissioner = "assistant_commissioner"
	RoleCommissioner          = "commissioner"
	RoleSuperAdmin            = "super_admin"
)

// Levels place a user on the approval ladder.
const (
	LevelStaff                 = "staff"
	LevelUnitHead              = "unit_head"
	LevelAssistantCommissioner = "assistant_commissioner"
	LevelCommissioner          = "commissioner"
)

// Department unit types.
const (
	UnitTypeInfrastructure = "infrastructure"
	UnitTypePublicAdmin    = "public_admin"
	UnitTypeSocialServices = "social_services"
)

var unitHeadCodePattern = regexp.MustCompile(`^[A-Z]{2,3}\d+/PAP$`)

// Role describes a named set of capabilities.
type Role struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	Name                    string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	CanCreateLogs           bool      `gorm:"not null;default:false" json:"can_create_logs"`
	CanUpdateStatus         bool      `gorm:"not null;default:false" json:"can_update_status"`
	CanApprove              bool      `gorm:"not null;default:false" json:"can_approve"`
	CanViewAllLogs          bool      `gorm:"not null;default:false" json:"can_view_all_logs"`
	CanConfigure            bool      `gorm:"not null;default:false" json:"can_configure"`
	CanViewAllUsers         bool      `gorm:"not null;default:false" json:"can_view_all_users"`
	CanAssignToCommissioner bool      `gorm:"not null;default:false" json:"can_assign_to_commissioner"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Department is a top-level organisational division.
type Department struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Name        string           `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Code        string           `gorm:"size:10;uniqueIndex;not null" json:"code"`
	Description string           `gorm:"type:text" json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Units       []DepartmentUnit `json:"units,omitempty"`
}

// DepartmentUnit is a subgroup of a department that scopes visibility and assignment.
type DepartmentUnit struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DepartmentID uint      `gorm:"not null;uniqueIndex:idx_unit_department_name" json:"department_id"`
	Name         string    `gorm:"size:100;not null;uniqueIndex:idx_unit_department_name" json:"name"`
	UnitType     string    `gorm:"size:50;not null" json:"unit_type"`
	Description  string    `gorm:"type:text" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// User is a directory entry. Level is derived from role and designation whenever the row is saved.
type User struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Username         string          `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email            string          `gorm:"size:255" json:"email"`
	FirstName        string          `gorm:"size:150" json:"first_name"`
	LastName         string          `gorm:"size:150" json:"last_name"`
	EmployeeID       string          `gorm:"size:50;uniqueIndex;not null" json:"employee_id"`
	RoleID           *uint           `json:"role_id"`
	Role             *Role           `json:"role,omitempty"`
	Designation      string          `gorm:"size:100" json:"designation"`
	DepartmentID     *uint           `gorm:"index" json:"department_id"`
	Department       *Department     `json:"department,omitempty"`
	DepartmentUnitID *uint           `gorm:"index" json:"department_unit_id"`
	DepartmentUnit   *DepartmentUnit `json:"department_unit,omitempty"`
	Level            string          `gorm:"size:32;not null;default:staff" json:"level"`
	IsActive         bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BeforeSave recomputes the ladder level and clears the unit of commissioner-level users.
func (u *User) BeforeSave(tx *gorm.DB) error {
	roleName := ""
	switch {
	case u.Role != nil:
		roleName = u.Role.Name
	case u.RoleID != nil:
		var role Role
		if err := tx.Session(&gorm.Session{NewDB: true}).Select("name").First(&role, *u.RoleID).Error; err == nil {
			roleName = role.Name
		}
	}

	u.Level = ClassifyLevel(roleName, u.Designation)
	if u.Level == LevelCommissioner || u.Level == LevelAssistantCommissioner {
		u.DepartmentUnitID = nil
		u.DepartmentUnit = nil
	}
	return nil
}

// RoleName returns the role name or an empty string.
func (u User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// EffectiveLevel returns the persisted level, classifying on the fly for rows saved before levels existed.
func (u User) EffectiveLevel() string {
	if u.Level != "" {
		return u.Level
	}
	return ClassifyLevel(u.RoleName(), u.Designation)
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SameUnit reports whether both users belong to the same, non-empty department unit.
func (u User) SameUnit(other User) bool {
	return u.DepartmentUnitID != nil && other.DepartmentUnitID != nil && *u.DepartmentUnitID == *other.DepartmentUnitID
}

// ClassifyLevel maps a role name and designation onto the approval ladder.
func ClassifyLevel(roleName, designation string) string {
	switch strings.ToLower(strings.TrimSpace(roleName)) {
	case RoleCommissioner:
		return LevelCommissioner
	case RoleAssistantCommissioner:
		return LevelAssistantCommissioner
	}
	if IsUnitHeadDesignation(designation) {
		return LevelUnitHead
	}
	return LevelStaff
}

// IsUnitHeadDesignation applies the legacy designation rule: the word "head" anywhere, or a
// unit code such as "PE1/PAP" that contains the digit 1.
// TODO: confirm with product whether the code branch should only match a trailing "1".
func IsUnitHeadDesignation(designation string) bool {
	if strings.Contains(strings.ToLower(designation), "head") {
		return true
	}
	return unitHeadCodePattern.MatchString(designation) && strings.Contains(designation, "1")
}
