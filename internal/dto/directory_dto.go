package dto

import "github.com/noah-isme/actionlog-api/internal/models"

// UserSummary is the compact user shape embedded in action logs, comments and directory listings.
type UserSummary struct {
	ID                 uint   `json:"id"`
	Username           string `json:"username"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	FullName           string `json:"full_name"`
	Designation        string `json:"designation"`
	Role               string `json:"role"`
	Level              string `json:"level"`
	DepartmentID       *uint  `json:"department_id"`
	DepartmentUnitID   *uint  `json:"department_unit_id"`
	DepartmentUnitName string `json:"department_unit_name,omitempty"`
}

// NewUserSummary converts a user model into its summary.
func NewUserSummary(user models.User) UserSummary {
	summary := UserSummary{
		ID:               user.ID,
		Username:         user.Username,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		FullName:         user.FullName(),
		Designation:      user.Designation,
		Role:             user.RoleName(),
		Level:            user.EffectiveLevel(),
		DepartmentID:     user.DepartmentID,
		DepartmentUnitID: user.DepartmentUnitID,
	}
	if user.DepartmentUnit != nil {
		summary.DepartmentUnitName = user.DepartmentUnit.Name
	}
	return summary
}

// NewUserSummarySlice converts users into summaries.
func NewUserSummarySlice(users []models.User) []UserSummary {
	out := make([]UserSummary, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserSummary(user))
	}
	return out
}

// DepartmentUnitResponse serialises a department unit.
type DepartmentUnitResponse struct {
	ID           uint   `json:"id"`
	DepartmentID uint   `json:"department_id"`
	Name         string `json:"name"`
	UnitType     string `json:"unit_type"`
	Description  string `json:"description"`
}

// NewDepartmentUnitResponse converts a unit model.
func NewDepartmentUnitResponse(unit models.DepartmentUnit) DepartmentUnitResponse {
	return DepartmentUnitResponse{
		ID:           unit.ID,
		DepartmentID: unit.DepartmentID,
		Name:         unit.Name,
		UnitType:     unit.UnitType,
		Description:  unit.Description,
	}
}

// NewDepartmentUnitResponseSlice converts unit models.
func NewDepartmentUnitResponseSlice(units []models.DepartmentUnit) []DepartmentUnitResponse {
	out := make([]DepartmentUnitResponse, 0, len(units))
	for _, unit := range units {
		out = append(out, NewDepartmentUnitResponse(unit))
	}
	return out
}

// DepartmentResponse serialises a department with its units.
type DepartmentResponse struct {
	ID          uint                     `json:"id"`
	Name        string                   `json:"name"`
	Code        string                   `json:"code"`
	Description string                   `json:"description"`
	Units       []DepartmentUnitResponse `json:"units"`
}

// NewDepartmentResponseSlice converts department models.
func NewDepartmentResponseSlice(departments []models.Department) []DepartmentResponse {
	out := make([]DepartmentResponse, 0, len(departments))
	for _, department := range departments {
		out = append(out, DepartmentResponse{
			ID:          department.ID,
			Name:        department.Name,
			Code:        department.Code,
			Description: department.Description,
			Units:       NewDepartmentUnitResponseSlice(department.Units),
		})
	}
	return out
}
