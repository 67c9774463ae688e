package service

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func ladderUsers() (commissioner, assistant, head, staff, unitless models.User) {
	approver := &models.Role{Name: models.RolePrincipalEconomist, CanApprove: true}
	economist := &models.Role{Name: models.RoleEconomist}

	commissioner = models.User{ID: 1, Level: models.LevelCommissioner, Role: &models.Role{Name: models.RoleCommissioner, CanApprove: true}, DepartmentID: uintPtr(1)}
	assistant = models.User{ID: 2, Level: models.LevelAssistantCommissioner, Role: &models.Role{Name: models.RoleAssistantCommissioner, CanApprove: true}, DepartmentID: uintPtr(1)}
	head = models.User{ID: 3, Level: models.LevelUnitHead, Role: approver, DepartmentID: uintPtr(1), DepartmentUnitID: uintPtr(10)}
	staff = models.User{ID: 4, Level: models.LevelStaff, Role: economist, DepartmentID: uintPtr(1), DepartmentUnitID: uintPtr(10)}
	unitless = models.User{ID: 5, Level: models.LevelStaff, Role: economist}
	return
}

func TestApprovalLadderIsExclusive(t *testing.T) {
	commissioner, assistant, head, staff, unitless := ladderUsers()
	everyone := []models.User{commissioner, assistant, head, staff, unitless}

	stages := []string{
		models.ApprovalNone,
		models.ApprovalUnitHeadApproved,
		models.ApprovalAssistantCommissionerApproved,
		models.ApprovalCommissionerApproved,
	}
	expected := map[string]uint{
		models.ApprovalNone:                          head.ID,
		models.ApprovalUnitHeadApproved:              assistant.ID,
		models.ApprovalAssistantCommissionerApproved: commissioner.ID,
	}

	for _, stage := range stages {
		log := models.ActionLog{ApprovalStatus: stage, DepartmentID: uintPtr(1), DepartmentUnitID: uintPtr(10), CreatedBy: staff}
		var allowed []uint
		for _, user := range everyone {
			if CanApprove(user, log) {
				allowed = append(allowed, user.ID)
			}
		}
		if want, ok := expected[stage]; ok {
			require.Equal(t, []uint{want}, allowed, "stage %q", stage)
		} else {
			require.Empty(t, allowed, "stage %q", stage)
		}
	}
}

func TestUnitHeadApprovesOnlyOwnUnit(t *testing.T) {
	_, _, head, staff, _ := ladderUsers()

	foreign := models.ActionLog{DepartmentUnitID: uintPtr(99), CreatedBy: staff}
	require.False(t, CanApprove(head, foreign))
	require.False(t, HasApprovalAuthority(models.User{ID: 6, Level: models.LevelUnitHead, DepartmentUnitID: uintPtr(10)}, foreign))

	legacy := models.ActionLog{CreatedBy: staff}
	require.True(t, CanApprove(head, legacy), "falls back to the creator's unit")
}

func TestHasApprovalAuthority(t *testing.T) {
	commissioner, assistant, head, staff, _ := ladderUsers()
	log := models.ActionLog{DepartmentID: uintPtr(1), DepartmentUnitID: uintPtr(10)}

	require.True(t, HasApprovalAuthority(commissioner, log))
	require.True(t, HasApprovalAuthority(assistant, log))
	require.True(t, HasApprovalAuthority(head, log))
	require.False(t, HasApprovalAuthority(staff, log))

	superAdmin := models.User{ID: 9, Role: &models.Role{Name: models.RoleSuperAdmin}}
	require.True(t, HasApprovalAuthority(superAdmin, log))

	otherDepartmentAC := models.User{ID: 8, Level: models.LevelAssistantCommissioner, DepartmentID: uintPtr(2)}
	require.False(t, HasApprovalAuthority(otherDepartmentAC, log))
}

func TestDaysRemaining(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	now := time.Date(2026, time.March, 28, 23, 30, 0, 0, loc)
	cases := []struct {
		name string
		due  time.Time
		want int
	}{
		{"same day later", time.Date(2026, time.March, 28, 23, 59, 0, 0, loc), 0},
		{"next day early", time.Date(2026, time.March, 29, 0, 5, 0, 0, loc), 1},
		{"across the clock change", time.Date(2026, time.March, 31, 12, 0, 0, 0, loc), 3},
		{"yesterday", time.Date(2026, time.March, 27, 12, 0, 0, 0, loc), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			due := tc.due
			days, ok := DaysRemaining(&due, now, loc)
			require.True(t, ok)
			require.Equal(t, tc.want, days)
		})
	}

	_, ok := DaysRemaining(nil, now, loc)
	require.False(t, ok)
}

func TestCanReassign(t *testing.T) {
	_, _, _, staff, _ := ladderUsers()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	today := now.Add(8 * time.Hour)
	tomorrow := now.AddDate(0, 0, 1)

	require.False(t, CanReassign(models.ActionLog{DueDate: &today}, now, time.UTC), "unassigned logs have no window")
	require.True(t, CanReassign(models.ActionLog{DueDate: &today, Assignees: []models.User{staff}}, now, time.UTC))
	require.False(t, CanReassign(models.ActionLog{DueDate: &tomorrow, Assignees: []models.User{staff}}, now, time.UTC))
	require.False(t, CanReassign(models.ActionLog{Assignees: []models.User{staff}}, now, time.UTC))
}

func TestCanViewUnitlessStaffSeesNothing(t *testing.T) {
	commissioner, assistant, head, staff, unitless := ladderUsers()
	assignedToUnitless := models.ActionLog{Assignees: []models.User{unitless}, DepartmentUnitID: uintPtr(10)}

	require.False(t, CanView(unitless, assignedToUnitless))
	require.True(t, CanView(commissioner, assignedToUnitless))
	require.True(t, CanView(assistant, assignedToUnitless))
	require.True(t, CanView(head, assignedToUnitless))
	require.True(t, CanView(staff, assignedToUnitless))

	otherUnit := models.ActionLog{DepartmentUnitID: uintPtr(11)}
	require.False(t, CanView(staff, otherUnit))
	require.True(t, CanView(staff, models.ActionLog{DepartmentUnitID: uintPtr(11), Assignees: []models.User{staff}}))
}

func TestAssignableUsersByLevel(t *testing.T) {
	commissioner, assistant, head, staff, unitless := ladderUsers()
	peerHead := models.User{ID: 7, Level: models.LevelUnitHead, DepartmentUnitID: uintPtr(10)}
	foreigner := models.User{ID: 8, Level: models.LevelStaff, DepartmentUnitID: uintPtr(11)}
	everyone := []models.User{commissioner, assistant, head, staff, unitless, peerHead, foreigner}

	ids := func(users []models.User) []uint {
		out := make([]uint, 0, len(users))
		for _, user := range users {
			out = append(out, user.ID)
		}
		return out
	}

	require.Equal(t, []uint{2, 3, 4, 5, 7, 8}, ids(AssignableUsers(commissioner, everyone)))
	require.Equal(t, []uint{3, 4, 5, 7, 8}, ids(AssignableUsers(assistant, everyone)))
	require.Equal(t, []uint{4}, ids(AssignableUsers(head, everyone)))
	require.Equal(t, []uint{3, 7}, ids(AssignableUsers(staff, everyone)))
	require.Empty(t, AssignableUsers(unitless, everyone))
}

func TestSearchAndFilterComposes(t *testing.T) {
	_, _, _, staff, _ := ladderUsers()
	logs := []models.ActionLog{
		{ID: 1, Title: "Budget review", Status: models.StatusOpen, Assignees: []models.User{staff}},
		{ID: 2, Title: "Budget memo", Status: models.StatusClosed},
		{ID: 3, Title: "Travel", Description: "budget for travel", Status: models.StatusOpen},
	}

	got := SearchAndFilter(logs, ActionLogFilter{Text: "BUDGET", Status: models.StatusOpen}, staff)
	require.Len(t, got, 2)

	got = SearchAndFilter(logs, ActionLogFilter{Text: "budget", AssignedToMe: true}, staff)
	require.Len(t, got, 1)
	require.Equal(t, uint(1), got[0].ID)

	page, meta := paginate(logs, 2, 2)
	require.Len(t, page, 1)
	require.Equal(t, 2, meta.TotalPages)
}
