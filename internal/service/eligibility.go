package service

import (
	"time"

	"github.com/noah-isme/actionlog-api/internal/models"
)

// IsCommissioner reports whether the user sits at the top of the ladder.
func IsCommissioner(user models.User) bool {
	return user.EffectiveLevel() == models.LevelCommissioner
}

// IsAssistantCommissioner reports whether the user is an assistant commissioner.
func IsAssistantCommissioner(user models.User) bool {
	return user.EffectiveLevel() == models.LevelAssistantCommissioner
}

// IsUnitHead reports whether the user heads a department unit.
func IsUnitHead(user models.User) bool {
	return user.EffectiveLevel() == models.LevelUnitHead
}

func isSenior(user models.User) bool {
	return IsCommissioner(user) || IsAssistantCommissioner(user)
}

// CanAssign reports whether the actor may assign the log at all. Who may be chosen is
// narrowed separately by AssignableUsers.
func CanAssign(actor models.User, _ models.ActionLog) bool {
	return isSenior(actor) || IsUnitHead(actor)
}

// AssignableUsers filters candidates down to the users the actor may pick.
func AssignableUsers(actor models.User, candidates []models.User) []models.User {
	out := make([]models.User, 0, len(candidates))
	for _, candidate := range candidates {
		if isAssignable(actor, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func isAssignable(actor, candidate models.User) bool {
	if candidate.ID == actor.ID {
		return false
	}
	switch {
	case IsCommissioner(actor), IsAssistantCommissioner(actor):
		return !IsCommissioner(candidate)
	case IsUnitHead(actor):
		return actor.SameUnit(candidate) && !IsUnitHead(candidate)
	default:
		return actor.SameUnit(candidate)
	}
}

// DaysRemaining is the whole-day difference between the due date and now, both truncated
// to midnight in loc. ok is false when the log has no due date.
func DaysRemaining(due *time.Time, now time.Time, loc *time.Location) (days int, ok bool) {
	if due == nil {
		return 0, false
	}
	if loc == nil {
		loc = time.UTC
	}
	dueDay := midnight(due.In(loc))
	today := midnight(now.In(loc))

	// Calendar arithmetic avoids DST days that are 23 or 25 hours long.
	dueUTC := time.Date(dueDay.Year(), dueDay.Month(), dueDay.Day(), 0, 0, 0, 0, time.UTC)
	todayUTC := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueUTC.Sub(todayUTC).Hours() / 24), true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CanReassign reports whether an assigned log is inside its reassignment window.
func CanReassign(log models.ActionLog, now time.Time, loc *time.Location) bool {
	if !log.HasAssignees() {
		return false
	}
	days, ok := DaysRemaining(log.DueDate, now, loc)
	return ok && days == 0
}

// CanUpdateStatus reports whether the actor is one of the assignees.
func CanUpdateStatus(actor models.User, log models.ActionLog) bool {
	return log.IsAssignedTo(actor.ID)
}

// logUnitID is the unit the log belongs to, falling back to the creator's unit for rows
// written before the log carried its own unit.
func logUnitID(log models.ActionLog) *uint {
	if log.DepartmentUnitID != nil {
		return log.DepartmentUnitID
	}
	return log.CreatedBy.DepartmentUnitID
}

func inLogUnit(user models.User, log models.ActionLog) bool {
	unitID := logUnitID(log)
	return unitID != nil && user.DepartmentUnitID != nil && *unitID == *user.DepartmentUnitID
}

// ApprovalStageFor returns the stage the actor would stamp if they approved now.
func ApprovalStageFor(actor models.User, log models.ActionLog) (string, bool) {
	switch log.ApprovalStatus {
	case models.ApprovalNone:
		if IsUnitHead(actor) && inLogUnit(actor, log) {
			return models.ApprovalUnitHeadApproved, true
		}
	case models.ApprovalUnitHeadApproved:
		if IsAssistantCommissioner(actor) {
			return models.ApprovalAssistantCommissionerApproved, true
		}
	case models.ApprovalAssistantCommissionerApproved:
		if IsCommissioner(actor) {
			return models.ApprovalCommissionerApproved, true
		}
	}
	return "", false
}

// CanApprove applies the strict three-stage ladder.
func CanApprove(actor models.User, log models.ActionLog) bool {
	_, ok := ApprovalStageFor(actor, log)
	return ok
}

// HasApprovalAuthority is the coarse approval grant checked before the ladder.
func HasApprovalAuthority(actor models.User, log models.ActionLog) bool {
	if IsCommissioner(actor) || actor.RoleName() == models.RoleSuperAdmin {
		return true
	}
	if actor.Role != nil && actor.Role.CanApprove {
		return true
	}
	if IsAssistantCommissioner(actor) && actor.DepartmentID != nil && log.DepartmentID != nil && *actor.DepartmentID == *log.DepartmentID {
		return true
	}
	return IsUnitHead(actor) && inLogUnit(actor, log)
}

// CanView reports whether the log is visible to the viewer.
func CanView(viewer models.User, log models.ActionLog) bool {
	if isSenior(viewer) {
		return true
	}
	if viewer.DepartmentUnitID == nil && !IsUnitHead(viewer) {
		return false
	}
	return log.IsAssignedTo(viewer.ID) || inLogUnit(viewer, log)
}
