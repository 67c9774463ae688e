package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/models"
)

func newActionLog(creator models.User, assignees ...models.User) *models.ActionLog {
	return &models.ActionLog{
		Title:            "Prepare budget brief",
		Description:      "Summarise capital projects",
		Priority:         models.PriorityMedium,
		Status:           models.StatusOpen,
		CreatedByID:      creator.ID,
		DepartmentID:     creator.DepartmentID,
		DepartmentUnitID: creator.DepartmentUnitID,
		Assignees:        assignees,
	}
}

func TestActionLogRepositoryCreateRoundTripsAssignees(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedDirectory(t, db)
	repo := NewActionLogRepository(db)

	log := newActionLog(fixture.unitHead, fixture.outsider, fixture.economist)
	history := &models.AssignmentHistory{
		AssignedByID: fixture.unitHead.ID,
		AssignedTo:   []models.User{fixture.outsider, fixture.economist},
		AssignedAt:   time.Now().UTC(),
	}
	audit := []models.AuditEntry{{ActorID: fixture.unitHead.ID, ActorRole: models.RoleEconomist, Action: models.AuditActionCreate}}

	require.NoError(t, repo.Create(context.Background(), log, ActionLogChange{History: history, Audit: audit}))
	require.NotZero(t, log.ID)
	require.Equal(t, uint(1), log.Version)

	stored, err := repo.GetByID(context.Background(), log.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint{fixture.economist.ID, fixture.outsider.ID}, stored.AssigneeIDs())
	require.Equal(t, models.StatusOpen, stored.Status)
	require.Equal(t, fixture.unitHead.ID, stored.CreatedBy.ID)
	require.NotNil(t, stored.CreatedBy.Role)

	entries, err := repo.ListAssignmentHistory(context.Background(), log.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].AssignedTo, 2)
	require.Equal(t, fixture.unitHead.ID, entries[0].AssignedBy.ID)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Where("action_log_id = ?", log.ID).Count(&auditCount).Error)
	require.Equal(t, int64(1), auditCount)
}

func TestActionLogRepositoryApplyReplacesAssigneesAndBumpsVersion(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedDirectory(t, db)
	repo := NewActionLogRepository(db)

	log := newActionLog(fixture.unitHead, fixture.economist)
	require.NoError(t, repo.Create(context.Background(), log, ActionLogChange{}))

	loaded, err := repo.GetByID(context.Background(), log.ID)
	require.NoError(t, err)
	loaded.ReplaceAssignees([]models.User{fixture.outsider})
	require.NoError(t, loaded.Approve(models.ApprovalUnitHeadApproved, fixture.unitHead.ID, time.Now().UTC()))

	change := ActionLogChange{
		ExpectedVersion:  loaded.Version,
		ReplaceAssignees: true,
		Approval: &models.ApprovalRecord{
			ApproverID: fixture.unitHead.ID,
			Decision:   models.DecisionApproved,
			Stage:      models.ApprovalUnitHeadApproved,
		},
		Comments: []*models.Comment{{AuthorID: fixture.unitHead.ID, Body: "looks good", Status: models.StatusClosed, IsApproved: true}},
	}
	require.NoError(t, repo.Apply(context.Background(), &loaded, change))
	require.Equal(t, uint(2), loaded.Version)

	stored, err := repo.GetByID(context.Background(), log.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{fixture.outsider.ID}, stored.AssigneeIDs())
	require.Equal(t, models.StatusClosed, stored.Status)
	require.Equal(t, models.ApprovalUnitHeadApproved, stored.ApprovalStatus)
	require.NotNil(t, stored.ApprovedBy)
	require.Equal(t, fixture.unitHead.ID, stored.ApprovedBy.ID)

	approvals, err := repo.ListApprovals(context.Background(), log.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)

	counts, err := repo.CountComments(context.Background(), []uint{log.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[log.ID])
}

func TestActionLogRepositoryApplyRejectsStaleVersion(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedDirectory(t, db)
	repo := NewActionLogRepository(db)

	log := newActionLog(fixture.unitHead)
	require.NoError(t, repo.Create(context.Background(), log, ActionLogChange{}))

	first, err := repo.GetByID(context.Background(), log.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(context.Background(), log.ID)
	require.NoError(t, err)

	require.NoError(t, first.ChangeStatus(models.StatusInProgress))
	require.NoError(t, repo.Apply(context.Background(), &first, ActionLogChange{ExpectedVersion: first.Version}))

	require.NoError(t, second.ChangeStatus(models.StatusInProgress))
	err = repo.Apply(context.Background(), &second, ActionLogChange{ExpectedVersion: second.Version})
	require.ErrorIs(t, err, ErrStaleVersion)
}

func TestActionLogRepositoryApplyIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedDirectory(t, db)
	repo := NewActionLogRepository(db)

	log := newActionLog(fixture.unitHead)
	require.NoError(t, repo.Create(context.Background(), log, ActionLogChange{}))
	require.NoError(t, db.Migrator().DropTable(&models.AuditEntry{}))

	loaded, err := repo.GetByID(context.Background(), log.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.ChangeStatus(models.StatusInProgress))

	err = repo.Apply(context.Background(), &loaded, ActionLogChange{
		ExpectedVersion: loaded.Version,
		Audit:           []models.AuditEntry{{ActorID: fixture.unitHead.ID, ActorRole: models.RoleEconomist, Action: models.AuditActionUpdateStatus}},
	})
	require.Error(t, err)

	stored, err := repo.GetByID(context.Background(), log.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOpen, stored.Status)
	require.Equal(t, uint(1), stored.Version)
}

func TestActionLogRepositoryListDueBetween(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedDirectory(t, db)
	repo := NewActionLogRepository(db)

	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dueToday := dayStart.Add(15 * time.Hour)
	dueTomorrow := dayStart.Add(30 * time.Hour)

	today := newActionLog(fixture.unitHead, fixture.economist)
	today.DueDate = &dueToday
	later := newActionLog(fixture.unitHead, fixture.economist)
	later.DueDate = &dueTomorrow
	closed := newActionLog(fixture.unitHead, fixture.economist)
	closed.DueDate = &dueToday
	closed.Status = models.StatusClosed

	for _, log := range []*models.ActionLog{today, later, closed} {
		require.NoError(t, repo.Create(context.Background(), log, ActionLogChange{}))
	}

	due, err := repo.ListDueBetween(context.Background(), dayStart, dayStart.Add(24*time.Hour), []string{models.StatusOpen, models.StatusInProgress})
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, today.ID, due[0].ID)
}
