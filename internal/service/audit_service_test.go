package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

func newAuditFixture(t *testing.T) (*workflowFixture, AuditService) {
	t.Helper()
	f := newWorkflowFixture(t)
	svc := NewAuditService(repository.NewAuditRepository(f.db), f.logs, f.directory, NewValidator(), zerolog.Nop())
	return f, svc
}

func TestAuditTrailForActionLog(t *testing.T) {
	f, svc := newAuditFixture(t)
	ctx := context.Background()
	log := f.createLog(f.infraHead, f.days(3), f.economist)

	_, err := f.engine.UpdateStatus(ctx, f.economist.ID, log.ID, dto.ActionLogStatusRequest{Status: models.StatusInProgress, Comment: "Started"})
	require.NoError(t, err)

	entries, err := svc.ForActionLog(ctx, f.economist.ID, log.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	require.Contains(t, actions, models.AuditActionCreate)
	require.Contains(t, actions, models.AuditActionUpdateStatus)

	_, err = svc.ForActionLog(ctx, f.outsider.ID, log.ID)
	require.ErrorIs(t, err, ErrActionLogNotFound)
}

func TestAuditListReservedForCommissioner(t *testing.T) {
	f, svc := newAuditFixture(t)
	ctx := context.Background()
	f.createLog(f.infraHead, f.days(3), f.economist)
	f.createLog(f.infraHead, f.days(4), f.senior)

	_, err := svc.List(ctx, f.assistant.ID, dto.AuditListQuery{})
	require.ErrorIs(t, err, ErrPermissionDenied)

	page, err := svc.List(ctx, f.commissioner.ID, dto.AuditListQuery{PageSize: 1, Action: models.AuditActionCreate})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, int64(2), page.Pagination.TotalItems)
	require.Equal(t, 2, page.Pagination.TotalPages)

	_, err = svc.List(ctx, f.commissioner.ID, dto.AuditListQuery{Action: "delete"})
	requireValidationField(t, err, "action")
}
