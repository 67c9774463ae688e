package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/models"
)

func TestNotifySkipsActorAndDuplicates(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	err := f.notifications.Notify(ctx, Notice{
		Recipients:    []uint{f.economist.ID, f.economist.ID, f.senior.ID, 0},
		ActionLogID:   1,
		Type:          models.NotificationAssignment,
		Message:       "<i>You were assigned</i>",
		ExcludeUserID: f.senior.ID,
	})
	require.NoError(t, err)

	inbox, err := f.notifications.List(ctx, f.economist.ID, dto.NotificationListQuery{})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, "You were assigned", inbox[0].Message)

	empty, err := f.notifications.List(ctx, f.senior.ID, dto.NotificationListQuery{})
	require.NoError(t, err)
	require.Empty(t, empty)

	require.Error(t, f.notifications.Notify(ctx, Notice{Recipients: []uint{f.economist.ID}, Message: "<script></script>"}))
}

func TestMarkReadOwnNotificationOnly(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	require.NoError(t, f.notifications.Notify(ctx, Notice{
		Recipients:  []uint{f.economist.ID},
		ActionLogID: 1,
		Type:        models.NotificationDueDate,
		Message:     "Due today",
	}))

	inbox, err := f.notifications.List(ctx, f.economist.ID, dto.NotificationListQuery{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	_, err = f.notifications.MarkRead(ctx, inbox[0].ID, f.senior.ID)
	require.ErrorIs(t, err, ErrNotificationNotFound)

	read, err := f.notifications.MarkRead(ctx, inbox[0].ID, f.economist.ID)
	require.NoError(t, err)
	require.True(t, read.Read)

	unread, err := f.notifications.List(ctx, f.economist.ID, dto.NotificationListQuery{UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	sent, err := f.notifications.NotifiedOn(ctx, f.economist.ID, 1, models.NotificationDueDate, read.CreatedAt)
	require.NoError(t, err)
	require.True(t, sent)

	sent, err = f.notifications.NotifiedOn(ctx, f.economist.ID, 1, models.NotificationDueDate, read.CreatedAt.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.False(t, sent)

	_, err = f.notifications.List(ctx, 0, dto.NotificationListQuery{})
	requireValidationField(t, err, "user_id")
}
