package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/models"
)

func TestNotificationRepositoryListAndMarkRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)

	require.NoError(t, repo.CreateBatch(context.Background(), []models.Notification{
		{UserID: 3, ActionLogID: 1, Type: models.NotificationAssignment, Message: "assigned"},
		{UserID: 3, ActionLogID: 2, Type: models.NotificationComment, Message: "comment"},
		{UserID: 4, ActionLogID: 1, Type: models.NotificationAssignment, Message: "assigned"},
	}))

	items, err := repo.ListByUser(context.Background(), 3, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = repo.MarkRead(context.Background(), items[0].ID, 4)
	require.Error(t, err, "other users cannot mark the notification")

	marked, err := repo.MarkRead(context.Background(), items[0].ID, 3)
	require.NoError(t, err)
	require.True(t, marked.Read)

	unread, err := repo.ListByUser(context.Background(), 3, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.NotEqual(t, marked.ID, unread[0].ID)
}

func TestNotificationRepositoryExistsForDay(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)

	require.NoError(t, repo.CreateBatch(context.Background(), []models.Notification{
		{UserID: 3, ActionLogID: 1, Type: models.NotificationDueDate, Message: "due today"},
	}))

	now := time.Now()
	exists, err := repo.ExistsForDay(context.Background(), 3, 1, models.NotificationDueDate, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsForDay(context.Background(), 3, 2, models.NotificationDueDate, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, exists)
}
