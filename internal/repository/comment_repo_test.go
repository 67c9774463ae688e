package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/models"
)

func TestCommentRepositoryCreateWritesAuditInSameTransaction(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedDirectory(t, db)
	logs := NewActionLogRepository(db)
	repo := NewCommentRepository(db)

	log := newActionLog(fixture.unitHead, fixture.economist)
	require.NoError(t, logs.Create(context.Background(), log, ActionLogChange{}))

	root := &models.Comment{ActionLogID: log.ID, AuthorID: fixture.economist.ID, Body: "first", Status: models.StatusOpen}
	audit := &models.AuditEntry{ActorID: fixture.economist.ID, ActorRole: models.RoleEconomist, Action: models.AuditActionComment}
	require.NoError(t, repo.Create(context.Background(), root, audit))
	require.Equal(t, log.ID, audit.ActionLogID)

	reply := &models.Comment{ActionLogID: log.ID, AuthorID: fixture.unitHead.ID, ParentCommentID: &root.ID, Body: "reply"}
	require.NoError(t, repo.Create(context.Background(), reply, nil))

	comments, err := repo.ListByActionLog(context.Background(), log.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "first", comments[0].Body)
	require.Equal(t, fixture.economist.ID, comments[0].Author.ID)

	found, err := repo.FindByID(context.Background(), reply.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ParentCommentID)
	require.Equal(t, root.ID, *found.ParentCommentID)

	var entries []models.AuditEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	require.EqualValues(t, root.ID, entries[0].Metadata["comment_id"])
}
