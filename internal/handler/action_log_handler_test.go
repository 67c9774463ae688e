package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/handler"
	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/service"
)

func (f *apiFixture) createLog(actor models.User, assignees ...models.User) dto.ActionLogResponse {
	f.t.Helper()
	ids := make([]uint, 0, len(assignees))
	for _, user := range assignees {
		ids = append(ids, user.ID)
	}
	due := time.Now().UTC().Add(72 * time.Hour)
	resp, body := f.do(http.MethodPost, "/api/v1/action-logs", actor.ID, dto.ActionLogCreateRequest{
		Title:       "Quarterly fiscal outlook",
		Description: "Draft the outlook note.",
		DueDate:     &due,
		AssignedTo:  ids,
	})
	require.Equal(f.t, fiber.StatusCreated, resp.StatusCode, body.Message)

	var log dto.ActionLogResponse
	require.NoError(f.t, json.Unmarshal(body.Data, &log))
	return log
}

func TestActionLogLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	log := f.createLog(f.head, f.economist)
	require.Equal(t, models.StatusOpen, log.Status)
	base := fmt.Sprintf("/api/v1/action-logs/%d", log.ID)

	resp, body := f.do(http.MethodPost, base+"/status", f.economist.ID, dto.ActionLogStatusRequest{Status: models.StatusInProgress, Comment: "Started drafting"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body.Message)

	resp, body = f.do(http.MethodPost, base+"/approve", f.head.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body.Message)
	var approved dto.ActionLogResponse
	require.NoError(t, json.Unmarshal(body.Data, &approved))
	require.Equal(t, models.StatusClosed, approved.Status)
	require.NotNil(t, approved.ApprovalStatus)
	require.Equal(t, models.ApprovalUnitHeadApproved, *approved.ApprovalStatus)

	resp, _ = f.do(http.MethodPost, base+"/approve", f.head.ID, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = f.do(http.MethodGet, base+"/approvals", f.economist.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var approvals []dto.ApprovalRecordResponse
	require.NoError(t, json.Unmarshal(body.Data, &approvals))
	require.Len(t, approvals, 1)

	resp, body = f.do(http.MethodGet, base+"/audit", f.economist.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var trail []dto.AuditEntryResponse
	require.NoError(t, json.Unmarshal(body.Data, &trail))
	require.GreaterOrEqual(t, len(trail), 3)
}

func TestActionLogListPaginates(t *testing.T) {
	f := newAPIFixture(t)
	f.createLog(f.head, f.economist)
	f.createLog(f.head, f.economist)
	f.createLog(f.head, f.economist)

	resp, body := f.do(http.MethodGet, "/api/v1/action-logs?page=2&page_size=2&assigned_to_me=true", f.economist.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var items []dto.ActionLogResponse
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 1)

	var meta dto.PaginationMeta
	require.NoError(t, json.Unmarshal(body.Meta, &meta))
	require.Equal(t, int64(3), meta.TotalItems)
	require.Equal(t, 2, meta.TotalPages)

	resp, body = f.do(http.MethodGet, "/api/v1/action-logs", f.outsider.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Empty(t, items)
}

func TestActionLogErrorsMapToStatusCodes(t *testing.T) {
	f := newAPIFixture(t)
	log := f.createLog(f.head, f.economist)
	base := fmt.Sprintf("/api/v1/action-logs/%d", log.ID)

	resp, body := f.do(http.MethodPost, "/api/v1/action-logs", f.head.ID, dto.ActionLogCreateRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(body.Details, &fields))
	require.Contains(t, fields, "title")
	require.Contains(t, fields, "description")

	resp, _ = f.do(http.MethodGet, base, f.outsider.ID, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(http.MethodGet, "/api/v1/action-logs/abc", f.head.ID, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(http.MethodGet, base, 0, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = f.do(http.MethodPost, base+"/assign", f.head.ID, dto.ActionLogAssignRequest{AssignedTo: []uint{f.economist.ID}})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var details map[string]string
	require.NoError(t, json.Unmarshal(body.Details, &details))
	require.Equal(t, "not_reassignable", details["code"])

	resp, _ = f.do(http.MethodPost, base+"/status", f.outsider.ID, dto.ActionLogStatusRequest{Status: models.StatusInProgress, Comment: "mine now"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, base+"/reject", nil)
	req.Header.Set(testUserHeader, fmt.Sprint(f.head.ID))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = f.send(req)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAssignableUsersEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(http.MethodGet, "/api/v1/action-logs/assignable-users", f.head.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var users []dto.UserSummary
	require.NoError(t, json.Unmarshal(body.Data, &users))
	require.Len(t, users, 1)
	require.Equal(t, f.economist.ID, users[0].ID)
}

type failingEngine struct {
	service.ActionLogService
	err error
}

func (e failingEngine) Get(context.Context, uint, uint) (dto.ActionLogResponse, error) {
	return dto.ActionLogResponse{}, e.err
}

func TestInfrastructureErrorsAreNotLeaked(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("%w: redis timeout", service.ErrConflict), fiber.StatusConflict, service.ErrConflict.Error()},
		{fmt.Errorf("%w: dial tcp", service.ErrUnavailable), fiber.StatusServiceUnavailable, service.ErrUnavailable.Error()},
		{errors.New("pq: secret table name"), fiber.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			c.Locals(middleware.LocalUserID, uint(1))
			return c.Next()
		})
		handler.NewActionLogHandler(failingEngine{err: tc.err}, nil, zerolog.Nop()).Register(app.Group("/logs"))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/logs/5", nil), -1)
		require.NoError(t, err)
		require.Equal(t, tc.status, resp.StatusCode)

		var body envelope
		decodeResponse(t, resp, &body)
		require.False(t, body.Success)
		require.Equal(t, tc.msg, body.Message)
	}
}
