package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
	Meta    json.RawMessage `json:"meta"`
}

func TestOKCarriesPaginationMeta(t *testing.T) {
	app := fiber.New()
	app.Get("/action-logs", func(c *fiber.Ctx) error {
		list := dto.ActionLogListResponse{
			Items:      []dto.ActionLogResponse{{ID: 7, Title: "Road budget"}},
			Pagination: dto.PaginationMeta{Page: 2, PageSize: 1, TotalItems: 3, TotalPages: 3},
		}
		return utils.OK(c, list.Items, "", list.Pagination)
	})

	payload := perform(t, app, http.MethodGet, "/action-logs", fiber.StatusOK)
	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)

	var items []dto.ActionLogResponse
	require.NoError(t, json.Unmarshal(payload.Data, &items))
	require.Len(t, items, 1)
	require.Equal(t, uint(7), items[0].ID)

	var meta dto.PaginationMeta
	require.NoError(t, json.Unmarshal(payload.Meta, &meta))
	require.Equal(t, dto.PaginationMeta{Page: 2, PageSize: 1, TotalItems: 3, TotalPages: 3}, meta)
	require.Empty(t, payload.Details)
}

func TestFailReportsEveryField(t *testing.T) {
	app := fiber.New()
	app.Post("/action-logs/:id/status", func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", map[string]string{
			"status":  "must be one of: open in_progress closed",
			"comment": "is required",
		})
	})

	payload := perform(t, app, http.MethodPost, "/action-logs/1/status", fiber.StatusBadRequest)
	require.False(t, payload.Success)
	require.Equal(t, "validation failed", payload.Message)
	require.Empty(t, payload.Data)

	var details map[string]string
	require.NoError(t, json.Unmarshal(payload.Details, &details))
	require.Len(t, details, 2)
	require.Equal(t, "is required", details["comment"])
}

func TestStatusAndMessageDefaults(t *testing.T) {
	app := fiber.New()
	app.Post("/created", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "", fiber.Map{"id": 1})
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "")
	})

	created := perform(t, app, http.MethodPost, "/created", fiber.StatusCreated)
	require.Equal(t, "success", created.Message)

	missing := perform(t, app, http.MethodGet, "/missing", fiber.StatusNotFound)
	require.False(t, missing.Success)
	require.Equal(t, "error", missing.Message)
	require.Empty(t, missing.Details)
}

func perform(t *testing.T, app *fiber.App, method, path string, wantStatus int) envelope {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}
