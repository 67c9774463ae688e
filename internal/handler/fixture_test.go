package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/actionlog-api/internal/handler"
	"github.com/noah-isme/actionlog-api/internal/lock"
	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/repository"
	"github.com/noah-isme/actionlog-api/internal/service"
)

const testUserHeader = "X-Test-User"

type apiFixture struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB

	commissioner models.User
	head         models.User
	economist    models.User
	outsider     models.User
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
	Meta    json.RawMessage `json:"meta"`
}

// newAPIFixture mounts the real handlers over sqlite-backed services. Requests authenticate
// with the X-Test-User header instead of a JWT.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:api_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	f := &apiFixture{t: t, db: db}
	f.seed()

	log := zerolog.Nop()
	validate := service.NewValidator()
	locker := lock.NewKeyedMutex()
	logs := repository.NewActionLogRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	directory := service.NewDirectoryService(directoryRepo, nil, "test", 0, log)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), validate, log)
	hub := service.NewEventHub(nil, nil, "", log)

	engine := service.NewActionLogService(logs, directory, locker, notifications, hub, validate, service.WorkflowSettings{Location: time.UTC}, log)
	comments := service.NewCommentService(logs, repository.NewCommentRepository(db), directory, locker, service.NewReadTracker(nil, "test", time.Hour, log), notifications, hub, validate, time.Second, log)
	audit := service.NewAuditService(repository.NewAuditRepository(db), logs, directory, validate, log)
	attachments := service.NewAttachmentService(nil, repository.NewAttachmentRepository(db), logs, directory, hub, 1, log)
	seeds := service.NewSeedService(directoryRepo, true, "seed-secret", log)

	app := fiber.New()
	handler.NewSeedHandler(seeds, directory, log).Register(app.Group("/seed"))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		if raw := c.Get(testUserHeader); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			require.NoError(t, err)
			c.Locals(middleware.LocalUserID, uint(id))
		}
		return c.Next()
	})
	handler.NewActionLogHandler(engine, audit, log).Register(api.Group("/action-logs"))
	handler.NewCommentHandler(comments, log).Register(api.Group("/action-logs/:id/comments"))
	handler.NewAttachmentHandler(attachments, log).Register(api.Group("/action-logs/:id/attachments"))
	handler.NewDirectoryHandler(directory, log).Register(api)
	handler.NewNotificationHandler(notifications, hub, time.Second, log).Register(api.Group("/notifications"))
	handler.NewAuditHandler(audit, log).Register(api.Group("/audit"))

	f.app = app
	return f
}

func (f *apiFixture) seed() {
	roles := service.DefaultRoles()
	require.NoError(f.t, f.db.Create(&roles).Error)
	roleID := func(name string) *uint {
		for _, role := range roles {
			if role.Name == name {
				id := role.ID
				return &id
			}
		}
		f.t.Fatalf("role %s missing", name)
		return nil
	}

	department := models.Department{Name: "Economic Policy", Code: "EPD"}
	require.NoError(f.t, f.db.Create(&department).Error)
	infra := models.DepartmentUnit{DepartmentID: department.ID, Name: "Infrastructure", UnitType: models.UnitTypeInfrastructure}
	admin := models.DepartmentUnit{DepartmentID: department.ID, Name: "Public Administration", UnitType: models.UnitTypePublicAdmin}
	require.NoError(f.t, f.db.Create(&infra).Error)
	require.NoError(f.t, f.db.Create(&admin).Error)

	newUser := func(username, role, designation string, unit *uint) models.User {
		user := models.User{
			Username:         username,
			FirstName:        username,
			EmployeeID:       "EMP-" + username,
			RoleID:           roleID(role),
			Designation:      designation,
			DepartmentID:     &department.ID,
			DepartmentUnitID: unit,
			IsActive:         true,
		}
		require.NoError(f.t, f.db.Create(&user).Error)
		return user
	}

	f.commissioner = newUser("commissioner", models.RoleCommissioner, "Commissioner", nil)
	f.head = newUser("head", models.RolePrincipalEconomist, "Head of Infrastructure", &infra.ID)
	f.economist = newUser("economist", models.RoleEconomist, "Economist", &infra.ID)
	f.outsider = newUser("outsider", models.RoleEconomist, "Economist", &admin.ID)
}

func (f *apiFixture) do(method, path string, actor uint, body interface{}) (*http.Response, envelope) {
	f.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(actor), 10))
	}
	return f.send(req)
}

func (f *apiFixture) send(req *http.Request) (*http.Response, envelope) {
	f.t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)

	var body envelope
	decodeResponse(f.t, resp, &body)
	return resp, body
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}
