package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/lock"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

type workflowFixture struct {
	t             *testing.T
	db            *gorm.DB
	now           time.Time
	logs          repository.ActionLogRepository
	directory     DirectoryService
	engine        ActionLogService
	comments      CommentService
	notifications NotificationService
	reads         ReadTracker

	department models.Department
	infra      models.DepartmentUnit
	admin      models.DepartmentUnit

	commissioner models.User
	assistant    models.User
	infraHead    models.User
	adminHead    models.User
	economist    models.User
	senior       models.User
	outsider     models.User
	drifter      models.User
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:svc_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	db := openTestDB(t)
	f := &workflowFixture{
		t:   t,
		db:  db,
		now: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
	}

	roles := DefaultRoles()
	require.NoError(t, db.Create(&roles).Error)
	roleByName := make(map[string]models.Role, len(roles))
	for _, role := range roles {
		roleByName[role.Name] = role
	}

	f.department = models.Department{Name: "Economic Policy", Code: "EPD"}
	require.NoError(t, db.Create(&f.department).Error)
	f.infra = models.DepartmentUnit{DepartmentID: f.department.ID, Name: "Infrastructure", UnitType: models.UnitTypeInfrastructure}
	f.admin = models.DepartmentUnit{DepartmentID: f.department.ID, Name: "Public Administration", UnitType: models.UnitTypePublicAdmin}
	require.NoError(t, db.Create(&f.infra).Error)
	require.NoError(t, db.Create(&f.admin).Error)

	newUser := func(username, roleName, designation string, unitID *uint) models.User {
		role := roleByName[roleName]
		user := models.User{
			Username:         username,
			FirstName:        strings.ToUpper(username[:1]) + username[1:],
			LastName:         "Tester",
			EmployeeID:       "EMP-" + username,
			RoleID:           &role.ID,
			Designation:      designation,
			DepartmentID:     &f.department.ID,
			DepartmentUnitID: unitID,
			IsActive:         true,
		}
		require.NoError(t, db.Create(&user).Error)
		return user
	}

	f.commissioner = newUser("commissioner", models.RoleCommissioner, "Commissioner", nil)
	f.assistant = newUser("assistant", models.RoleAssistantCommissioner, "Assistant Commissioner", nil)
	f.infraHead = newUser("infrahead", models.RolePrincipalEconomist, "Head of Infrastructure", &f.infra.ID)
	f.adminHead = newUser("adminhead", models.RolePrincipalEconomist, "Head of Public Administration", &f.admin.ID)
	f.economist = newUser("economist", models.RoleEconomist, "Economist", &f.infra.ID)
	f.senior = newUser("senior", models.RoleSeniorEconomist, "Senior Economist", &f.infra.ID)
	f.outsider = newUser("outsider", models.RoleEconomist, "Economist", &f.admin.ID)
	f.drifter = newUser("drifter", models.RoleEconomist, "Economist", nil)

	validate := NewValidator()
	log := zerolog.Nop()
	locker := lock.NewKeyedMutex()

	f.logs = repository.NewActionLogRepository(db)
	f.directory = NewDirectoryService(repository.NewDirectoryRepository(db), nil, "test", time.Minute, log)
	f.notifications = NewNotificationService(repository.NewNotificationRepository(db), validate, log)
	f.reads = NewReadTracker(nil, "test", time.Hour, log)

	engine := NewActionLogService(f.logs, f.directory, locker, f.notifications, nil, validate, WorkflowSettings{Location: time.UTC}, log)
	engine.(*actionLogService).now = f.clock
	f.engine = engine

	comments := NewCommentService(f.logs, repository.NewCommentRepository(db), f.directory, locker, f.reads, f.notifications, nil, validate, time.Second, log)
	comments.(*commentService).now = f.clock
	f.comments = comments

	return f
}

func (f *workflowFixture) clock() time.Time {
	return f.now
}

func (f *workflowFixture) days(n int) *time.Time {
	due := f.now.AddDate(0, 0, n)
	return &due
}

// createLog creates a log as actor and fails the test on error.
func (f *workflowFixture) createLog(actor models.User, due *time.Time, assignees ...models.User) dto.ActionLogResponse {
	f.t.Helper()
	ids := make([]uint, 0, len(assignees))
	for _, user := range assignees {
		ids = append(ids, user.ID)
	}
	response, err := f.engine.Create(context.Background(), actor.ID, dto.ActionLogCreateRequest{
		Title:       "Review road maintenance budget",
		Description: "Prepare a costed review of the maintenance backlog.",
		DueDate:     due,
		AssignedTo:  ids,
	})
	require.NoError(f.t, err)
	return response
}
