package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/actionlog-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type directoryFixture struct {
	department   models.Department
	unit         models.DepartmentUnit
	otherUnit    models.DepartmentUnit
	commissioner models.User
	unitHead     models.User
	economist    models.User
	outsider     models.User
}

func seedDirectory(t *testing.T, db *gorm.DB) directoryFixture {
	t.Helper()

	roles := []models.Role{
		{Name: models.RoleEconomist, CanCreateLogs: true, CanUpdateStatus: true},
		{Name: models.RoleCommissioner, CanCreateLogs: true, CanUpdateStatus: true, CanApprove: true, CanViewAllLogs: true},
	}
	require.NoError(t, db.Create(&roles).Error)

	department := models.Department{Name: "Economic Policy", Code: "EPD"}
	require.NoError(t, db.Create(&department).Error)
	unit := models.DepartmentUnit{DepartmentID: department.ID, Name: "Infrastructure", UnitType: models.UnitTypeInfrastructure}
	otherUnit := models.DepartmentUnit{DepartmentID: department.ID, Name: "Public Administration", UnitType: models.UnitTypePublicAdmin}
	require.NoError(t, db.Create(&unit).Error)
	require.NoError(t, db.Create(&otherUnit).Error)

	newUser := func(username string, role models.Role, designation string, unitID *uint) models.User {
		user := models.User{
			Username:         username,
			FirstName:        strings.ToUpper(username[:1]) + username[1:],
			LastName:         "Tester",
			EmployeeID:       "EMP-" + username,
			RoleID:           &role.ID,
			Designation:      designation,
			DepartmentID:     &department.ID,
			DepartmentUnitID: unitID,
			IsActive:         true,
		}
		require.NoError(t, db.Create(&user).Error)
		return user
	}

	return directoryFixture{
		department:   department,
		unit:         unit,
		otherUnit:    otherUnit,
		commissioner: newUser("commissioner", roles[1], "Commissioner", &unit.ID),
		unitHead:     newUser("head", roles[0], "Head of Infrastructure", &unit.ID),
		economist:    newUser("economist", roles[0], "Economist", &unit.ID),
		outsider:     newUser("outsider", roles[0], "Economist", &otherUnit.ID),
	}
}
