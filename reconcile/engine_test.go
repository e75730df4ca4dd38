package reconcile

import (
	"path/filepath"
	"testing"
	"time"

	"punchclock/database"
	"punchclock/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		FullName:     username,
		PasswordHash: "x",
		Role:         models.RoleEmployee,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestEngineFinalPairRewrite(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice")

	early := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(10, 0), LogoutTime: atPtr(12, 0), TotalHours: hoursPtr(2),
	}
	late := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(16, 0), LogoutTime: atPtr(18, 0),
	}
	require.NoError(t, db.Create(&early).Error)
	require.NoError(t, db.Create(&late).Error)

	adjusted, err := NewEngine(db, "").Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 2, adjusted, "early row has a stale logout, late row has no hours")

	var rows []models.AttendanceRecord
	require.NoError(t, db.Where("user_id = ?", user.ID).Order("login_time asc").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.LogoutTime)
		assert.True(t, row.LogoutTime.Equal(at(18, 0)))
		require.NotNil(t, row.TotalHours)
		assert.InDelta(t, 2.0, *row.TotalHours, HoursEpsilon)
		assert.True(t, row.AutoAdjusted)
	}

	var audits []models.AdjustmentAudit
	require.NoError(t, db.Order("attendance_id asc").Find(&audits).Error)
	require.Len(t, audits, 2)

	first := audits[0]
	assert.Equal(t, early.ID, first.AttendanceID)
	assert.True(t, first.OriginalLoginTime.Equal(at(10, 0)))
	require.NotNil(t, first.OriginalLogoutTime)
	assert.True(t, first.OriginalLogoutTime.Equal(at(12, 0)))
	require.NotNil(t, first.OriginalTotalHours)
	assert.InDelta(t, 2.0, *first.OriginalTotalHours, HoursEpsilon)
	assert.True(t, first.NewLogoutTime.Equal(at(18, 0)))
	assert.InDelta(t, 2.0, first.NewTotalHours, HoursEpsilon)
	assert.Equal(t, models.ReasonFinalPair, first.Reason)
	assert.Equal(t, "system", first.AdjustedBy)
}

func TestEngineAlreadyMatchingRowUntouched(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "bob")

	stale := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(10, 0), LogoutTime: atPtr(12, 0), TotalHours: hoursPtr(2),
	}
	matching := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(16, 0), LogoutTime: atPtr(18, 0), TotalHours: hoursPtr(2),
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&matching).Error)

	adjusted, err := NewEngine(db, "").Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, adjusted, "the row already at the final pair must not be rewritten")

	var reloaded models.AttendanceRecord
	require.NoError(t, db.First(&reloaded, matching.ID).Error)
	assert.False(t, reloaded.AutoAdjusted)

	var auditCount int64
	db.Model(&models.AdjustmentAudit{}).Count(&auditCount)
	assert.EqualValues(t, 1, auditCount)
}

func TestEngineFixedPoint(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "carol")
	require.NoError(t, db.Create(&models.ScheduleWindow{
		UserID: user.ID, StartTime: "09:00", EndTime: "17:30",
	}).Error)

	open := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(9, 30),
	}
	require.NoError(t, db.Create(&open).Error)

	engine := NewEngine(db, "")

	adjusted, err := engine.Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, adjusted)

	adjusted, err = engine.Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 0, adjusted, "second run must be a fixed point")

	var auditCount int64
	db.Model(&models.AdjustmentAudit{}).Count(&auditCount)
	assert.EqualValues(t, 1, auditCount, "no redundant audit writes on the second run")
}

func TestEngineOvernightFallback(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "dave")
	require.NoError(t, db.Create(&models.ScheduleWindow{
		UserID: user.ID, StartTime: "22:00", EndTime: "06:00",
	}).Error)

	open := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(22, 0),
	}
	require.NoError(t, db.Create(&open).Error)

	adjusted, err := NewEngine(db, "nightshift-admin").Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, adjusted)

	var reloaded models.AttendanceRecord
	require.NoError(t, db.First(&reloaded, open.ID).Error)
	require.NotNil(t, reloaded.LogoutTime)
	want := time.Date(2024, 3, 13, 6, 0, 0, 0, time.UTC)
	assert.True(t, reloaded.LogoutTime.Equal(want), "logout must land on the next calendar day")
	require.NotNil(t, reloaded.TotalHours)
	assert.InDelta(t, 8.0, *reloaded.TotalHours, HoursEpsilon)

	var audit models.AdjustmentAudit
	require.NoError(t, db.First(&audit).Error)
	assert.Equal(t, models.ReasonFallbackSchedule, audit.Reason)
	assert.Nil(t, audit.OriginalLogoutTime)
	assert.Nil(t, audit.OriginalTotalHours)
	assert.Equal(t, "nightshift-admin", audit.AdjustedBy)
}

func TestEngineNoScheduleSkip(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "erin")

	open := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(9, 0),
	}
	require.NoError(t, db.Create(&open).Error)

	adjusted, err := NewEngine(db, "").Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 0, adjusted)

	var reloaded models.AttendanceRecord
	require.NoError(t, db.First(&reloaded, open.ID).Error)
	assert.Nil(t, reloaded.LogoutTime, "no safe guess exists, row must be untouched")
	assert.False(t, reloaded.AutoAdjusted)

	var auditCount int64
	db.Model(&models.AdjustmentAudit{}).Count(&auditCount)
	assert.EqualValues(t, 0, auditCount)
}

func TestEngineBatchContinuesPastSkippedUsers(t *testing.T) {
	db := newTestDB(t)

	scheduled := seedUser(t, db, "frank")
	require.NoError(t, db.Create(&models.ScheduleWindow{
		UserID: scheduled.ID, StartTime: "09:00", EndTime: "17:00",
	}).Error)
	unscheduled := seedUser(t, db, "grace")

	require.NoError(t, db.Create(&models.AttendanceRecord{
		UserID: scheduled.ID, Date: testDate, Status: models.StatusPresent, LoginTime: at(9, 0),
	}).Error)
	require.NoError(t, db.Create(&models.AttendanceRecord{
		UserID: unscheduled.ID, Date: testDate, Status: models.StatusPresent, LoginTime: at(9, 0),
	}).Error)

	adjusted, err := NewEngine(db, "").Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, adjusted, "only the user with a schedule is adjusted")
}

func TestEngineStorageFailureSkipsUserAndContinues(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "oscar")
	require.NoError(t, db.Create(&models.ScheduleWindow{
		UserID: user.ID, StartTime: "09:00", EndTime: "17:00",
	}).Error)

	stale := models.AttendanceRecord{
		UserID: user.ID, Date: testDate, Status: models.StatusPresent,
		LoginTime: at(9, 0), LogoutTime: atPtr(12, 0), TotalHours: hoursPtr(3),
	}
	require.NoError(t, db.Create(&stale).Error)

	// Break the audit append so the per-user transaction fails mid-write.
	require.NoError(t, db.Migrator().DropTable(&models.AdjustmentAudit{}))

	adjusted, err := NewEngine(db, "").Run(testDate)
	require.NoError(t, err, "a storage failure for one user must not fail the batch")
	assert.Equal(t, 0, adjusted, "the count reflects successful writes only")

	var reloaded models.AttendanceRecord
	require.NoError(t, db.First(&reloaded, stale.ID).Error)
	require.NotNil(t, reloaded.LogoutTime)
	assert.True(t, reloaded.LogoutTime.Equal(at(12, 0)), "the row update rolls back with the failed audit write")
	assert.False(t, reloaded.AutoAdjusted)
}

func TestEngineBadScheduleSkipsUserAndContinues(t *testing.T) {
	db := newTestDB(t)

	broken := seedUser(t, db, "peggy")
	require.NoError(t, db.Create(&models.ScheduleWindow{
		UserID: broken.ID, StartTime: "9am", EndTime: "5pm",
	}).Error)
	healthy := seedUser(t, db, "quentin")
	require.NoError(t, db.Create(&models.ScheduleWindow{
		UserID: healthy.ID, StartTime: "09:00", EndTime: "17:00",
	}).Error)

	brokenRow := models.AttendanceRecord{
		UserID: broken.ID, Date: testDate, Status: models.StatusPresent, LoginTime: at(9, 0),
	}
	require.NoError(t, db.Create(&brokenRow).Error)
	require.NoError(t, db.Create(&models.AttendanceRecord{
		UserID: healthy.ID, Date: testDate, Status: models.StatusPresent, LoginTime: at(9, 0),
	}).Error)

	adjusted, err := NewEngine(db, "").Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, adjusted, "the healthy user is still reconciled")

	var reloaded models.AttendanceRecord
	require.NoError(t, db.First(&reloaded, brokenRow.ID).Error)
	assert.Nil(t, reloaded.LogoutTime, "the failing user's row is left untouched")
}

func TestEngineIgnoresOtherDates(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "heidi")
	require.NoError(t, db.Create(&models.ScheduleWindow{
		UserID: user.ID, StartTime: "09:00", EndTime: "17:00",
	}).Error)

	otherDate := testDate.AddDate(0, 0, -1)
	require.NoError(t, db.Create(&models.AttendanceRecord{
		UserID: user.ID, Date: otherDate, Status: models.StatusPresent,
		LoginTime: otherDate.Add(9 * time.Hour),
	}).Error)

	adjusted, err := NewEngine(db, "").Run(testDate)
	require.NoError(t, err)
	assert.Equal(t, 0, adjusted)
}
