package reconcile

import (
	"errors"
	"log"
	"time"

	"punchclock/models"

	"gorm.io/gorm"
)

// Engine runs reconciliation for one target date across every user that has
// punch rows on it. A failure for one user skips that user and the batch
// continues; the returned count reflects successfully rewritten rows only.
type Engine struct {
	db    *gorm.DB
	actor string
}

func NewEngine(db *gorm.DB, actor string) *Engine {
	if actor == "" {
		actor = "system"
	}
	return &Engine{db: db, actor: actor}
}

// Run reconciles every user with at least one record on the target date and
// returns the number of rows adjusted. Running it twice on the same date
// adjusts zero rows the second time.
func (e *Engine) Run(date time.Time) (int, error) {
	start := models.DateOf(date)
	end := start.AddDate(0, 0, 1)

	var userIDs []uint
	err := e.db.Model(&models.AttendanceRecord{}).
		Where("date >= ? AND date < ?", start, end).
		Distinct().
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return 0, err
	}

	adjusted := 0
	for _, userID := range userIDs {
		n, err := e.reconcileUser(userID, start, end)
		if err != nil {
			log.Printf("reconcile: user %d date %s skipped: %v", userID, start.Format("2006-01-02"), err)
			continue
		}
		adjusted += n
	}
	return adjusted, nil
}

func (e *Engine) reconcileUser(userID uint, start, end time.Time) (int, error) {
	var records []models.AttendanceRecord
	err := e.db.
		Where("user_id = ? AND date >= ? AND date < ?", userID, start, end).
		Order("login_time asc").
		Find(&records).Error
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	schedule, err := e.loadSchedule(userID)
	if err != nil {
		return 0, err
	}

	res, err := Resolve(records, schedule, start)
	if errors.Is(err, ErrNoSchedule) || errors.Is(err, ErrNoRecords) {
		// Cannot safely guess a logout for this user; leave the rows as
		// they are.
		log.Printf("reconcile: user %d date %s: %v", userID, start.Format("2006-01-02"), err)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	adjusted := 0
	err = e.db.Transaction(func(tx *gorm.DB) error {
		for i := range records {
			rec := &records[i]
			if !NeedsAdjustment(rec, res) {
				continue
			}

			audit := models.AdjustmentAudit{
				AttendanceID:       rec.ID,
				UserID:             rec.UserID,
				Date:               rec.Date,
				OriginalLoginTime:  rec.LoginTime,
				OriginalLogoutTime: rec.LogoutTime,
				OriginalTotalHours: rec.TotalHours,
				NewLogoutTime:      res.Logout,
				NewTotalHours:      res.Hours,
				Reason:             res.Reason,
				AdjustedBy:         e.actor,
			}

			update := tx.Model(&models.AttendanceRecord{}).
				Where("id = ?", rec.ID).
				Updates(map[string]interface{}{
					"logout_time":   res.Logout,
					"total_hours":   res.Hours,
					"auto_adjusted": true,
				})
			if update.Error != nil {
				return update.Error
			}
			if err := tx.Create(&audit).Error; err != nil {
				return err
			}
			adjusted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return adjusted, nil
}

func (e *Engine) loadSchedule(userID uint) (*models.ScheduleWindow, error) {
	var schedule models.ScheduleWindow
	err := e.db.Where("user_id = ?", userID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}
