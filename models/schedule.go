package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ScheduleWindow is a user's expected start/end time-of-day. An end that is
// numerically earlier than the start means the shift crosses midnight.
type ScheduleWindow struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	StartTime string         `gorm:"not null;size:5" json:"start_time"` // "09:00"
	EndTime   string         `gorm:"not null;size:5" json:"end_time"`   // "17:30"
}

const clockLayout = "15:04"

func ParseClock(s string) (time.Time, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t, nil
}

func (s *ScheduleWindow) Overnight() bool {
	start, err1 := ParseClock(s.StartTime)
	end, err2 := ParseClock(s.EndTime)
	if err1 != nil || err2 != nil {
		return false
	}
	return end.Before(start)
}

// StartOn returns the shift's expected start instant for the given date.
func (s *ScheduleWindow) StartOn(date time.Time) (time.Time, error) {
	return s.clockOn(date, s.StartTime, 0)
}

// EndOn returns the shift's expected end instant for the given date. For an
// overnight window the end lands on the day after the shift date.
func (s *ScheduleWindow) EndOn(date time.Time) (time.Time, error) {
	days := 0
	if s.Overnight() {
		days = 1
	}
	return s.clockOn(date, s.EndTime, days)
}

func (s *ScheduleWindow) clockOn(date time.Time, clock string, addDays int) (time.Time, error) {
	c, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	d := date.AddDate(0, 0, addDays)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, date.Location()), nil
}
