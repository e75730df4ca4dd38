package models

import (
	"time"

	"gorm.io/gorm"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
)

// AttendanceRecord is one punch session attempt for a user on a shift date.
// Date is the shift date, not necessarily the calendar date of every
// timestamp inside it: overnight shifts span midnight. A user may hold
// several records on the same date; at most one should still be open
// (logout null) by the time reconciliation runs.
type AttendanceRecord struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
	UserID        uint             `gorm:"not null;index:idx_attendance_user_date" json:"user_id"`
	User          User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Date          time.Time        `gorm:"not null;type:date;index:idx_attendance_user_date" json:"date"`
	LoginTime     time.Time        `gorm:"not null" json:"login_time"`
	LogoutTime    *time.Time       `json:"logout_time"`
	TotalHours    *float64         `json:"total_hours"`
	Status        AttendanceStatus `gorm:"not null;size:20" json:"status"`
	Reason        string           `gorm:"size:500" json:"reason"`
	AutoAdjusted  bool             `gorm:"default:false" json:"auto_adjusted"`
	LastHeartbeat *time.Time       `json:"last_heartbeat,omitempty"`
}

func (r *AttendanceRecord) IsOpen() bool {
	return r.LogoutTime == nil
}

// DateOf truncates t to midnight in its own location, the canonical form
// for the Date column.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// HoursBetween returns the span from login to logout in hours, clamped to
// zero so a logout that somehow precedes the login never yields negative
// worked time.
func HoursBetween(login, logout time.Time) float64 {
	h := logout.Sub(login).Hours()
	if h < 0 {
		return 0
	}
	return h
}
