package models

import "time"

type AdjustmentReason string

const (
	// ReasonFinalPair means a real logout existed somewhere in the day's
	// group and every row was aligned to it.
	ReasonFinalPair AdjustmentReason = "FINAL_PAIR"
	// ReasonFallbackSchedule means no logout existed and the schedule end
	// was used instead.
	ReasonFallbackSchedule AdjustmentReason = "FALLBACK_SCHEDULE"
)

// AdjustmentAudit is an append-only record of one correction made to an
// attendance row. Entries are never updated or deleted.
type AdjustmentAudit struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time        `json:"created_at"`
	AttendanceID       uint             `gorm:"not null;index" json:"attendance_id"`
	UserID             uint             `gorm:"not null;index" json:"user_id"`
	Date               time.Time        `gorm:"not null;type:date;index" json:"date"`
	OriginalLoginTime  time.Time        `gorm:"not null" json:"original_login_time"`
	OriginalLogoutTime *time.Time       `json:"original_logout_time"`
	OriginalTotalHours *float64         `json:"original_total_hours"`
	NewLogoutTime      time.Time        `gorm:"not null" json:"new_logout_time"`
	NewTotalHours      float64          `gorm:"not null" json:"new_total_hours"`
	Reason             AdjustmentReason `gorm:"not null;size:32" json:"reason"`
	AdjustedBy         string           `gorm:"not null;size:100" json:"adjusted_by"`
}
