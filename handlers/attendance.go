package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"punchclock/config"
	"punchclock/database"
	"punchclock/middleware"
	"punchclock/models"

	"gorm.io/gorm"
)

type AttendanceHandler struct {
	config *config.Config
}

func NewAttendanceHandler(cfg *config.Config) *AttendanceHandler {
	return &AttendanceHandler{config: cfg}
}

// PunchIn opens a new attendance record for today. Duplicate punch-ins on
// the same day are tolerated; reconciliation collapses them later.
func (h *AttendanceHandler) PunchIn(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	now := time.Now()
	record := models.AttendanceRecord{
		UserID:    user.ID,
		Date:      models.DateOf(now),
		LoginTime: now,
		Status:    h.statusFor(user.ID, now),
	}

	if err := database.GetDB().Create(&record).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create attendance record")
		return
	}

	writeJSON(w, http.StatusOK, &record)
}

func (h *AttendanceHandler) statusFor(userID uint, now time.Time) models.AttendanceStatus {
	var schedule models.ScheduleWindow
	err := database.GetDB().Where("user_id = ?", userID).First(&schedule).Error
	if err != nil {
		return models.StatusPresent
	}
	start, err := schedule.StartOn(models.DateOf(now))
	if err != nil {
		return models.StatusPresent
	}
	if now.After(start.Add(h.config.LateGrace)) {
		return models.StatusLate
	}
	return models.StatusPresent
}

// PunchOut closes the caller's open session at the current server time.
func (h *AttendanceHandler) PunchOut(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	action, err := closeOpenSession(database.GetDB(), user.ID, time.Now(), "", false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to punch out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"action": action})
}

type autoPunchOutRequest struct {
	Trigger         string `json:"trigger"`
	Source          string `json:"source,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
	OriginalTrigger string `json:"originalTrigger,omitempty"`
}

// AutoPunchOut closes at most one open session for the caller. It is the
// idempotent target for closure beacons, keep-alive fallbacks and
// pending-closure replays: with no open session it answers noop, never an
// error, so duplicate delivery is harmless.
func (h *AttendanceHandler) AutoPunchOut(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req autoPunchOutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Trigger == "" {
		writeError(w, http.StatusBadRequest, "trigger is required")
		return
	}

	// The server decides the logout instant. A client timestamp may pull
	// it earlier (a replayed closure that really happened before now, even
	// on a previous day) but never push it past the current server time.
	now := time.Now()
	logout := now
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timestamp")
			return
		}
		if ts.Before(now) {
			logout = ts
		}
	}

	reason := "auto punch-out: " + req.Trigger
	if req.OriginalTrigger != "" {
		reason = fmt.Sprintf("auto punch-out: %s (originally %s)", req.Trigger, req.OriginalTrigger)
	}

	action, err := closeOpenSession(database.GetDB(), user.ID, logout, reason, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to close session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"action": action})
}

// closeOpenSession closes the caller's most recent open record with a single
// conditional update, so of two racing callers exactly one observes
// "updated" and the other "noop". It never creates records.
func closeOpenSession(db *gorm.DB, userID uint, logout time.Time, reason string, auto bool) (string, error) {
	var record models.AttendanceRecord
	err := db.
		Where("user_id = ? AND logout_time IS NULL", userID).
		Order("login_time desc").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "noop", nil
	}
	if err != nil {
		return "", err
	}

	if logout.Before(record.LoginTime) {
		logout = record.LoginTime
	}
	hours := models.HoursBetween(record.LoginTime, logout)

	updates := map[string]interface{}{
		"logout_time": logout,
		"total_hours": hours,
	}
	if auto {
		updates["auto_adjusted"] = true
		updates["reason"] = reason
	}

	result := db.Model(&models.AttendanceRecord{}).
		Where("id = ? AND logout_time IS NULL", record.ID).
		Updates(updates)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent close.
		return "noop", nil
	}
	return "updated", nil
}

// Heartbeat stamps the caller's open session as still alive. A presence
// collaborator may treat a stale stamp on a never-closed row as an
// inactivity signal; this endpoint only records it.
func (h *AttendanceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	now := time.Now()
	result := database.GetDB().Model(&models.AttendanceRecord{}).
		Where("user_id = ? AND logout_time IS NULL", user.ID).
		Update("last_heartbeat", now)
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// List returns recent attendance rows. Employees see their own; admins and
// HR may filter by user, month and year.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	db := database.GetDB()
	query := db.Model(&models.AttendanceRecord{})

	if user.CanViewAllAttendance() {
		if uidStr := r.URL.Query().Get("user_id"); uidStr != "" {
			if uid, err := strconv.ParseUint(uidStr, 10, 32); err == nil && uid > 0 {
				query = query.Where("user_id = ?", uint(uid))
			}
		}
	} else {
		query = query.Where("user_id = ?", user.ID)
	}

	var month, year int
	if m, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil && m >= 1 && m <= 12 {
		month = m
	}
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && y >= 2000 && y <= 2100 {
		year = y
	}

	// Date boundaries in server-local time, matching how punch-in stamps
	// the Date column.
	if month > 0 && year > 0 {
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
		end := start.AddDate(0, 1, 0)
		query = query.Where("date >= ? AND date < ?", start, end)
	} else if year > 0 {
		start := time.Date(year, 1, 1, 0, 0, 0, 0, time.Local)
		end := start.AddDate(1, 0, 0)
		query = query.Where("date >= ? AND date < ?", start, end)
	}

	var records []models.AttendanceRecord
	if err := query.Order("date desc, login_time desc").Limit(100).Find(&records).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	var totalHours float64
	for _, rec := range records {
		if rec.TotalHours != nil {
			totalHours += *rec.TotalHours
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":     records,
		"total_hours": totalHours,
	})
}
