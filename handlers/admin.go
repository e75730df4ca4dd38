package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"punchclock/config"
	"punchclock/database"
	"punchclock/middleware"
	"punchclock/models"
	"punchclock/reconcile"
)

type AdminHandler struct {
	config *config.Config
}

func NewAdminHandler(cfg *config.Config) *AdminHandler {
	return &AdminHandler{config: cfg}
}

type reconcileRequest struct {
	Date string `json:"date,omitempty"`
}

// Reconcile runs the reconciliation engine for one date, defaulting to the
// previous calendar day. Per-user failures are logged and skipped inside
// the engine; the response counts successful adjustments only.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil || !user.CanReconcile() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req reconcileRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	date := models.DateOf(time.Now().AddDate(0, 0, -1))
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	engine := reconcile.NewEngine(database.GetDB(), user.Username)
	adjusted, err := engine.Run(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"date":          date.Format("2006-01-02"),
		"adjustedCount": adjusted,
	})
}

// AuditList returns the adjustment audit entries for a date (default
// yesterday).
func (h *AdminHandler) AuditList(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil || !user.CanReconcile() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	date := models.DateOf(time.Now().AddDate(0, 0, -1))
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}
	end := date.AddDate(0, 0, 1)

	var entries []models.AdjustmentAudit
	err := database.GetDB().
		Where("date >= ? AND date < ?", date, end).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit entries")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// ExportCSV streams a month of attendance rows as CSV.
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil || !user.CanExport() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}

	// Same locale as the stored Date column (server-local midnight).
	startDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	endDate := startDate.AddDate(0, 1, 0)

	var records []models.AttendanceRecord
	err = database.GetDB().Preload("User").
		Where("date >= ? AND date < ?", startDate, endDate).
		Order("date asc, user_id asc").
		Find(&records).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	filename := fmt.Sprintf("attendance_%d_%02d.csv", year, month)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{"Employee", "Date", "Login", "Logout", "Hours", "Status", "AutoAdjusted"})

	for _, rec := range records {
		logout := ""
		if rec.LogoutTime != nil {
			logout = rec.LogoutTime.Format(time.RFC3339)
		}
		hours := ""
		if rec.TotalHours != nil {
			hours = fmt.Sprintf("%.2f", *rec.TotalHours)
		}
		writer.Write([]string{
			rec.User.DisplayName(),
			rec.Date.Format("2006-01-02"),
			rec.LoginTime.Format(time.RFC3339),
			logout,
			hours,
			string(rec.Status),
			strconv.FormatBool(rec.AutoAdjusted),
		})
	}
}
