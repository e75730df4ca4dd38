// Package reconcile derives the single authoritative login/logout/hours
// triple per user per day from raw punch rows, and rewrites rows that
// disagree with it.
package reconcile

import (
	"errors"
	"time"

	"punchclock/models"
)

var (
	// ErrNoRecords means the group had no usable login at all.
	ErrNoRecords = errors.New("reconcile: no records with a login time")
	// ErrNoSchedule means no logout exists anywhere in the group and the
	// user has no schedule window to fall back on.
	ErrNoSchedule = errors.New("reconcile: open session and no schedule window")
)

// HoursEpsilon is the tolerance when comparing stored hours against the
// recomputed value. Differences at or below it are not corrections.
const HoursEpsilon = 1e-6

// Resolution is the authoritative outcome for one user/date group.
type Resolution struct {
	Login  time.Time
	Logout time.Time
	Hours  float64
	Reason models.AdjustmentReason
}

// Resolve computes the final login/logout pair for all of a user's records
// on one shift date. The latest login wins: a user who punched in twice is
// assumed to have intended the second session, earlier opens are abandoned
// duplicates. The latest non-null logout wins; with no logout anywhere the
// schedule end stands in, landing on the next calendar day for overnight
// windows. Pure function, no storage access.
func Resolve(records []models.AttendanceRecord, schedule *models.ScheduleWindow, date time.Time) (Resolution, error) {
	if len(records) == 0 {
		return Resolution{}, ErrNoRecords
	}

	var login time.Time
	for _, r := range records {
		if r.LoginTime.After(login) {
			login = r.LoginTime
		}
	}
	if login.IsZero() {
		return Resolution{}, ErrNoRecords
	}

	var logout time.Time
	for _, r := range records {
		if r.LogoutTime != nil && r.LogoutTime.After(logout) {
			logout = *r.LogoutTime
		}
	}

	reason := models.ReasonFinalPair
	if logout.IsZero() {
		if schedule == nil {
			return Resolution{}, ErrNoSchedule
		}
		end, err := schedule.EndOn(models.DateOf(date))
		if err != nil {
			return Resolution{}, err
		}
		logout = end
		reason = models.ReasonFallbackSchedule
	}

	return Resolution{
		Login:  login,
		Logout: logout,
		Hours:  models.HoursBetween(login, logout),
		Reason: reason,
	}, nil
}

// NeedsAdjustment reports whether a stored record disagrees with the
// resolution: logout missing or different, or hours missing or off by more
// than the epsilon. Records already matching are left alone so repeated
// reconciliation runs are a fixed point.
func NeedsAdjustment(r *models.AttendanceRecord, res Resolution) bool {
	if r.LogoutTime == nil || !r.LogoutTime.Equal(res.Logout) {
		return true
	}
	if r.TotalHours == nil {
		return true
	}
	diff := *r.TotalHours - res.Hours
	if diff < 0 {
		diff = -diff
	}
	return diff > HoursEpsilon
}
