package handlers

import (
	"net/http"
	"strconv"
	"time"

	"punchclock/config"
	"punchclock/database"
	"punchclock/middleware"
	"punchclock/models"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	config *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var user models.User
	if err := database.GetDB().Where("username = ?", req.Username).First(&user).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := middleware.GenerateToken(&user, h.config.JWTExpiration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.config.JWTExpiration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":                token,
		"must_change_password": user.MustChangePassword,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || len(req.Password) < 5 {
		writeError(w, http.StatusBadRequest, "username required and password must be at least 5 characters")
		return
	}

	db := database.GetDB()

	var invite models.Invite
	if err := db.Where("code = ?", req.Code).First(&invite).Error; err != nil {
		writeError(w, http.StatusBadRequest, "invalid invite code")
		return
	}
	if !invite.IsValid() {
		writeError(w, http.StatusBadRequest, "invite code has expired or already been used")
		return
	}

	var count int64
	db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		Username:           req.Username,
		FullName:           invite.FullName,
		PasswordHash:       string(hashedPassword),
		Role:               invite.Role,
		MustChangePassword: false,
	}

	if err := db.Create(&user).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	invite.Used = true
	db.Save(&invite)

	writeJSON(w, http.StatusCreated, &user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	if len(req.NewPassword) < 5 {
		writeError(w, http.StatusBadRequest, "password must be at least 5 characters")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user.PasswordHash = string(hashedPassword)
	user.MustChangePassword = false
	if err := database.GetDB().Save(user).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	token, err := middleware.GenerateToken(user, h.config.JWTExpiration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.config.JWTExpiration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createInviteRequest struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *AuthHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil || !user.CanCreateInvites() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role := models.Role(req.Role)
	if role != models.RoleAdmin && role != models.RoleHR && role != models.RoleEmployee {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	code, err := models.GenerateInviteCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate invite code")
		return
	}

	invite := models.Invite{
		Code:      code,
		FullName:  req.FullName,
		Role:      role,
		CreatedBy: user.ID,
		ExpiresAt: time.Now().Add(h.config.InviteExpiration),
	}

	if err := database.GetDB().Create(&invite).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create invite")
		return
	}

	writeJSON(w, http.StatusCreated, &invite)
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := database.GetDB().Preload("Schedule").Find(&users).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type setScheduleRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// SetSchedule creates or replaces a user's schedule window. An end time
// earlier than the start time marks an overnight shift.
func (h *AuthHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req setScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := models.ParseClock(req.StartTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time")
		return
	}
	if _, err := models.ParseClock(req.EndTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time")
		return
	}

	db := database.GetDB()

	var target models.User
	if err := db.First(&target, uint(id)).Error; err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	var schedule models.ScheduleWindow
	err = db.Where("user_id = ?", target.ID).First(&schedule).Error
	if err != nil {
		schedule = models.ScheduleWindow{UserID: target.ID}
	}
	schedule.StartTime = req.StartTime
	schedule.EndTime = req.EndTime

	if err := db.Save(&schedule).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}

	writeJSON(w, http.StatusOK, &schedule)
}
