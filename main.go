package main

import (
	"log"
	"net/http"

	"punchclock/config"
	"punchclock/database"
	"punchclock/handlers"
	"punchclock/middleware"
	"punchclock/models"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize JWT secret
	middleware.SetJWTSecret(cfg.JWTSecret)

	// Initialize database
	if err := database.Init(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	attendanceHandler := handlers.NewAttendanceHandler(cfg)
	adminHandler := handlers.NewAdminHandler(cfg)

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)

	// Public routes
	router.Post("/login", authHandler.Login)
	router.Post("/register", authHandler.Register)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)

		r.Post("/logout", authHandler.Logout)

		// Accessible even when a password change is still required
		r.Post("/change-password", authHandler.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePasswordChange)

			// Punch protocol
			r.Post("/punch-in", attendanceHandler.PunchIn)
			r.Post("/punch-out", attendanceHandler.PunchOut)
			r.Post("/auto-punch-out", attendanceHandler.AutoPunchOut)
			r.Post("/heartbeat", attendanceHandler.Heartbeat)
			r.Get("/attendance", attendanceHandler.List)

			// Admin and HR only routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin, models.RoleHR))
				r.Post("/reconcile-attendance", adminHandler.Reconcile)
				r.Get("/audit", adminHandler.AuditList)
				r.Get("/export/csv", adminHandler.ExportCSV)
			})

			// Admin only routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Post("/invites", authHandler.CreateInvite)
				r.Get("/users", authHandler.ListUsers)
				r.Put("/users/{id}/schedule", authHandler.SetSchedule)
			})
		})
	})

	log.Printf("Server starting on port %s", cfg.ServerPort)
	log.Printf("Default admin credentials: admin / admin")
	log.Fatal(http.ListenAndServe(":"+cfg.ServerPort, router))
}
