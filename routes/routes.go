package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/siamonitor/app"
	"github.com/upb/siamonitor/handlers"
	"github.com/upb/siamonitor/internal/auth"
	appmw "github.com/upb/siamonitor/middleware"
	"github.com/upb/siamonitor/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appmw.Metrics(deps.Metrics))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.DB.DB, deps.Logger)
	identity := handlers.NewIdentityHandler(deps.Logger)
	profiles := handlers.NewProfileHandler(deps.ProfileService, deps.Logger)
	projects := handlers.NewProjectHandler(deps.ProjectService, deps.Logger)
	grading := handlers.NewGradingHandler(deps.GradingService, deps.Logger)
	files := handlers.NewFileHandler(deps.FileService, deps.Config.Uploads.TransferTimeout, deps.Logger)
	admin := handlers.NewAdminHandler(deps.AdminService, deps.Logger)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", health.HandleHealth)
		r.Get("/ready", health.HandleReadiness)

		// Role-gated pings verify roles inside the token
		r.With(deps.AuthMiddleware.RequireRoles(auth.RoleTeacher)).
			Get("/teacher/ping", identity.HandlePing(auth.RoleTeacher))
		r.With(deps.AuthMiddleware.RequireRoles(auth.RoleStudent)).
			Get("/student/ping", identity.HandlePing(auth.RoleStudent))

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			// Transfers get their own deadline in place of the server read/write timeouts
			r.With(middleware.Timeout(deps.Config.Uploads.TransferTimeout)).
				Post("/projects/{projectID}/milestones/{milestoneID}/files", files.HandleUpload)
			r.Get("/files/{projectID}/{milestoneID}/{kind}", files.HandleDownload)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Get("/me", identity.HandleMe)

				r.Get("/profile", profiles.HandleGetProfile)
				r.Post("/profile", profiles.HandleUpdateProfile)

				r.Get("/projects", projects.HandleListProjects)
				r.Post("/projects", projects.HandleCreateProject)
				r.Get("/projects/{projectID}", projects.HandleGetProject)
				r.Patch("/projects/{projectID}", projects.HandleUpdateProject)
				r.Get("/projects/{projectID}/members", projects.HandleListMembers)
				r.Post("/projects/{projectID}/members", projects.HandleAddMember)
				r.Get("/projects/{projectID}/milestones/with-state", grading.HandleMilestoneStates)
				r.Post("/projects/{projectID}/milestones/{milestoneID}/grade", grading.HandleGrade)

				r.Get("/milestones", grading.HandleListMilestones)
				r.Post("/milestones", grading.HandleCreateMilestone)
				r.Get("/rating", grading.HandleRating)

				r.With(deps.AuthMiddleware.RequireRole(auth.RoleTeacher)).
					Post("/admin/wipe", admin.HandleWipe)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
