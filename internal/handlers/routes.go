package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type Routes struct {
	Upload  *UploadHandler
	Analyze *AnalyzeHandler
	Runs    *RunHandler
	Events  *EventsHandler
}

func RegisterRoutes(app *fiber.App, r Routes) {
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api.Post("/upload/profile", r.Upload.HandleProfileUpload)
	api.Post("/upload/jobs", r.Upload.HandleJobsUpload)
	api.Post("/analyze", r.Analyze.HandleAnalyze)

	api.Get("/runs", r.Runs.HandleListRuns)
	api.Post("/runs", r.Runs.HandleCreateRun)
	api.Get("/runs/:id", r.Runs.HandleGetRun)
	api.Delete("/runs/:id", r.Runs.HandleCancelRun)
	api.Get("/runs/:id/export", r.Runs.HandleExport)
	api.Get("/runs/:id/events", r.Events.HandleEvents)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Job Matcher API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/upload/profile",
				"POST /api/v1/upload/jobs",
				"POST /api/v1/analyze",
				"GET /api/v1/runs",
				"POST /api/v1/runs",
				"GET /api/v1/runs/:id",
				"DELETE /api/v1/runs/:id",
				"GET /api/v1/runs/:id/export",
				"GET /api/v1/runs/:id/events",
			},
		})
	})
}
