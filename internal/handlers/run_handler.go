package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/job-matcher/internal/models"
	"alfredoptarigan/job-matcher/internal/repositories"
	"alfredoptarigan/job-matcher/internal/services"
)

type RunHandler struct {
	worker    services.Worker
	runRepo   repositories.RunRepository
	uploads   *UploadHandler
	validator *validator.Validate
}

func NewRunHandler(
	worker services.Worker,
	runRepo repositories.RunRepository,
	uploads *UploadHandler,
) *RunHandler {
	return &RunHandler{
		worker:    worker,
		runRepo:   runRepo,
		uploads:   uploads,
		validator: validator.New(),
	}
}

// HandleCreateRun handles POST /runs. It accepts either JSON or a multipart
// form with candidate_text or candidate_file plus jobs_file.
func (h *RunHandler) HandleCreateRun(c *fiber.Ctx) error {
	var (
		req    models.CreateRunRequest
		status int
		err    error
	)

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		req, status, err = h.requestFromForm(c)
	} else if err = c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}
	if err != nil {
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": extractValidationErrors(err),
		})
	}

	snap, err := h.worker.CreateRun(req.CandidateText, req.Jobs)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if errors.Is(err, services.ErrQueueFull) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create run",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.CreateRunResponse{
		ID:     snap.ID,
		Status: string(snap.Status),
		Total:  snap.Total,
	})
}

func (h *RunHandler) requestFromForm(c *fiber.Ctx) (models.CreateRunRequest, int, error) {
	var req models.CreateRunRequest

	req.CandidateText = strings.TrimSpace(c.FormValue("candidate_text"))
	if req.CandidateText == "" {
		file, err := c.FormFile("candidate_file")
		if err != nil {
			return req, fiber.StatusBadRequest, fmt.Errorf("candidate_text or candidate_file is required")
		}
		content, status, err := h.uploads.parseProfile(file)
		if err != nil {
			return req, status, err
		}
		req.CandidateText = content.Text
	}

	file, err := c.FormFile("jobs_file")
	if err != nil {
		return req, fiber.StatusBadRequest, fmt.Errorf("jobs_file is required")
	}
	jobs, _, status, err := h.uploads.parseJobs(file)
	if err != nil {
		return req, status, err
	}
	req.Jobs = jobs

	return req, fiber.StatusOK, nil
}

// HandleGetRun handles GET /runs/:id
func (h *RunHandler) HandleGetRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid run ID format",
		})
	}

	snap, err := h.worker.Snapshot(runID)
	if err != nil {
		return runError(c, err)
	}

	return c.JSON(snap)
}

// HandleListRuns handles GET /runs and lists recently archived runs.
func (h *RunHandler) HandleListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	runs, err := h.runRepo.FindRecent(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list runs",
		})
	}

	items := make([]fiber.Map, 0, len(runs))
	for _, run := range runs {
		items = append(items, fiber.Map{
			"id":            run.ID.String(),
			"status":        run.Status,
			"totalJobs":     run.TotalJobs,
			"succeededJobs": run.SucceededJobs,
			"failedJobs":    run.FailedJobs,
			"finishedAt":    run.FinishedAt,
		})
	}

	return c.JSON(fiber.Map{"runs": items})
}

// HandleCancelRun handles DELETE /runs/:id
func (h *RunHandler) HandleCancelRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid run ID format",
		})
	}

	if err := h.worker.Cancel(runID); err != nil {
		return runError(c, err)
	}

	snap, err := h.worker.Snapshot(runID)
	if err != nil {
		return runError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(snap)
}

// HandleExport handles GET /runs/:id/export
func (h *RunHandler) HandleExport(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid run ID format",
		})
	}

	data, err := h.worker.Export(c.UserContext(), runID)
	if err != nil {
		return runError(c, err)
	}

	c.Attachment(fmt.Sprintf("job-matches-%s.csv", runID.String()[:8]))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(data)
}

func runError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrRunNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Run not found",
		})
	case errors.Is(err, services.ErrRunFinished):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrNoResults):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
