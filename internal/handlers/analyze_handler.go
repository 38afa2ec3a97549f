package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/job-matcher/internal/models"
	"alfredoptarigan/job-matcher/internal/services"
)

type AnalyzeHandler struct {
	analyzer  services.Analyzer
	validator *validator.Validate
}

func NewAnalyzeHandler(analyzer services.Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:  analyzer,
		validator: validator.New(),
	}
}

// HandleAnalyze handles POST /analyze. It scores a single job and is also
// the contract the HTTP analyzer speaks.
func (h *AnalyzeHandler) HandleAnalyze(c *fiber.Ctx) error {
	var req models.AnalyzeRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": extractValidationErrors(err),
		})
	}

	result, err := h.analyzer.Analyze(c.UserContext(), req.CandidateText, req.Job)
	if err != nil {
		return c.Status(services.AnalyzeStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
			"kind":  services.KindOf(err),
		})
	}

	return c.JSON(result)
}

func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrors) > 0 {
			ve := validationErrors[0]
			return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
		}
	}
	return "validation error: invalid request"
}
