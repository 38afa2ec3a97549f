package handlers

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/job-matcher/internal/models"
	"alfredoptarigan/job-matcher/internal/services"
)

type UploadHandler struct {
	profileParser services.ProfileParserService
	csvParser     services.CSVParserService
	maxFileSize   int64
}

func NewUploadHandler(
	profileParser services.ProfileParserService,
	csvParser services.CSVParserService,
	maxFileSize int64,
) *UploadHandler {
	return &UploadHandler{
		profileParser: profileParser,
		csvParser:     csvParser,
		maxFileSize:   maxFileSize,
	}
}

// HandleProfileUpload handles POST /upload/profile
func (h *UploadHandler) HandleProfileUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	content, status, err := h.parseProfile(file)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(models.ProfileUploadResponse{
		Filename:  file.Filename,
		Text:      content.Text,
		PageCount: content.PageCount,
	})
}

// HandleJobsUpload handles POST /upload/jobs
func (h *UploadHandler) HandleJobsUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	jobs, columns, status, err := h.parseJobs(file)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(models.JobsUploadResponse{
		Filename: file.Filename,
		Count:    len(jobs),
		Columns:  columns,
		Jobs:     jobs,
	})
}

func (h *UploadHandler) parseProfile(file *multipart.FileHeader) (*services.ProfileContent, int, error) {
	if file.Size > h.maxFileSize {
		return nil, fiber.StatusRequestEntityTooLarge, fmt.Errorf("profile file too large. Max size: %d bytes", h.maxFileSize)
	}
	if !h.profileParser.SupportedExtension(file.Filename) {
		return nil, fiber.StatusUnsupportedMediaType, fmt.Errorf("unsupported profile file type: %s (use .pdf, .docx, .txt or .md)", filepath.Ext(file.Filename))
	}

	src, err := file.Open()
	if err != nil {
		return nil, fiber.StatusInternalServerError, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	content, err := h.profileParser.Parse(file.Filename, src)
	if err != nil {
		return nil, fiber.StatusUnprocessableEntity, err
	}
	return content, fiber.StatusOK, nil
}

func (h *UploadHandler) parseJobs(file *multipart.FileHeader) ([]models.JobRecord, []string, int, error) {
	if file.Size > h.maxFileSize {
		return nil, nil, fiber.StatusRequestEntityTooLarge, fmt.Errorf("jobs file too large. Max size: %d bytes", h.maxFileSize)
	}
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".csv" {
		return nil, nil, fiber.StatusUnsupportedMediaType, fmt.Errorf("invalid file extension: %s (use .csv)", ext)
	}

	src, err := file.Open()
	if err != nil {
		return nil, nil, fiber.StatusInternalServerError, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	jobs, columns, err := h.csvParser.Parse(src)
	if err != nil {
		return nil, nil, fiber.StatusUnprocessableEntity, err
	}
	return jobs, columns, fiber.StatusOK, nil
}
