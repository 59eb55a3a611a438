package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/scriptflow/gateway/internal/model"
	"github.com/scriptflow/gateway/internal/store"
	"github.com/scriptflow/gateway/pkg/response"
)

type JobHandler struct {
	jobs      *store.JobStore
	validator *validator.Validate
}

func NewJobHandler(jobs *store.JobStore, v *validator.Validate) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		validator: v,
	}
}

// Create handles POST /api/jobs
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.JobCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID, err := h.jobs.Create(c.Context(), store.CreateParams{
		JobID:        req.JobID,
		CollectionID: req.CollectionID,
		Title:        req.Title,
	})
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	job, err := h.jobs.Get(c.Context(), jobID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Created(c, job)
}

// Get handles GET /api/jobs/:jobId
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.jobs.Get(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, job)
}

// UpdateStatus handles POST /api/jobs/:jobId/status
func (h *JobHandler) UpdateStatus(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.JobStatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	updated, err := h.jobs.UpdateStatus(c.Context(), jobID, req.Status, req.Fields)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if !updated {
		return response.NotFound(c, "Job not found")
	}
	return response.OK(c, fiber.Map{"job_id": jobID, "status": req.Status})
}
