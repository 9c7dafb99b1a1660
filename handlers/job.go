package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"vidscribe/errors"
	"vidscribe/jobs"
	"vidscribe/models"
	"vidscribe/queue"
)

// ownerHeader carries the authenticated user id, set by the auth layer
// in front of this service.
const ownerHeader = "X-Owner-ID"

type JobHandler struct {
	service *jobs.Service
	queue   queue.Queue
}

func NewJobHandler(service *jobs.Service, q queue.Queue) *JobHandler {
	return &JobHandler{service: service, queue: q}
}

func (h *JobHandler) Submit(c *fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)
	if ownerID == "" {
		return &errors.AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Owner id is required",
		}
	}

	var req models.JobRequest
	if err := c.BodyParser(&req); err != nil {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request body",
			Err:     err,
		}
	}

	job, err := h.service.Submit(c.Context(), ownerID, &req, func(ctx context.Context, j *models.Job) error {
		return h.queue.Enqueue(ctx, queue.Message{
			JobID:   j.ID,
			OwnerID: j.OwnerID,
			Quality: j.RequestedQuality,
		})
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"data":    models.NewJobResponse(job),
	})
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "ID is required",
		}
	}

	job, err := h.service.Find(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    models.NewJobResponse(job),
	})
}
