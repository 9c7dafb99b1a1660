package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"vidscribe/errors"
	"vidscribe/summary"
)

type SummaryHandler struct {
	service *summary.Service
}

func NewSummaryHandler(service *summary.Service) *SummaryHandler {
	return &SummaryHandler{service: service}
}

func (h *SummaryHandler) Summarize(c *fiber.Ctx) error {
	return h.derive(c, h.service.Summarize)
}

func (h *SummaryHandler) ContentIdeas(c *fiber.Ctx) error {
	return h.derive(c, h.service.ContentIdeas)
}

func (h *SummaryHandler) derive(c *fiber.Ctx, fn func(ctx context.Context, jobID string) (*summary.Derivative, error)) error {
	id := c.Params("id")
	if id == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "ID is required",
		}
	}

	derivative, err := fn(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    derivative,
	})
}
