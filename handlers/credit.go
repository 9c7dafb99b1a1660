package handlers

import (
	"github.com/gofiber/fiber/v2"

	"vidscribe/credits"
	"vidscribe/errors"
)

const defaultHistoryLimit = 50

type CreditHandler struct {
	ledger *credits.Ledger
}

func NewCreditHandler(ledger *credits.Ledger) *CreditHandler {
	return &CreditHandler{ledger: ledger}
}

func (h *CreditHandler) Balance(c *fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)
	if ownerID == "" {
		return &errors.AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Owner id is required",
		}
	}

	balance, err := h.ledger.Balance(c.Context(), ownerID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"balance": balance},
	})
}

func (h *CreditHandler) History(c *fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)
	if ownerID == "" {
		return &errors.AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Owner id is required",
		}
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	history, err := h.ledger.History(c.Context(), ownerID, limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    history,
	})
}
