package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"vidscribe/errors"
)

// ErrorHandler is the fiber app-level error handler. Internal detail
// stays in the logs; callers only see the public message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := errors.Code(err)
	message := errors.Message(err)

	logrus.WithFields(logrus.Fields{
		"request_id": c.Get("X-Request-ID"),
		"path":       c.Path(),
		"method":     c.Method(),
		"status":     code,
	}).WithError(err).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"success":    false,
		"error":      message,
		"request_id": c.Get("X-Request-ID"),
	})
}
