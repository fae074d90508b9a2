package gateway

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"maintdesk/internal/apperr"
)

// ErrorHandler converts AppErrors into the JSON error envelope. Anything
// else is an internal error: logged, never leaked.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(apperr.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(apperr.ErrorResponse{
		Error: &apperr.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
