package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"twitapp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
)

const msgInternal = "Internal Server Error, Please try later"

// respondError maps a service error onto its HTTP status. Internal errors
// never expose their detail.
func respondError(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()
	switch services.KindOf(err) {
	case services.ErrBadRequest:
		slog.InfoContext(ctx, "bad request", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": oops.GetPublic(err, "Bad request"),
		})
	case services.ErrUnauthorized:
		slog.InfoContext(ctx, "unauthorized", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": oops.GetPublic(err, "Unauthorized"),
		})
	default:
		slog.ErrorContext(ctx, "request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": msgInternal,
		})
	}
}

// bind parses the JSON body into dst and validates it. When it returns false
// the error response has already been written and its result is in err.
func bind(c *fiber.Ctx, validate *validator.Validate, dst any) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return false, respondError(c, oops.Wrap(err))
		}
		errorMessages := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}
	return true, nil
}
