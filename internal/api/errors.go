package api

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"routekeeper/internal/engine"
	"routekeeper/internal/export"
	"routekeeper/internal/logging"
	"routekeeper/internal/position"
	"routekeeper/internal/sessions"
	"routekeeper/internal/timeline"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var fiberErr *fiber.Error
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &fieldErrs),
		errors.Is(err, timeline.ErrInvalidEvent),
		errors.Is(err, sessions.ErrNameRequired),
		errors.Is(err, export.ErrInvalidShareToken):
		return fiber.StatusBadRequest
	case errors.Is(err, sessions.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrNoPosition),
		errors.Is(err, position.ErrNoSubscriber):
		return fiber.StatusConflict
	case errors.Is(err, export.ErrEmptyExportSource):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrCapabilityUnavailable),
		errors.Is(err, engine.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		if code >= fiber.StatusInternalServerError && code != fiber.StatusServiceUnavailable {
			logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
				logging.Error(err),
				logging.String("method", c.Method()),
				logging.String("path", c.Path()),
			)
		}
		return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
	}
}
