package handlers

import (
	"errors"

	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler единая точка преобразования ошибок в ответ
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := mapServiceError(err)

		switch {
		case status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway:
			logger.Error("Request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		case status == fiber.StatusBadGateway:
			logger.Warn("External service failure",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		return c.Status(status).JSON(body)
	}
}

func mapServiceError(err error) (int, fiber.Map) {
	var (
		fiberErr      *fiber.Error
		validationErr *service.ValidationError
		conflictErr   *service.ConflictError
		overlapErr    *service.OverlapError
		authErr       *service.AuthorizationError
		notFoundErr   *service.NotFoundError
		tooEarlyErr   *service.TooEarlyError
		externalErr   *service.ExternalServiceError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiber.Map{"error": fiberErr.Message}
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, fiber.Map{"error": validationErr.Error()}
	case errors.As(err, &overlapErr):
		return fiber.StatusConflict, fiber.Map{"error": overlapErr.Error()}
	case errors.As(err, &conflictErr):
		return fiber.StatusConflict, fiber.Map{"error": conflictErr.Error()}
	case errors.As(err, &authErr):
		return fiber.StatusForbidden, fiber.Map{"error": authErr.Error()}
	case errors.As(err, &notFoundErr):
		return fiber.StatusNotFound, fiber.Map{"error": notFoundErr.Error()}
	case errors.As(err, &tooEarlyErr):
		return fiber.StatusTooEarly, fiber.Map{
			"error":             tooEarlyErr.Error(),
			"minutes_remaining": tooEarlyErr.MinutesRemaining,
		}
	case errors.Is(err, service.ErrSessionEnded):
		return fiber.StatusGone, fiber.Map{"error": service.ErrSessionEnded.Error()}
	case errors.Is(err, service.ErrWebhookAuthenticity):
		return fiber.StatusUnauthorized, fiber.Map{"error": "invalid webhook signature"}
	case errors.As(err, &externalErr):
		// детали шлюза остаются в логах
		return fiber.StatusBadGateway, fiber.Map{"error": "external service unavailable"}
	default:
		return fiber.StatusInternalServerError, fiber.Map{"error": "internal error"}
	}
}
