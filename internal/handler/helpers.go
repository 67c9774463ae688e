package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/service"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

var errInvalidIdentifier = errors.New("invalid identifier")

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errInvalidIdentifier
	}
	return uint(parsed), nil
}

func unauthenticated(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// respondError maps service errors onto the HTTP envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErr *service.ValidationError
	var permissionErr *service.PermissionError

	switch {
	case errors.As(err, &validationErr):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationErr.Fields)
	case errors.As(err, &permissionErr):
		return utils.SendError(c, fiber.StatusForbidden, permissionErr.Reason)
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "permission denied")
	case errors.Is(err, service.ErrActionLogNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "action log not found")
	case errors.Is(err, service.ErrCommentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "comment not found")
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "notification not found")
	case errors.Is(err, service.ErrNotReassignable):
		return utils.Fail(c, fiber.StatusConflict, service.ErrNotReassignable.Error(), fiber.Map{"code": "not_reassignable"})
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, service.ErrConflict.Error())
	case errors.Is(err, service.ErrAttachmentTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrAttachmentTypeNotAllowed):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrAttachmentScanFailed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		requestLogger(logger, c).Warn().Err(err).Msg("dependency unavailable")
		return utils.SendError(c, fiber.StatusServiceUnavailable, service.ErrUnavailable.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
