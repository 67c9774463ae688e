package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/service"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

// AttachmentHandler handles files attached to action logs.
type AttachmentHandler struct {
	service service.AttachmentService
	logger  zerolog.Logger
}

// NewAttachmentHandler constructs an attachment handler.
func NewAttachmentHandler(service service.AttachmentService, logger zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: service,
		logger:  logger.With().Str("component", "attachment_handler").Logger(),
	}
}

// Register wires routes below /action-logs/:id/attachments.
func (h *AttachmentHandler) Register(router fiber.Router, uploadGuards ...fiber.Handler) {
	router.Get("", h.list)
	router.Post("", append(uploadGuards, h.upload)...)
}

func (h *AttachmentHandler) list(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}
	logID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid action log id")
	}

	attachments, err := h.service.List(c.UserContext(), userID, logID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "attachments retrieved", attachments)
}

func (h *AttachmentHandler) upload(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}
	logID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid action log id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", fiber.Map{"file": "is required"})
	}

	result, err := h.service.Upload(c.UserContext(), userID, logID, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attachment uploaded", result)
}
