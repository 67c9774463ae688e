package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/service"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

// CommentHandler serves the comment thread of an action log.
type CommentHandler struct {
	service service.CommentService
	logger  zerolog.Logger
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(service service.CommentService, logger zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		service: service,
		logger:  logger.With().Str("component", "comment_handler").Logger(),
	}
}

// Register binds routes below /action-logs/:id/comments. Extra handlers (rate limits) run before posting.
func (h *CommentHandler) Register(router fiber.Router, postGuards ...fiber.Handler) {
	router.Get("", h.list)
	router.Get("/unread", h.unread)
	router.Post("", append(postGuards, h.post)...)
}

func (h *CommentHandler) list(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}
	logID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid action log id")
	}

	thread, err := h.service.List(c.UserContext(), userID, logID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "comments retrieved", thread)
}

func (h *CommentHandler) unread(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}
	logID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid action log id")
	}

	count, err := h.service.UnreadCount(c.UserContext(), userID, logID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unread comments counted", count)
}

func (h *CommentHandler) post(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}
	logID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid action log id")
	}

	var payload dto.CommentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	comment, err := h.service.Post(c.UserContext(), userID, logID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment posted", comment)
}
