package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/service"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

// AuditHandler serves the global audit trail.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register binds GET on the group root.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}

	var query dto.AuditListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	page, err := h.service.List(c.UserContext(), userID, query)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, page.Items, "audit entries retrieved", page.Pagination)
}
