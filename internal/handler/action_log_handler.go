package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/service"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

// ActionLogHandler exposes the workflow engine.
type ActionLogHandler struct {
	service service.ActionLogService
	audit   service.AuditService
	logger  zerolog.Logger
}

// NewActionLogHandler constructs the handler.
func NewActionLogHandler(service service.ActionLogService, audit service.AuditService, logger zerolog.Logger) *ActionLogHandler {
	return &ActionLogHandler{
		service: service,
		audit:   audit,
		logger:  logger.With().Str("component", "action_log_handler").Logger(),
	}
}

// Register attaches action log endpoints to the router group.
func (h *ActionLogHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/assignable-users", h.assignableUsers)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.patch)
	router.Post("/:id/assign", h.assign)
	router.Post("/:id/status", h.updateStatus)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
	router.Get("/:id/assignment-history", h.assignmentHistory)
	router.Get("/:id/approvals", h.approvals)
	router.Get("/:id/audit", h.auditTrail)
}

func (h *ActionLogHandler) list(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}

	var query dto.ActionLogListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	page, err := h.service.List(c.UserContext(), userID, query)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, page.Items, "action logs retrieved", page.Pagination)
}

func (h *ActionLogHandler) create(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}

	var payload dto.ActionLogCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	log, err := h.service.Create(c.UserContext(), userID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "action log created", log)
}

func (h *ActionLogHandler) get(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		log, err := h.service.Get(c.UserContext(), userID, id)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "action log retrieved", log)
	})
}

func (h *ActionLogHandler) patch(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		var payload dto.ActionLogPatchRequest
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		log, err := h.service.Patch(c.UserContext(), userID, id, payload)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "action log updated", log)
	})
}

func (h *ActionLogHandler) assign(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		var payload dto.ActionLogAssignRequest
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		log, err := h.service.Assign(c.UserContext(), userID, id, payload)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "action log assigned", log)
	})
}

func (h *ActionLogHandler) updateStatus(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		var payload dto.ActionLogStatusRequest
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		log, err := h.service.UpdateStatus(c.UserContext(), userID, id, payload)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "status updated", log)
	})
}

func (h *ActionLogHandler) approve(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		var payload dto.ActionLogApproveRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&payload); err != nil {
				return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
			}
		}
		log, err := h.service.Approve(c.UserContext(), userID, id, payload)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "action log approved", log)
	})
}

func (h *ActionLogHandler) reject(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		var payload dto.ActionLogRejectRequest
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		log, err := h.service.Reject(c.UserContext(), userID, id, payload)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "action log rejected", log)
	})
}

func (h *ActionLogHandler) assignmentHistory(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		history, err := h.service.AssignmentHistory(c.UserContext(), userID, id)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "assignment history retrieved", history)
	})
}

func (h *ActionLogHandler) approvals(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		records, err := h.service.Approvals(c.UserContext(), userID, id)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "approvals retrieved", records)
	})
}

func (h *ActionLogHandler) auditTrail(c *fiber.Ctx) error {
	return h.withLog(c, func(userID, id uint) error {
		entries, err := h.audit.ForActionLog(c.UserContext(), userID, id)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "audit trail retrieved", entries)
	})
}

func (h *ActionLogHandler) assignableUsers(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}

	users, err := h.service.AssignableUsers(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignable users retrieved", users)
}

// withLog resolves the caller and the :id parameter before running fn.
func (h *ActionLogHandler) withLog(c *fiber.Ctx, fn func(userID, id uint) error) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid action log id")
	}
	return fn(userID, id)
}
