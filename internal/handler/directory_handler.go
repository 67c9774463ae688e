package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/service"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

// DirectoryHandler exposes departments, units and their members.
type DirectoryHandler struct {
	service service.DirectoryService
	logger  zerolog.Logger
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(service service.DirectoryService, logger zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger.With().Str("component", "directory_handler").Logger(),
	}
}

// Register binds the directory routes at the API root.
func (h *DirectoryHandler) Register(router fiber.Router) {
	router.Get("/departments", h.departments)
	router.Get("/departments/:id/users", h.departmentUsers)
	router.Get("/department-units", h.units)
}

func (h *DirectoryHandler) departments(c *fiber.Ctx) error {
	departments, err := h.service.Departments(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "departments retrieved", departments)
}

func (h *DirectoryHandler) departmentUsers(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid department id")
	}
	users, err := h.service.UsersByDepartment(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "department users retrieved", users)
}

func (h *DirectoryHandler) units(c *fiber.Ctx) error {
	units, err := h.service.DepartmentUnits(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "department units retrieved", units)
}
