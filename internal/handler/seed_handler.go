package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/service"
	"github.com/noah-isme/actionlog-api/internal/utils"
)

// SeedHandler exposes the token-guarded role seeding endpoint.
type SeedHandler struct {
	service   service.SeedService
	directory service.DirectoryService
	logger    zerolog.Logger
}

// NewSeedHandler constructs a seed handler. Seeding invalidates the directory cache.
func NewSeedHandler(service service.SeedService, directory service.DirectoryService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service:   service,
		directory: directory,
		logger:    logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/roles", h.roles)
}

func (h *SeedHandler) roles(c *fiber.Ctx) error {
	affected, err := h.service.SeedRoles(c.UserContext(), c.Get("X-Seed-Token"))
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	case err != nil:
		requestLogger(h.logger, c).Error().Err(err).Msg("role seeding failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}

	if h.directory != nil {
		h.directory.Invalidate(c.UserContext())
	}
	return utils.SendSuccess(c, "roles seeded", fiber.Map{"affected": affected})
}
