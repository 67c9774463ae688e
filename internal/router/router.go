package router

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/actionlog-api/internal/config"
	"github.com/noah-isme/actionlog-api/internal/handler"
	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/observability"
	"github.com/noah-isme/actionlog-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActionLogHandler    *handler.ActionLogHandler
	CommentHandler      *handler.CommentHandler
	AttachmentHandler   *handler.AttachmentHandler
	DirectoryHandler    *handler.DirectoryHandler
	NotificationHandler *handler.NotificationHandler
	AuditHandler        *handler.AuditHandler
	SeedHandler         *handler.SeedHandler
	Directory           service.DirectoryService
	HealthChecks        map[string]handler.Pinger
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Public v1 routes
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed", middleware.RateLimit("seed", cfg.RateLimitMax, cfg.RateLimitWindow)))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	protected := api.Group("", jwtMiddleware, middleware.RequireUser())

	writeLimit := middleware.RateLimit("write", cfg.RateLimitMax, cfg.RateLimitWindow)

	// Action logs and their threads
	if deps.ActionLogHandler != nil {
		deps.ActionLogHandler.Register(protected.Group("/action-logs"))
	}
	if deps.CommentHandler != nil {
		deps.CommentHandler.Register(protected.Group("/action-logs/:id/comments"), writeLimit)
	}
	if deps.AttachmentHandler != nil {
		deps.AttachmentHandler.Register(protected.Group("/action-logs/:id/attachments"), writeLimit)
	}

	// Directory
	if deps.DirectoryHandler != nil {
		deps.DirectoryHandler.Register(protected)
	}

	// Notifications
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(protected.Group("/notifications"))
	}

	// Audit
	if deps.AuditHandler != nil && deps.Directory != nil {
		audit := protected.Group("/audit", middleware.RequireRole(directoryRoles(deps.Directory), models.RoleCommissioner, models.RoleSuperAdmin))
		deps.AuditHandler.Register(audit)
	}
}

func directoryRoles(directory service.DirectoryService) middleware.RoleLookup {
	return func(ctx context.Context, userID uint) (string, error) {
		user, err := directory.GetUser(ctx, userID)
		if err != nil {
			return "", err
		}
		return user.RoleName(), nil
	}
}
