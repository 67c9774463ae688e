package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/actionlog-api/internal/utils"
)

// RoleLookup resolves the current role name of a directory user.
type RoleLookup func(ctx context.Context, userID uint) (string, error)

// RequireRole admits only users whose directory role is one of roles. The role is looked up
// on every request so revoked roles take effect without new tokens.
func RequireRole(lookup RoleLookup, roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		role, err := lookup(c.UserContext(), userID)
		if err != nil {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		c.Locals(LocalUserRole, role)
		return c.Next()
	}
}
