package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/utils"
)

const adminContextKey = "currentAdminEmail"

// AdminAuth validates admin JWTs and stores the admin email in context.
func AdminAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		email, err := utils.ParseToken(secret, parts[1], utils.ScopeAdmin)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(adminContextKey, email)
		return c.Next()
	}
}

// CurrentAdmin extracts the authenticated admin email from context.
func CurrentAdmin(c *fiber.Ctx) (string, bool) {
	email, ok := c.Locals(adminContextKey).(string)
	return email, ok && email != ""
}
