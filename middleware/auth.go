package middleware

import (
	"log"
	"strings"

	"quest-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware resolves the caller's identity and attaches it to
// the request context. Identity arrives in one of three equivalent forms:
// an X-User-ID header set by the Gateway, an X-Wallet-Address header (the
// Gateway has already verified the signature challenge), or an opaque
// X-Session-Token resolved through the store.
func UserContextMiddleware(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")

		if userID == "" {
			if addr := c.Get("X-Wallet-Address"); addr != "" {
				user, err := users.ResolveCaller("", addr)
				if err != nil {
					log.Printf("❌ [USER_CTX] Unknown wallet address on %s", c.Path())
					return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
						"error": "unknown wallet address",
					})
				}
				userID = user.ID
			}
		}

		if userID == "" {
			if token := c.Get("X-Session-Token"); token != "" {
				id, err := users.ResolveSession(token)
				if err != nil {
					log.Printf("❌ [USER_CTX] Invalid session token on %s", c.Path())
					return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
						"error": "invalid or expired session token",
					})
				}
				userID = id
			}
		}

		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing identity — request must carry X-User-ID, X-Wallet-Address or X-Session-Token",
			})
		}

		var roles []string
		if rolesStr := c.Get("X-User-Roles"); rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		// Attach to ctx for handlers
		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		return c.Next()
	}
}

// RequireAdmin guards admin routes. Roles are forwarded by the Gateway.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == "admin" {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "admin role required",
		})
	}
}
