// handlers/auth_routes.go
package handlers

import (
	"log"

	"quest-reward-system/middleware"
	"quest-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAuthRoutes wires the identity edge. Wallet signature verification and
// the OAuth handshake happen at the gateway; these endpoints only record
// identity and hand out opaque session tokens.
func SetupAuthRoutes(app *fiber.App, users *services.UserService) {
	app.Post("/auth/wallet", func(c *fiber.Ctx) error {
		var req struct {
			Address string `json:"address"`
		}
		if err := c.BodyParser(&req); err != nil || req.Address == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address is required"})
		}

		user, created, err := users.GetOrCreateByAddress(req.Address)
		if err != nil {
			log.Printf("❌ Wallet login failed for %s: %v", req.Address, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "failed to resolve user"})
		}

		token, err := users.IssueSession(user.ID)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "failed to create session"})
		}

		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(fiber.Map{
			"user":          user,
			"session_token": token,
		})
	})

	app.Post("/auth/logout", func(c *fiber.Ctx) error {
		token := c.Get("X-Session-Token")
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing session token"})
		}
		if err := users.RevokeSession(token); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "failed to revoke session"})
		}
		return c.JSON(fiber.Map{"message": "logged out"})
	})

	securedGroup := app.Group("/auth/oauth", middleware.UserContextMiddleware(users))

	securedGroup.Post("/twitter", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			ProviderUserID string `json:"provider_user_id"`
			AccessToken    string `json:"access_token"`
			RefreshToken   string `json:"refresh_token"`
		}
		if err := c.BodyParser(&req); err != nil || req.ProviderUserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "provider_user_id is required"})
		}

		if err := users.LinkOAuthAccount(userID, "twitter", req.ProviderUserID, req.AccessToken, req.RefreshToken); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "failed to link account"})
		}
		return c.JSON(fiber.Map{"message": "twitter account linked"})
	})
}
