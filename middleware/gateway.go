package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware rejects any request that did not come through the
// platform gateway. The gateway presents its service token as a Bearer
// Authorization header; every route in this service sits behind this check,
// including the public catalog.
func GatewayAuthMiddleware() fiber.Handler {
	serviceToken := os.Getenv("QUEST_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("❌ QUEST_SERVICE_TOKEN is not set, refusing to start without gateway auth")
	}

	return func(c *fiber.Ctx) error {
		// Accept "Bearer <token>" or the raw token value.
		presented := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if presented == "" {
			log.Printf("🚫 [GATEWAY_AUTH] No service token on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}
		if presented != serviceToken {
			log.Printf("🚫 [GATEWAY_AUTH] Wrong service token on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
