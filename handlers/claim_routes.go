// handlers/claim_routes.go
package handlers

import (
	"errors"
	"log"

	"quest-reward-system/middleware"
	"quest-reward-system/services"
	"quest-reward-system/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

// SetupClaimRoutes wires the user-facing reward surface: claiming units,
// reading committed completions, the progression profile, and the mint
// event stream.
func SetupClaimRoutes(app *fiber.App, ledger *services.LedgerService, users *services.UserService, hub *services.EventHub) {
	// Identity is enforced only under /user; the catalog listing stays public.
	userGroup := app.Group("/user", middleware.UserContextMiddleware(users))

	// Claim a unit of work. The response never waits on mint completion;
	// a level-up only enqueues the job.
	userGroup.Post("/units/:id/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		unitID := c.Params("id")

		result, err := ledger.Claim(userID, unitID)
		if err != nil {
			return claimError(c, err)
		}

		return c.JSON(fiber.Map{
			"ok":               true,
			"unit_id":          result.UnitID,
			"xp_awarded":       result.XPAwarded,
			"previous_level":   result.PreviousLevel,
			"new_level":        result.NewLevel,
			"xp":               result.XP,
			"quests_completed": result.QuestsCompleted,
			"tasks_completed":  result.TasksCompleted,
			"leveled_up":       result.LeveledUp,
		})
	})

	// Committed completions only; in-flight claims are never visible here.
	userGroup.Get("/completions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		units, err := ledger.CompletedUnits(userID)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "failed to fetch completions",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"completed_units": units})
	})

	userGroup.Get("/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prof, err := users.ProfileView(userID)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "failed to fetch profile",
				"cause": err.Error(),
			})
		}
		return c.JSON(prof)
	})

	userGroup.Put("/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			DisplayName    *string         `json:"display_name"`
			AvatarURL      *string         `json:"avatar_url"`
			SocialProfiles *datatypes.JSON `json:"social_profiles"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		prof, err := users.EditProfile(userID, storage.ProfileUpdate{
			DisplayName:    req.DisplayName,
			AvatarURL:      req.AvatarURL,
			SocialProfiles: req.SocialProfiles,
		})
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "failed to update profile",
				"cause": err.Error(),
			})
		}
		return c.JSON(prof)
	})

	// Fire-and-forget mint notification stream.
	userGroup.Get("/mint/events", hub.StreamMintEventsSSE)
}

// claimError maps business errors to wire responses. AlreadyClaimed is a
// declined outcome, not a failure: no partial state change happened.
func claimError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrAlreadyClaimed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"ok":     false,
			"reason": "AlreadyClaimed",
		})
	case errors.Is(err, services.ErrInvalidUnit):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":     false,
			"reason": "InvalidInput",
		})
	case errors.Is(err, services.ErrUnknownUser):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"ok":     false,
			"reason": "InvalidInput",
			"error":  "unknown user",
		})
	default:
		log.Printf("❌ Claim failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ok":     false,
			"reason": "StorageUnavailable",
		})
	}
}
