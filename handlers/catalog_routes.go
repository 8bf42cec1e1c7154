// handlers/catalog_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"

	"quest-reward-system/middleware"
	"quest-reward-system/models"
	"quest-reward-system/services"
	"quest-reward-system/storage"

	"github.com/gofiber/fiber/v2"
)

// SetupCatalogRoutes wires the public catalog listing plus the admin surface
// for catalog authoring and mint-job operations.
func SetupCatalogRoutes(app *fiber.App, catalog *services.CatalogService, users *services.UserService, store storage.Store, mints services.MintEnqueuer) {
	// Public: clients render claimed/unclaimed state from this plus
	// /user/completions.
	app.Get("/units", func(c *fiber.Ctx) error {
		return c.JSON(catalog.ListActive())
	})

	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(users), middleware.RequireAdmin())

	adminGroup.Post("/quests", catalog.CreateQuest)
	adminGroup.Post("/tasks", catalog.CreateDailyTask)
	adminGroup.Post("/campaigns", catalog.CreateCampaign)
	adminGroup.Post("/campaigns/:campaignId/tasks", catalog.CreateCampaignTask)
	adminGroup.Patch("/units/:id/active", catalog.SetUnitActive)

	adminGroup.Get("/mints", func(c *fiber.Ctx) error {
		status := models.MintStatus(c.Query("status", string(models.MintStatusPendingOffchain)))
		recs, err := store.MintRecordsByStatus(status)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "failed to fetch mint records",
				"cause": err.Error(),
			})
		}
		return c.JSON(recs)
	})

	// Manual reprocess of a parked job. Only pending_offchain records are
	// eligible; anything with a txHash is terminal and stays untouched.
	adminGroup.Post("/mints/:userId/:level/reprocess", func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		level, err := strconv.Atoi(c.Params("level"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid level"})
		}

		rec, err := store.GetMintRecord(userID, level)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mint record not found"})
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
		}
		if rec.Status != models.MintStatusPendingOffchain {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  "only pending_offchain records can be reprocessed",
				"status": rec.Status,
			})
		}

		user, err := store.GetUser(userID)
		if err != nil || user.WalletAddress == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "user has no recipient address"})
		}

		queued := models.MintStatusQueued
		if err := store.UpdateMintRecord(userID, level, storage.MintUpdate{Status: &queued}); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "failed to requeue", "cause": err.Error()})
		}

		mints.Enqueue(models.MintJob{
			JobID:     rec.JobID,
			UserID:    userID,
			Level:     level,
			Recipient: *user.WalletAddress,
		})
		log.Printf("🔄 Reprocessing mint job %s (user=%s, level=%d)", rec.JobID, userID, level)

		return c.JSON(fiber.Map{"message": "mint job requeued", "job_id": rec.JobID})
	})
}
