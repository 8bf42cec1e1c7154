package services

import (
	"errors"
	"log"
	"sync"

	"quest-reward-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// UnitOfWork is the catalog's view of any claimable item. The ledger only
// cares about the declared XP reward, the active flag and which counter to
// bump; quest/daily-task/campaign-task are interchangeable beyond that.
type UnitOfWork struct {
	ID       string          `json:"id"`
	Kind     models.UnitKind `json:"kind"`
	Title    string          `json:"title"`
	XPReward int64           `json:"xp_reward"`
	Active   bool            `json:"active"`
}

// CatalogService owns the immutable unit-of-work catalog. Lookups are served
// from an in-memory registry; admin CRUD mutates the registry and, when a DB
// is attached, persists through it so the catalog survives restarts.
type CatalogService struct {
	DB *gorm.DB // nil when running on the volatile store

	mu    sync.RWMutex
	units map[string]UnitOfWork
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{
		DB:    db,
		units: make(map[string]UnitOfWork),
	}
}

// Load hydrates the registry from the DB. No-op without one.
func (s *CatalogService) Load() error {
	if s.DB == nil {
		return nil
	}

	var quests []models.Quest
	if err := s.DB.Find(&quests).Error; err != nil {
		return err
	}
	var tasks []models.DailyTask
	if err := s.DB.Find(&tasks).Error; err != nil {
		return err
	}
	var campaignTasks []models.CampaignTask
	if err := s.DB.Find(&campaignTasks).Error; err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range quests {
		s.units[q.ID] = UnitOfWork{ID: q.ID, Kind: models.UnitKindQuest, Title: q.Title, XPReward: q.XPReward, Active: q.Active}
	}
	for _, t := range tasks {
		s.units[t.ID] = UnitOfWork{ID: t.ID, Kind: models.UnitKindDailyTask, Title: t.Title, XPReward: t.XPReward, Active: t.Active}
	}
	for _, ct := range campaignTasks {
		s.units[ct.ID] = UnitOfWork{ID: ct.ID, Kind: models.UnitKindCampaignTask, Title: ct.Title, XPReward: ct.XPReward, Active: ct.Active}
	}
	log.Printf("📚 Catalog loaded: %d unit(s)", len(s.units))
	return nil
}

// Lookup resolves a unit-of-work descriptor. ok is false for unknown units;
// the caller must also refuse inactive units and non-positive rewards.
func (s *CatalogService) Lookup(unitID string) (UnitOfWork, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[unitID]
	return u, ok
}

// Register inserts or replaces a registry entry. Exposed for seeding and tests.
func (s *CatalogService) Register(u UnitOfWork) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.ID] = u
}

// ListActive returns every active unit, for client rendering.
func (s *CatalogService) ListActive() []UnitOfWork {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UnitOfWork, 0, len(s.units))
	for _, u := range s.units {
		if u.Active {
			out = append(out, u)
		}
	}
	return out
}

// --- Admin Handlers ---

// CreateQuest creates a quest catalog entry (Admin only). The unit ID is a
// slug derived from the title unless one is supplied.
func (s *CatalogService) CreateQuest(c *fiber.Ctx) error {
	var req struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		IconURL     string `json:"icon_url"`
		XPReward    int64  `json:"xp_reward"`
		Active      *bool  `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" || req.XPReward <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and a positive xp_reward are required"})
	}

	id := req.ID
	if id == "" {
		id = slug.Make(req.Title)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	quest := models.Quest{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		IconURL:     req.IconURL,
		XPReward:    req.XPReward,
		Active:      active,
	}
	if s.DB != nil {
		if err := s.DB.Create(&quest).Error; err != nil {
			log.Printf("DB Error creating quest: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create quest"})
		}
	}
	s.Register(UnitOfWork{ID: quest.ID, Kind: models.UnitKindQuest, Title: quest.Title, XPReward: quest.XPReward, Active: quest.Active})

	return c.Status(fiber.StatusCreated).JSON(quest)
}

// CreateDailyTask creates a daily task catalog entry (Admin only).
func (s *CatalogService) CreateDailyTask(c *fiber.Ctx) error {
	var req struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		XPReward    int64  `json:"xp_reward"`
		Active      *bool  `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" || req.XPReward <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and a positive xp_reward are required"})
	}

	id := req.ID
	if id == "" {
		id = slug.Make(req.Title)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	task := models.DailyTask{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		XPReward:    req.XPReward,
		Active:      active,
	}
	if s.DB != nil {
		if err := s.DB.Create(&task).Error; err != nil {
			log.Printf("DB Error creating daily task: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create task"})
		}
	}
	s.Register(UnitOfWork{ID: task.ID, Kind: models.UnitKindDailyTask, Title: task.Title, XPReward: task.XPReward, Active: task.Active})

	return c.Status(fiber.StatusCreated).JSON(task)
}

// CreateCampaignTask creates a campaign task under an existing campaign (Admin only).
func (s *CatalogService) CreateCampaignTask(c *fiber.Ctx) error {
	campaignID := c.Params("campaignId")

	var req struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		XPReward    int64  `json:"xp_reward"`
		Active      *bool  `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" || req.XPReward <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and a positive xp_reward are required"})
	}

	id := req.ID
	if id == "" {
		id = campaignID + "-" + slug.Make(req.Title)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	task := models.CampaignTask{
		ID:          id,
		CampaignID:  campaignID,
		Title:       req.Title,
		Description: req.Description,
		XPReward:    req.XPReward,
		Active:      active,
	}
	if s.DB != nil {
		var campaign models.Campaign
		if err := s.DB.First(&campaign, "id = ?", campaignID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Campaign not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		if err := s.DB.Create(&task).Error; err != nil {
			log.Printf("DB Error creating campaign task: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create campaign task"})
		}
	}
	s.Register(UnitOfWork{ID: task.ID, Kind: models.UnitKindCampaignTask, Title: task.Title, XPReward: task.XPReward, Active: task.Active})

	return c.Status(fiber.StatusCreated).JSON(task)
}

// CreateCampaign creates a campaign shell (Admin only).
func (s *CatalogService) CreateCampaign(c *fiber.Ctx) error {
	var req struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		BannerURL string `json:"banner_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	id := req.ID
	if id == "" {
		id = slug.Make(req.Title)
	}
	campaign := models.Campaign{
		ID:        id,
		Title:     req.Title,
		BannerURL: req.BannerURL,
		Active:    true,
	}
	if s.DB != nil {
		if err := s.DB.Create(&campaign).Error; err != nil {
			log.Printf("DB Error creating campaign: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create campaign"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

// SetUnitActive toggles a unit's active flag (Admin only). Deactivated units
// refuse further claims immediately; existing completions are untouched.
func (s *CatalogService) SetUnitActive(c *fiber.Ctx) error {
	unitID := c.Params("id")

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	s.mu.Lock()
	unit, ok := s.units[unitID]
	if !ok {
		s.mu.Unlock()
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unit not found"})
	}
	unit.Active = req.Active
	s.units[unitID] = unit
	s.mu.Unlock()

	if s.DB != nil {
		var err error
		switch unit.Kind {
		case models.UnitKindQuest:
			err = s.DB.Model(&models.Quest{}).Where("id = ?", unitID).Update("active", req.Active).Error
		case models.UnitKindDailyTask:
			err = s.DB.Model(&models.DailyTask{}).Where("id = ?", unitID).Update("active", req.Active).Error
		case models.UnitKindCampaignTask:
			err = s.DB.Model(&models.CampaignTask{}).Where("id = ?", unitID).Update("active", req.Active).Error
		}
		if err != nil {
			log.Printf("DB Error toggling unit %s: %v", unitID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update unit"})
		}
	}

	return c.JSON(unit)
}
