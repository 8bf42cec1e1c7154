package models

import "time"

// UnitKind distinguishes the claimable item types. The ledger treats them
// identically; the kind only decides which profile counter is incremented.
type UnitKind string

const (
	UnitKindQuest        UnitKind = "quest"
	UnitKindDailyTask    UnitKind = "daily_task"
	UnitKindCampaignTask UnitKind = "campaign_task"
)

// Quest is a one-time claimable item.
type Quest struct {
	ID          string `gorm:"primaryKey" json:"id"` // slug, e.g. "join-discord"
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	IconURL     string `gorm:"type:text" json:"icon_url"`
	XPReward    int64  `gorm:"not null" json:"xp_reward"`
	Active      bool   `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DailyTask is a recurring claimable item. Recurrence windows are handled by
// the catalog publishing flow, not the ledger; the unit ID encodes the window
// (e.g. "daily-task-1").
type DailyTask struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	XPReward    int64  `gorm:"not null" json:"xp_reward"`
	Active      bool   `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Campaign groups campaign tasks under a shared banner.
type Campaign struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"not null" json:"title"`
	BannerURL string     `gorm:"type:text" json:"banner_url"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	Active    bool       `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// CampaignTask is a claimable item scoped to a campaign.
type CampaignTask struct {
	ID          string `gorm:"primaryKey" json:"id"`
	CampaignID  string `gorm:"index;not null" json:"campaign_id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	XPReward    int64  `gorm:"not null" json:"xp_reward"`
	Active      bool   `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
