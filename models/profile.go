package models

import (
	"time"

	"gorm.io/datatypes"
)

// XPPerLevel converts cumulative XP into an integer level: level = xp / 100.
const XPPerLevel int64 = 100

// LevelForXP derives the level from cumulative XP. The stored level must
// always equal this value; it is never written independently.
func LevelForXP(xp int64) int {
	if xp < 0 {
		return 0
	}
	return int(xp / XPPerLevel)
}

// UserProfile tracks gamified progression for each user (one per user,
// created lazily on first XP award or profile edit).
type UserProfile struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	// Core progression
	XP    int64 `json:"xp" gorm:"default:0"`
	Level int   `json:"level" gorm:"default:0"` // always xp / 100

	// Activity counters (incremented by caller-supplied deltas, never derived from XP)
	QuestsCompleted int64 `json:"quests_completed" gorm:"default:0"`
	TasksCompleted  int64 `json:"tasks_completed" gorm:"default:0"`

	// Display fields (last-writer-wins, no transactional requirements)
	DisplayName    string         `json:"display_name"`
	AvatarURL      string         `gorm:"type:text" json:"avatar_url"`
	SocialProfiles datatypes.JSON `gorm:"type:jsonb" json:"social_profiles,omitempty"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}
