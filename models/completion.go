package models

import "time"

// CompletionRecord is an append-only fact: this user was rewarded for this
// unit of work exactly once. The composite unique index is the authoritative
// guard against duplicate claims; application-level reads are advisory only.
type CompletionRecord struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_completion_user_unit" json:"user_id"`
	UnitID      string    `gorm:"not null;uniqueIndex:idx_completion_user_unit" json:"unit_id"`
	XPAwarded   int64     `gorm:"not null" json:"xp_awarded"`
	CompletedAt time.Time `json:"completed_at" gorm:"autoCreateTime"`
}
