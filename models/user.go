package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the stable identity record. Created on first successful wallet
// verification or legacy sign-up; never deleted in normal operation.
type User struct {
	ID            string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	WalletAddress *string `gorm:"uniqueIndex" json:"wallet_address,omitempty"` // stored lowercase
	Username      *string `gorm:"uniqueIndex" json:"username,omitempty"`       // legacy accounts
	PasswordHash  *string `json:"-"`

	Timestamps
}

// SessionToken is an opaque bearer token resolving to a user.
type SessionToken struct {
	Token     string    `gorm:"primaryKey" json:"token"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// OAuthAccount stores linked social accounts (e.g., Twitter). Token
// bookkeeping only; the OAuth handshake happens at the gateway.
type OAuthAccount struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID         string    `gorm:"not null;uniqueIndex:idx_oauth_user_provider" json:"user_id"`
	Provider       string    `gorm:"not null;uniqueIndex:idx_oauth_user_provider" json:"provider"`
	ProviderUserID string    `gorm:"index;not null" json:"provider_user_id"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
