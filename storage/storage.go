package storage

import (
	"errors"
	"time"

	"quest-reward-system/models"

	"gorm.io/datatypes"
)

// Sentinel errors. Business-rule failures must be distinguishable from
// infrastructure failures so the HTTP layer can map them correctly; any
// error that is not one of these is treated as storage-unavailable.
var (
	// ErrDuplicateCompletion means a CompletionRecord for (user, unit)
	// already exists. Returned only by the write path; it is the
	// authoritative duplicate-claim rejection.
	ErrDuplicateCompletion = errors.New("completion already recorded")

	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("record not found")
)

// XPResult is the outcome of a single atomic XP update. PreviousLevel and
// NewLevel are read and derived inside the same transaction or critical
// section so callers can detect the level-up edge without a stale read.
type XPResult struct {
	PreviousLevel   int   `json:"previous_level"`
	NewLevel        int   `json:"new_level"`
	XP              int64 `json:"xp"`
	QuestsCompleted int64 `json:"quests_completed"`
	TasksCompleted  int64 `json:"tasks_completed"`
}

// ProfileUpdate carries optional display-field edits (last-writer-wins).
type ProfileUpdate struct {
	DisplayName    *string
	AvatarURL      *string
	SocialProfiles *datatypes.JSON
}

// MintUpdate carries optional mint record mutations applied by the worker.
type MintUpdate struct {
	Status      *models.MintStatus
	TxHash      *string
	TokenID     *string
	MetadataURI *string
}

// Store is the single persistence contract. Both backends independently
// guarantee the completion-uniqueness and XP-atomicity invariants with
// their native primitives; business logic contains no backend-specific code.
type Store interface {
	// Users
	GetUser(id string) (*models.User, error)
	GetUserByAddress(address string) (*models.User, error) // case-insensitive
	CreateUser(user *models.User) error

	// Profiles. A missing profile is a valid state equivalent to xp=0.
	GetUserProfile(userID string) (*models.UserProfile, error)
	UpdateProfile(userID string, upd ProfileUpdate) (*models.UserProfile, error)

	// Completion ledger
	IsCompleted(userID, unitID string) (bool, error)
	RecordCompletion(userID, unitID string, xpAwarded int64) error
	CompletedUnits(userID string) ([]string, error)

	// Reward engine. Single atomic operation; level is derived from the
	// written XP inside the same transaction / critical section.
	AddXP(userID string, xpDelta int64, questsInc, tasksInc int64) (*XPResult, error)

	// Mint record bookkeeping. GetOrCreateMintRecord never overwrites an
	// existing row; concurrent creators all observe the same record.
	GetOrCreateMintRecord(userID string, level int, fields models.MintRecord) (*models.MintRecord, error)
	GetMintRecord(userID string, level int) (*models.MintRecord, error)
	UpdateMintRecord(userID string, level int, upd MintUpdate) error
	MintRecordsByStatus(status models.MintStatus) ([]models.MintRecord, error)
	StaleMintingRecords(olderThan time.Time) ([]models.MintRecord, error)

	// Sessions
	CreateSession(token, userID string, expiresAt time.Time) error
	GetSession(token string) (*models.SessionToken, error)
	DeleteSession(token string) error

	// OAuth bookkeeping
	UpsertOAuthAccount(acct *models.OAuthAccount) error
	GetOAuthAccount(userID, provider string) (*models.OAuthAccount, error)
}
