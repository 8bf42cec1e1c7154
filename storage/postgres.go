package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quest-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres is the relational backend. Uniqueness is enforced by the
// composite unique indexes on completion_records and mint_records;
// RecordCompletion relies on INSERT ... ON CONFLICT DO NOTHING and inspects
// the affected row count to distinguish "just inserted" from "already there".
type Postgres struct {
	DB *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{DB: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Users ---

func (p *Postgres) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := p.DB.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (p *Postgres) GetUserByAddress(address string) (*models.User, error) {
	var user models.User
	if err := p.DB.Where("LOWER(wallet_address) = ?", strings.ToLower(address)).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (p *Postgres) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.WalletAddress != nil {
		addr := strings.ToLower(*user.WalletAddress)
		user.WalletAddress = &addr
	}
	return p.DB.Create(user).Error
}

// --- Profiles ---

// lockProfile loads the user's profile row FOR UPDATE, creating it first on
// the user's first write. The seed insert uses ON CONFLICT DO NOTHING so two
// first writers never abort each other; both end up locking the same row.
func lockProfile(tx *gorm.DB, userID string, prof *models.UserProfile) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(prof).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	seed := models.UserProfile{ID: uuid.NewString(), UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return err
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(prof).Error
}

func (p *Postgres) GetUserProfile(userID string) (*models.UserProfile, error) {
	var prof models.UserProfile
	if err := p.DB.Where("user_id = ?", userID).First(&prof).Error; err != nil {
		return nil, notFound(err)
	}
	return &prof, nil
}

func (p *Postgres) UpdateProfile(userID string, upd ProfileUpdate) (*models.UserProfile, error) {
	var prof models.UserProfile
	err := p.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockProfile(tx, userID, &prof); err != nil {
			return err
		}
		if upd.DisplayName != nil {
			prof.DisplayName = *upd.DisplayName
		}
		if upd.AvatarURL != nil {
			prof.AvatarURL = *upd.AvatarURL
		}
		if upd.SocialProfiles != nil {
			prof.SocialProfiles = *upd.SocialProfiles
		}
		return tx.Save(&prof).Error
	})
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

// --- Completion ledger ---

func (p *Postgres) IsCompleted(userID, unitID string) (bool, error) {
	var count int64
	err := p.DB.Model(&models.CompletionRecord{}).
		Where("user_id = ? AND unit_id = ?", userID, unitID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Postgres) RecordCompletion(userID, unitID string, xpAwarded int64) error {
	rec := models.CompletionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		UnitID:    unitID,
		XPAwarded: xpAwarded,
	}
	res := p.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "unit_id"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return res.Error
	}
	// Zero rows affected means the unique index swallowed the insert:
	// someone else already holds this completion.
	if res.RowsAffected == 0 {
		return ErrDuplicateCompletion
	}
	return nil
}

func (p *Postgres) CompletedUnits(userID string) ([]string, error) {
	var units []string
	err := p.DB.Model(&models.CompletionRecord{}).
		Where("user_id = ?", userID).
		Order("completed_at ASC").
		Pluck("unit_id", &units).Error
	return units, err
}

// --- Reward engine ---

// AddXP updates XP, level and counters inside one transaction. The profile
// row is locked for the duration so the previous level read and the new
// level write cannot interleave with a concurrent award.
func (p *Postgres) AddXP(userID string, xpDelta int64, questsInc, tasksInc int64) (*XPResult, error) {
	if xpDelta < 0 {
		return nil, fmt.Errorf("negative xp delta: %d", xpDelta)
	}

	var result XPResult
	err := p.DB.Transaction(func(tx *gorm.DB) error {
		var prof models.UserProfile
		if err := lockProfile(tx, userID, &prof); err != nil {
			return err
		}

		previousLevel := prof.Level

		prof.XP += xpDelta
		prof.Level = models.LevelForXP(prof.XP)
		prof.QuestsCompleted += questsInc
		prof.TasksCompleted += tasksInc
		if prof.Level > previousLevel {
			now := time.Now()
			prof.LastLevelUpAt = &now
		}

		if err := tx.Save(&prof).Error; err != nil {
			return err
		}

		result = XPResult{
			PreviousLevel:   previousLevel,
			NewLevel:        prof.Level,
			XP:              prof.XP,
			QuestsCompleted: prof.QuestsCompleted,
			TasksCompleted:  prof.TasksCompleted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Mint records ---

func (p *Postgres) GetOrCreateMintRecord(userID string, level int, fields models.MintRecord) (*models.MintRecord, error) {
	rec := fields
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UserID = userID
	rec.Level = level

	res := p.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "level"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return &rec, nil
	}

	// Lost the race (or the record predates this call): return the existing
	// row unchanged, never overwriting a txHash someone else persisted.
	var existing models.MintRecord
	if err := p.DB.Where("user_id = ? AND level = ?", userID, level).First(&existing).Error; err != nil {
		return nil, notFound(err)
	}
	return &existing, nil
}

func (p *Postgres) GetMintRecord(userID string, level int) (*models.MintRecord, error) {
	var rec models.MintRecord
	if err := p.DB.Where("user_id = ? AND level = ?", userID, level).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (p *Postgres) UpdateMintRecord(userID string, level int, upd MintUpdate) error {
	updates := map[string]interface{}{}
	if upd.Status != nil {
		updates["status"] = *upd.Status
	}
	if upd.TxHash != nil {
		updates["tx_hash"] = *upd.TxHash
	}
	if upd.TokenID != nil {
		updates["token_id"] = *upd.TokenID
	}
	if upd.MetadataURI != nil {
		updates["metadata_uri"] = *upd.MetadataURI
	}
	if len(updates) == 0 {
		return nil
	}

	res := p.DB.Model(&models.MintRecord{}).
		Where("user_id = ? AND level = ?", userID, level).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) MintRecordsByStatus(status models.MintStatus) ([]models.MintRecord, error) {
	var recs []models.MintRecord
	err := p.DB.Where("status = ?", status).Order("created_at ASC").Find(&recs).Error
	return recs, err
}

func (p *Postgres) StaleMintingRecords(olderThan time.Time) ([]models.MintRecord, error) {
	var recs []models.MintRecord
	err := p.DB.Where("status = ? AND updated_at < ?", models.MintStatusMinting, olderThan).
		Find(&recs).Error
	return recs, err
}

// --- Sessions ---

func (p *Postgres) CreateSession(token, userID string, expiresAt time.Time) error {
	return p.DB.Create(&models.SessionToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}).Error
}

func (p *Postgres) GetSession(token string) (*models.SessionToken, error) {
	var s models.SessionToken
	err := p.DB.Where("token = ? AND expires_at > ?", token, time.Now()).First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (p *Postgres) DeleteSession(token string) error {
	return p.DB.Where("token = ?", token).Delete(&models.SessionToken{}).Error
}

// --- OAuth ---

func (p *Postgres) UpsertOAuthAccount(acct *models.OAuthAccount) error {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	return p.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_user_id",
			"access_token",
			"refresh_token",
			"updated_at",
		}),
	}).Create(acct).Error
}

func (p *Postgres) GetOAuthAccount(userID, provider string) (*models.OAuthAccount, error) {
	var acct models.OAuthAccount
	err := p.DB.Where("user_id = ? AND provider = ?", userID, provider).First(&acct).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}
