package services

import (
	"errors"
	"fmt"
	"log"

	"quest-reward-system/models"
	"quest-reward-system/storage"

	"github.com/google/uuid"
)

// Business errors. These are declined outcomes, not system failures; the
// HTTP layer maps them to specific wire responses while anything else is
// treated as storage-unavailable.
var (
	ErrAlreadyClaimed = errors.New("unit already claimed")
	ErrInvalidUnit    = errors.New("unknown, inactive or zero-value unit")
	ErrUnknownUser    = errors.New("unknown user")
)

// MintEnqueuer accepts mint jobs without blocking. Satisfied by the mint
// worker; the ledger never waits on mint completion.
type MintEnqueuer interface {
	Enqueue(job models.MintJob)
}

// ClaimResult is the successful claim outcome.
type ClaimResult struct {
	UnitID          string `json:"unit_id"`
	XPAwarded       int64  `json:"xp_awarded"`
	PreviousLevel   int    `json:"previous_level"`
	NewLevel        int    `json:"new_level"`
	XP              int64  `json:"xp"`
	QuestsCompleted int64  `json:"quests_completed"`
	TasksCompleted  int64  `json:"tasks_completed"`
	LeveledUp       bool   `json:"leveled_up"`
}

// LedgerService implements the claim protocol: at most one reward per
// (user, unit), XP applied atomically, mint job enqueued on the level-up edge.
type LedgerService struct {
	Store   storage.Store
	Catalog *CatalogService
	Mints   MintEnqueuer // optional; nil disables mint side effects
}

func NewLedgerService(store storage.Store, catalog *CatalogService, mints MintEnqueuer) *LedgerService {
	return &LedgerService{Store: store, Catalog: catalog, Mints: mints}
}

// Claim records a completion and awards its XP.
//
// Ordering is deliberate: the completion is recorded before XP is granted so
// that a crash between the two writes leaves "completion recorded, XP not
// granted" rather than the reverse, which would allow unlimited re-claims.
// The duplicate rejection comes from the write path's uniqueness guarantee,
// never from the advisory read.
func (s *LedgerService) Claim(userID, unitID string) (*ClaimResult, error) {
	unit, ok := s.Catalog.Lookup(unitID)
	if !ok || !unit.Active || unit.XPReward <= 0 {
		return nil, ErrInvalidUnit
	}

	user, err := s.Store.GetUser(userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	// Advisory fast-path read. Even when it says "completed" we still go
	// through RecordCompletion: a read-then-write check has a race window,
	// and only the write path's uniqueness constraint is authoritative.
	if done, err := s.Store.IsCompleted(userID, unitID); err == nil && done {
		log.Printf("🔁 Duplicate claim attempt: user=%s unit=%s", userID, unitID)
	}

	if err := s.Store.RecordCompletion(userID, unitID, unit.XPReward); err != nil {
		if errors.Is(err, storage.ErrDuplicateCompletion) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("record completion: %w", err)
	}

	var questsInc, tasksInc int64
	switch unit.Kind {
	case models.UnitKindQuest:
		questsInc = 1
	default:
		tasksInc = 1
	}

	xp, err := s.Store.AddXP(userID, unit.XPReward, questsInc, tasksInc)
	if err != nil {
		// The completion is already recorded; it is not rolled back or
		// replayed (see the claim ordering note above).
		return nil, fmt.Errorf("award xp: %w", err)
	}

	log.Printf("🎮 XP Awarded: %s → +%d XP=%d Lvl=%d (unit: %s)",
		userID, unit.XPReward, xp.XP, xp.NewLevel, unitID)

	result := &ClaimResult{
		UnitID:          unitID,
		XPAwarded:       unit.XPReward,
		PreviousLevel:   xp.PreviousLevel,
		NewLevel:        xp.NewLevel,
		XP:              xp.XP,
		QuestsCompleted: xp.QuestsCompleted,
		TasksCompleted:  xp.TasksCompleted,
		LeveledUp:       xp.NewLevel > xp.PreviousLevel,
	}

	if result.LeveledUp {
		s.triggerMint(user, xp.NewLevel)
	}

	return result, nil
}

// triggerMint persists mint intent for the reached level and hands the job
// to the worker. Record-before-act: the queued MintRecord is written before
// anything is enqueued so a crash mid-flight is recoverable from stored
// intent. Failures here never fail the claim.
func (s *LedgerService) triggerMint(user *models.User, level int) {
	if user.WalletAddress == nil || *user.WalletAddress == "" {
		// Level-up is recorded as terminal skipped: without a recipient
		// address there is nothing to mint, and this is not retried.
		_, err := s.Store.GetOrCreateMintRecord(user.ID, level, models.MintRecord{
			JobID:  uuid.NewString(),
			Status: models.MintStatusSkipped,
		})
		if err != nil {
			log.Printf("❌ Failed to record walletless level-up: user=%s level=%d: %v", user.ID, level, err)
		}
		return
	}

	rec, err := s.Store.GetOrCreateMintRecord(user.ID, level, models.MintRecord{
		JobID:  uuid.NewString(),
		Status: models.MintStatusQueued,
	})
	if err != nil {
		log.Printf("❌ Failed to persist mint intent: user=%s level=%d: %v", user.ID, level, err)
		return
	}

	if s.Mints == nil {
		return
	}
	s.Mints.Enqueue(models.MintJob{
		JobID:     rec.JobID,
		UserID:    user.ID,
		Level:     level,
		Recipient: *user.WalletAddress,
	})
	log.Printf("⛏️  Mint job enqueued: job=%s user=%s level=%d", rec.JobID, user.ID, level)
}

// CompletedUnits returns the committed completions for a user, oldest first.
func (s *LedgerService) CompletedUnits(userID string) ([]string, error) {
	return s.Store.CompletedUnits(userID)
}
