package services

import (
	"sync"
	"testing"

	"quest-reward-system/models"
	"quest-reward-system/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureQueue records enqueued jobs instead of minting.
type captureQueue struct {
	mu   sync.Mutex
	jobs []models.MintJob
}

func (q *captureQueue) Enqueue(job models.MintJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

func (q *captureQueue) all() []models.MintJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.MintJob(nil), q.jobs...)
}

func newTestLedger(t *testing.T) (*LedgerService, *storage.Memory, *captureQueue) {
	t.Helper()

	store := storage.NewMemory()
	catalog := NewCatalogService(nil)
	catalog.Register(UnitOfWork{ID: "daily-task-1", Kind: models.UnitKindDailyTask, Title: "Daily Task 1", XPReward: 50, Active: true})
	catalog.Register(UnitOfWork{ID: "daily-task-2", Kind: models.UnitKindDailyTask, Title: "Daily Task 2", XPReward: 50, Active: true})
	catalog.Register(UnitOfWork{ID: "join-discord", Kind: models.UnitKindQuest, Title: "Join Discord", XPReward: 100, Active: true})
	catalog.Register(UnitOfWork{ID: "retired-quest", Kind: models.UnitKindQuest, Title: "Retired", XPReward: 100, Active: false})
	catalog.Register(UnitOfWork{ID: "zero-quest", Kind: models.UnitKindQuest, Title: "Zero", XPReward: 0, Active: true})

	queue := &captureQueue{}
	return NewLedgerService(store, catalog, queue), store, queue
}

func walletUser(t *testing.T, store *storage.Memory, address string) *models.User {
	t.Helper()
	user := &models.User{}
	if address != "" {
		user.WalletAddress = &address
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func TestClaim_ScenarioFirstClaimDuplicateThenLevelUp(t *testing.T) {
	ledger, store, queue := newTestLedger(t)
	u1 := walletUser(t, store, "0xu1")

	// First claim of daily-task-1.
	res, err := ledger.Claim(u1.ID, "daily-task-1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.PreviousLevel)
	assert.Equal(t, 0, res.NewLevel)
	assert.Equal(t, int64(50), res.XP)
	assert.False(t, res.LeveledUp)

	// Second claim of the same unit is declined with no state change.
	_, err = ledger.Claim(u1.ID, "daily-task-1")
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	prof, err := store.GetUserProfile(u1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), prof.XP)
	assert.Equal(t, int64(1), prof.TasksCompleted)

	// daily-task-2 crosses the level boundary and enqueues a mint job.
	res, err = ledger.Claim(u1.ID, "daily-task-2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.PreviousLevel)
	assert.Equal(t, 1, res.NewLevel)
	assert.Equal(t, int64(100), res.XP)
	assert.True(t, res.LeveledUp)

	rec, err := store.GetMintRecord(u1.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MintStatusQueued, rec.Status)

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, rec.JobID, jobs[0].JobID)
	assert.Equal(t, u1.ID, jobs[0].UserID)
	assert.Equal(t, 1, jobs[0].Level)
	assert.Equal(t, "0xu1", jobs[0].Recipient)
}

func TestClaim_ConcurrentDuplicatesExactlyOneSuccess(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	u := walletUser(t, store, "0xu2")

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Claim(u.ID, "daily-task-1")
		}(i)
	}
	wg.Wait()

	var successes, declined int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case err == ErrAlreadyClaimed:
			declined++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, declined)

	// Final XP equals initial XP plus exactly one reward.
	prof, err := store.GetUserProfile(u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), prof.XP)
	assert.Equal(t, int64(1), prof.TasksCompleted)
}

func TestClaim_InvalidUnitsRejectedBeforeAnyWrite(t *testing.T) {
	ledger, store, queue := newTestLedger(t)
	u := walletUser(t, store, "0xu3")

	for _, unitID := range []string{"retired-quest", "zero-quest", "no-such-unit"} {
		_, err := ledger.Claim(u.ID, unitID)
		require.ErrorIs(t, err, ErrInvalidUnit, "unit %s", unitID)

		done, err := ledger.Store.IsCompleted(u.ID, unitID)
		require.NoError(t, err)
		assert.False(t, done, "no completion may be recorded for %s", unitID)
	}

	// No profile was ever created, so XP is zero by definition.
	_, err := store.GetUserProfile(u.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, queue.all())
}

func TestClaim_UnknownUser(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.Claim("ghost", "daily-task-1")
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestClaim_QuestIncrementsQuestCounter(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	u := walletUser(t, store, "0xu4")

	res, err := ledger.Claim(u.ID, "join-discord")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.QuestsCompleted)
	assert.Equal(t, int64(0), res.TasksCompleted)
	assert.Equal(t, 1, res.NewLevel)
}

func TestClaim_WalletlessLevelUpIsRecordedButNotEnqueued(t *testing.T) {
	ledger, store, queue := newTestLedger(t)
	u := walletUser(t, store, "")

	res, err := ledger.Claim(u.ID, "join-discord")
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)

	// Level-up recorded as terminal skipped; nothing to mint without a
	// recipient address, and this is not retried.
	rec, err := store.GetMintRecord(u.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MintStatusSkipped, rec.Status)
	assert.Empty(t, queue.all())
}

func TestClaim_DuplicateLevelUpRaceCreatesOneMintRecord(t *testing.T) {
	ledger, store, queue := newTestLedger(t)
	u := walletUser(t, store, "0xu5")

	// Two distinct 50 XP claims in sequence: only the second crosses the
	// boundary, so exactly one record and one job exist for level 1.
	_, err := ledger.Claim(u.ID, "daily-task-1")
	require.NoError(t, err)
	_, err = ledger.Claim(u.ID, "daily-task-2")
	require.NoError(t, err)

	rec, err := store.GetMintRecord(u.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MintStatusQueued, rec.Status)
	assert.Len(t, queue.all(), 1)
}

func TestCompletedUnits_ReflectsCommittedClaimsOnly(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	u := walletUser(t, store, "0xu6")

	units, err := ledger.CompletedUnits(u.ID)
	require.NoError(t, err)
	assert.Empty(t, units)

	_, err = ledger.Claim(u.ID, "daily-task-1")
	require.NoError(t, err)
	_, err = ledger.Claim(u.ID, "join-discord")
	require.NoError(t, err)

	units, err = ledger.CompletedUnits(u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"daily-task-1", "join-discord"}, units)
}
