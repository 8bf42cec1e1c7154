package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"quest-reward-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T, m *Memory, address string) *models.User {
	t.Helper()
	user := &models.User{}
	if address != "" {
		user.WalletAddress = &address
	}
	require.NoError(t, m.CreateUser(user))
	return user
}

func TestRecordCompletion_Duplicate(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	require.NoError(t, m.RecordCompletion(u.ID, "daily-task-1", 50))

	err := m.RecordCompletion(u.ID, "daily-task-1", 50)
	require.ErrorIs(t, err, ErrDuplicateCompletion)

	// A different unit is unaffected.
	require.NoError(t, m.RecordCompletion(u.ID, "daily-task-2", 50))
}

func TestRecordCompletion_ConcurrentExactlyOneWinner(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.RecordCompletion(u.ID, "quest-1", 100)
		}(i)
	}
	wg.Wait()

	var successes, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case err == ErrDuplicateCompletion:
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent claim must win")
	assert.Equal(t, n-1, duplicates)
}

func TestIsCompleted(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	done, err := m.IsCompleted(u.ID, "quest-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, m.RecordCompletion(u.ID, "quest-1", 10))

	done, err = m.IsCompleted(u.ID, "quest-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestCompletedUnits(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	units, err := m.CompletedUnits(u.ID)
	require.NoError(t, err)
	assert.Empty(t, units)

	require.NoError(t, m.RecordCompletion(u.ID, "a", 10))
	require.NoError(t, m.RecordCompletion(u.ID, "b", 10))
	require.NoError(t, m.RecordCompletion(u.ID, "c", 10))

	units, err = m.CompletedUnits(u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, units)
}

func TestAddXP_LevelDerivation(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	res, err := m.AddXP(u.ID, 50, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PreviousLevel)
	assert.Equal(t, 0, res.NewLevel)
	assert.Equal(t, int64(50), res.XP)
	assert.Equal(t, int64(1), res.TasksCompleted)

	// Crossing the 100 XP boundary is the level-up edge.
	res, err = m.AddXP(u.ID, 50, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PreviousLevel)
	assert.Equal(t, 1, res.NewLevel)
	assert.Equal(t, int64(100), res.XP)

	// A large award can cross several levels in one call.
	res, err = m.AddXP(u.ID, 250, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.Equal(t, 3, res.NewLevel)
	assert.Equal(t, int64(350), res.XP)
	assert.Equal(t, int64(1), res.QuestsCompleted)
	assert.Equal(t, int64(2), res.TasksCompleted)

	prof, err := m.GetUserProfile(u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LevelForXP(prof.XP), prof.Level, "stored level must equal the XP-derived value")
	require.NotNil(t, prof.LastLevelUpAt)
}

func TestAddXP_RejectsNegativeDelta(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	_, err := m.AddXP(u.ID, -10, 0, 0)
	require.Error(t, err)
}

func TestAddXP_ConcurrentTotals(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AddXP(u.ID, 10, 0, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	prof, err := m.GetUserProfile(u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n*10), prof.XP)
	assert.Equal(t, int64(n), prof.TasksCompleted)
	assert.Equal(t, models.LevelForXP(prof.XP), prof.Level)
}

func TestGetOrCreateMintRecord_Idempotent(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	first, err := m.GetOrCreateMintRecord(u.ID, 1, models.MintRecord{
		JobID:  "job-1",
		Status: models.MintStatusQueued,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", first.JobID)

	// The second create must return the existing row unchanged.
	second, err := m.GetOrCreateMintRecord(u.ID, 1, models.MintRecord{
		JobID:  "job-2",
		Status: models.MintStatusQueued,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", second.JobID)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateMintRecord_NeverOverwritesTxHash(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	_, err := m.GetOrCreateMintRecord(u.ID, 2, models.MintRecord{JobID: "job-1", Status: models.MintStatusQueued})
	require.NoError(t, err)

	tx := "0xabc"
	minted := models.MintStatusMinted
	require.NoError(t, m.UpdateMintRecord(u.ID, 2, MintUpdate{Status: &minted, TxHash: &tx}))

	rec, err := m.GetOrCreateMintRecord(u.ID, 2, models.MintRecord{JobID: "job-9", Status: models.MintStatusQueued})
	require.NoError(t, err)
	require.NotNil(t, rec.TxHash)
	assert.Equal(t, "0xabc", *rec.TxHash)
	assert.Equal(t, models.MintStatusMinted, rec.Status)
}

func TestStaleMintingRecords(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	_, err := m.GetOrCreateMintRecord(u.ID, 1, models.MintRecord{JobID: "j1", Status: models.MintStatusQueued})
	require.NoError(t, err)
	minting := models.MintStatusMinting
	require.NoError(t, m.UpdateMintRecord(u.ID, 1, MintUpdate{Status: &minting}))

	recs, err := m.StaleMintingRecords(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, recs, "a fresh minting record is not stale")

	recs, err = m.StaleMintingRecords(time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "j1", recs[0].JobID)
}

func TestGetUserByAddress_CaseInsensitive(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "0xAbCd1234")

	found, err := m.GetUserByAddress("0xABCD1234")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	found, err = m.GetUserByAddress("0xabcd1234")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = m.GetUserByAddress("0xother")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessions(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	require.NoError(t, m.CreateSession("tok-1", u.ID, time.Now().Add(time.Hour)))

	sess, err := m.GetSession("tok-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.UserID)

	// Expired tokens resolve as not found.
	require.NoError(t, m.CreateSession("tok-2", u.ID, time.Now().Add(-time.Second)))
	_, err = m.GetSession("tok-2")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.DeleteSession("tok-1"))
	_, err = m.GetSession("tok-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile_LastWriterWins(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	name := "alice"
	prof, err := m.UpdateProfile(u.ID, ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "alice", prof.DisplayName)
	assert.Equal(t, int64(0), prof.XP, "profile edits never touch progression")

	name2 := "bob"
	avatar := "https://cdn.example/a.png"
	prof, err = m.UpdateProfile(u.ID, ProfileUpdate{DisplayName: &name2, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "bob", prof.DisplayName)
	assert.Equal(t, avatar, prof.AvatarURL)
}

func TestUpsertOAuthAccount(t *testing.T) {
	m := NewMemory()
	u := newTestUser(t, m, "")

	require.NoError(t, m.UpsertOAuthAccount(&models.OAuthAccount{
		UserID: u.ID, Provider: "twitter", ProviderUserID: "t-1", AccessToken: "a1",
	}))
	require.NoError(t, m.UpsertOAuthAccount(&models.OAuthAccount{
		UserID: u.ID, Provider: "twitter", ProviderUserID: "t-1", AccessToken: "a2",
	}))

	acct, err := m.GetOAuthAccount(u.ID, "twitter")
	require.NoError(t, err)
	assert.Equal(t, "a2", acct.AccessToken)

	_, err = m.GetOAuthAccount(u.ID, "discord")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser_DuplicateWallet(t *testing.T) {
	m := NewMemory()
	newTestUser(t, m, "0xsame")

	addr := "0xSAME"
	err := m.CreateUser(&models.User{WalletAddress: &addr})
	require.Error(t, err, fmt.Sprintf("second registration of %s must fail", addr))
}
