package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quest-reward-system/models"

	"github.com/google/uuid"
)

// Memory is the volatile in-process backend. A single mutex serializes all
// mutations, which is the critical-section equivalent of the relational
// backend's transactions: the completion set and the XP counters can never
// be observed in a torn state.
type Memory struct {
	mu sync.Mutex

	users       map[string]*models.User
	byAddress   map[string]string // lowercase address -> user ID
	profiles    map[string]*models.UserProfile
	completions map[string]map[string]*models.CompletionRecord // userID -> unitID -> record
	mints       map[string]*models.MintRecord                  // userID|level -> record
	sessions    map[string]*models.SessionToken
	oauth       map[string]*models.OAuthAccount // userID|provider -> account
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]*models.User),
		byAddress:   make(map[string]string),
		profiles:    make(map[string]*models.UserProfile),
		completions: make(map[string]map[string]*models.CompletionRecord),
		mints:       make(map[string]*models.MintRecord),
		sessions:    make(map[string]*models.SessionToken),
		oauth:       make(map[string]*models.OAuthAccount),
	}
}

func mintKey(userID string, level int) string {
	return fmt.Sprintf("%s|%d", userID, level)
}

// --- Users ---

func (m *Memory) GetUser(id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByAddress(address string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byAddress[strings.ToLower(address)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *Memory) CreateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.WalletAddress != nil {
		addr := strings.ToLower(*user.WalletAddress)
		if _, exists := m.byAddress[addr]; exists {
			return fmt.Errorf("wallet address already registered: %s", addr)
		}
		user.WalletAddress = &addr
		m.byAddress[addr] = user.ID
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// --- Profiles ---

func (m *Memory) GetUserProfile(userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ensureProfile must be called with the mutex held.
func (m *Memory) ensureProfile(userID string) *models.UserProfile {
	p, ok := m.profiles[userID]
	if !ok {
		p = &models.UserProfile{
			ID:     uuid.NewString(),
			UserID: userID,
		}
		m.profiles[userID] = p
	}
	return p
}

func (m *Memory) UpdateProfile(userID string, upd ProfileUpdate) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.ensureProfile(userID)
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	if upd.SocialProfiles != nil {
		p.SocialProfiles = *upd.SocialProfiles
	}
	cp := *p
	return &cp, nil
}

// --- Completion ledger ---

func (m *Memory) IsCompleted(userID, unitID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.completions[userID][unitID]
	return ok, nil
}

func (m *Memory) RecordCompletion(userID, unitID string, xpAwarded int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.completions[userID]
	if !ok {
		set = make(map[string]*models.CompletionRecord)
		m.completions[userID] = set
	}
	if _, exists := set[unitID]; exists {
		return ErrDuplicateCompletion
	}
	set[unitID] = &models.CompletionRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		UnitID:      unitID,
		XPAwarded:   xpAwarded,
		CompletedAt: time.Now(),
	}
	return nil
}

func (m *Memory) CompletedUnits(userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.completions[userID]
	units := make([]string, 0, len(set))
	for unitID := range set {
		units = append(units, unitID)
	}
	sort.Slice(units, func(i, j int) bool {
		return set[units[i]].CompletedAt.Before(set[units[j]].CompletedAt)
	})
	return units, nil
}

// --- Reward engine ---

func (m *Memory) AddXP(userID string, xpDelta int64, questsInc, tasksInc int64) (*XPResult, error) {
	if xpDelta < 0 {
		return nil, fmt.Errorf("negative xp delta: %d", xpDelta)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.ensureProfile(userID)
	previousLevel := p.Level

	p.XP += xpDelta
	p.Level = models.LevelForXP(p.XP)
	p.QuestsCompleted += questsInc
	p.TasksCompleted += tasksInc
	if p.Level > previousLevel {
		now := time.Now()
		p.LastLevelUpAt = &now
	}

	return &XPResult{
		PreviousLevel:   previousLevel,
		NewLevel:        p.Level,
		XP:              p.XP,
		QuestsCompleted: p.QuestsCompleted,
		TasksCompleted:  p.TasksCompleted,
	}, nil
}

// --- Mint records ---

func (m *Memory) GetOrCreateMintRecord(userID string, level int, fields models.MintRecord) (*models.MintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := mintKey(userID, level)
	if existing, ok := m.mints[key]; ok {
		cp := *existing
		return &cp, nil
	}

	rec := fields
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UserID = userID
	rec.Level = level
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.mints[key] = &rec

	cp := rec
	return &cp, nil
}

func (m *Memory) GetMintRecord(userID string, level int) (*models.MintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.mints[mintKey(userID, level)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) UpdateMintRecord(userID string, level int, upd MintUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.mints[mintKey(userID, level)]
	if !ok {
		return ErrNotFound
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.TxHash != nil {
		rec.TxHash = upd.TxHash
	}
	if upd.TokenID != nil {
		rec.TokenID = upd.TokenID
	}
	if upd.MetadataURI != nil {
		rec.MetadataURI = upd.MetadataURI
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) MintRecordsByStatus(status models.MintStatus) ([]models.MintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.MintRecord
	for _, rec := range m.mints {
		if rec.Status == status {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *Memory) StaleMintingRecords(olderThan time.Time) ([]models.MintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.MintRecord
	for _, rec := range m.mints {
		if rec.Status == models.MintStatusMinting && rec.UpdatedAt.Before(olderThan) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// --- Sessions ---

func (m *Memory) CreateSession(token, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[token] = &models.SessionToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *Memory) GetSession(token string) (*models.SessionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) DeleteSession(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

// --- OAuth ---

func (m *Memory) UpsertOAuthAccount(acct *models.OAuthAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := acct.UserID + "|" + acct.Provider
	if existing, ok := m.oauth[key]; ok {
		existing.ProviderUserID = acct.ProviderUserID
		existing.AccessToken = acct.AccessToken
		existing.RefreshToken = acct.RefreshToken
		existing.UpdatedAt = time.Now()
		return nil
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	cp := *acct
	m.oauth[key] = &cp
	return nil
}

func (m *Memory) GetOAuthAccount(userID, provider string) (*models.OAuthAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.oauth[userID+"|"+provider]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}
