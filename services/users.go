package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"quest-reward-system/models"
	"quest-reward-system/storage"

	"github.com/google/uuid"
)

const sessionTTL = 7 * 24 * time.Hour

// UserService resolves caller identity and owns the session / profile /
// OAuth bookkeeping around the reward core.
type UserService struct {
	Store storage.Store
}

func NewUserService(store storage.Store) *UserService {
	return &UserService{Store: store}
}

// ResolveCaller turns either a user ID or a wallet address into a User.
// The two inputs are equivalent; ID wins when both are present.
func (s *UserService) ResolveCaller(userID, address string) (*models.User, error) {
	if userID != "" {
		return s.Store.GetUser(userID)
	}
	if address != "" {
		return s.Store.GetUserByAddress(address)
	}
	return nil, storage.ErrNotFound
}

// GetOrCreateByAddress returns the user owning the wallet, creating one on
// first sight. The gateway has already verified the signature challenge;
// this side only records identity.
func (s *UserService) GetOrCreateByAddress(address string) (*models.User, bool, error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return nil, false, fmt.Errorf("empty wallet address")
	}

	user, err := s.Store.GetUserByAddress(addr)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	user = &models.User{ID: uuid.NewString(), WalletAddress: &addr}
	if err := s.Store.CreateUser(user); err != nil {
		// Lost a creation race: someone else registered this wallet between
		// our read and write. Re-read instead of failing the login.
		if existing, lookupErr := s.Store.GetUserByAddress(addr); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	log.Printf("👛 New wallet user: %s (%s)", user.ID, addr)
	return user, true, nil
}

// IssueSession mints an opaque session token for the user.
func (s *UserService) IssueSession(userID string) (string, error) {
	token := uuid.NewString()
	if err := s.Store.CreateSession(token, userID, time.Now().Add(sessionTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// ResolveSession returns the user ID behind a live session token.
func (s *UserService) ResolveSession(token string) (string, error) {
	sess, err := s.Store.GetSession(token)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// RevokeSession logs the session out. Revoking an unknown token is a no-op.
func (s *UserService) RevokeSession(token string) error {
	return s.Store.DeleteSession(token)
}

// ProfileView returns the user's progression view. A missing profile is a
// valid state rendered as xp=0 / level=0.
func (s *UserService) ProfileView(userID string) (*models.UserProfile, error) {
	prof, err := s.Store.GetUserProfile(userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &models.UserProfile{UserID: userID}, nil
		}
		return nil, err
	}
	return prof, nil
}

// EditProfile applies display-field edits with last-writer-wins semantics.
func (s *UserService) EditProfile(userID string, upd storage.ProfileUpdate) (*models.UserProfile, error) {
	return s.Store.UpdateProfile(userID, upd)
}

// LinkOAuthAccount stores (or refreshes) a linked social account's tokens.
// The handshake itself happens upstream; this is bookkeeping only.
func (s *UserService) LinkOAuthAccount(userID, provider, providerUserID, accessToken, refreshToken string) error {
	return s.Store.UpsertOAuthAccount(&models.OAuthAccount{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
	})
}
