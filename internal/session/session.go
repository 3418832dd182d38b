// Package session owns the local session token and cached user
// identity, and answers the "am I logged in" question while keeping
// the token fresh behind the caller's back.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"AdDeck/internal/store"
	"AdDeck/pkg/adsapi"
)

// Manager maintains the token/user pair in the store; the token has no
// in-memory representation, every read goes through the store
type Manager struct {
	api   *adsapi.Client
	store store.Store

	mu      sync.Mutex
	current AuthStatus
}

// NewManager creates a session manager over the given API client and store
func NewManager(api *adsapi.Client, s store.Store) *Manager {
	return &Manager{
		api:     api,
		store:   s,
		current: AuthStatus{Status: StatusPending},
	}
}

// Current returns the last resolved status without touching the
// network; it is StatusPending until the first Status call settles
func (m *Manager) Current() AuthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) setCurrent(s AuthStatus) AuthStatus {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s
}

// Login authenticates with the given identifier and password and
// persists the returned token and user identity
func (m *Manager) Login(ctx context.Context, identifier, password string) (adsapi.AuthResult, error) {
	result, err := m.api.Login(ctx, identifier, password)
	if err != nil {
		return adsapi.AuthResult{}, err
	}
	if err = m.SaveAuthData(ctx, result.Token, result.User); err != nil {
		return adsapi.AuthResult{}, err
	}
	m.setCurrent(loggedIn(result.User, IdentityFresh))
	return result, nil
}

// Register creates a new account and persists its first session
func (m *Manager) Register(ctx context.Context, username, email, password string) (adsapi.AuthResult, error) {
	result, err := m.api.Register(ctx, username, email, password)
	if err != nil {
		return adsapi.AuthResult{}, err
	}
	if err = m.SaveAuthData(ctx, result.Token, result.User); err != nil {
		return adsapi.AuthResult{}, err
	}
	m.setCurrent(loggedIn(result.User, IdentityFresh))
	return result, nil
}

// Logout clears the local session unconditionally; the server-side
// invalidation is best-effort since "I am no longer logged in" must
// succeed even when offline
func (m *Manager) Logout(ctx context.Context) error {
	token, err := m.store.Get(ctx, store.SessionTokenKey)
	if err == nil && token != "" {
		if err = m.api.Logout(ctx, token); err != nil {
			log.Warnf("session: logout request failed, clearing local state anyway: %v", err)
		}
	}

	err = m.ClearAuthData(ctx)
	m.setCurrent(loggedOut(false))
	return err
}

// Token reads the current session token from the store
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.store.Get(ctx, store.SessionTokenKey)
}

// Status resolves the current session state:
// no stored token means logged out without any network call; otherwise
// the token is opportunistically refreshed, then validated against the
// backend; a 401 anywhere in the chain is the only authoritative
// logout, any other failure degrades to the cached identity
func (m *Manager) Status(ctx context.Context) AuthStatus {
	return m.setCurrent(m.resolve(ctx))
}

func (m *Manager) resolve(ctx context.Context) AuthStatus {
	token, err := m.store.Get(ctx, store.SessionTokenKey)
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Warnf("session: failed to read token: %v", err)
		}
		return loggedOut(false)
	}

	cached := m.cachedUser(ctx)

	// refresh is an optimization, not a prerequisite
	fresh, err := m.api.Refresh(ctx, token)
	switch {
	case err == nil:
		token = fresh.Token
	case errors.Is(err, adsapi.ErrTokenExpired):
		m.clearQuietly(ctx)
		return loggedOut(true)
	default:
		log.Warnf("session: refresh failed, continuing with current token: %v", err)
	}

	user, err := m.api.Status(ctx, token)
	switch {
	case err == nil:
		if err = m.SaveAuthData(ctx, token, user); err != nil {
			log.Warnf("session: failed to persist auth data: %v", err)
		}
		return loggedIn(user, IdentityFresh)
	case errors.Is(err, adsapi.ErrTokenExpired):
		m.clearQuietly(ctx)
		return loggedOut(true)
	default:
		log.Warnf("session: status check failed: %v", err)
		if cached != nil {
			return loggedIn(*cached, IdentityCached)
		}
		return loggedOut(false)
	}
}

// SaveAuthData persists the token and user identity under their keys
func (m *Manager) SaveAuthData(ctx context.Context, token string, user adsapi.UserInfo) error {
	if err := m.store.Set(ctx, store.SessionTokenKey, token); err != nil {
		return err
	}
	value, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, store.SessionUserKey, string(value))
}

// ClearAuthData removes the token and the cached identity
func (m *Manager) ClearAuthData(ctx context.Context) error {
	if err := m.store.Delete(ctx, store.SessionTokenKey); err != nil {
		return err
	}
	return m.store.Delete(ctx, store.SessionUserKey)
}

func (m *Manager) clearQuietly(ctx context.Context) {
	if err := m.ClearAuthData(ctx); err != nil {
		log.Warnf("session: failed to clear auth data: %v", err)
	}
}

// cachedUser reads the last-known identity, if any; it never fails the
// caller since the cache is a fallback only
func (m *Manager) cachedUser(ctx context.Context) *adsapi.UserInfo {
	value, err := m.store.Get(ctx, store.SessionUserKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warnf("session: failed to read cached identity: %v", err)
		}
		return nil
	}

	var user adsapi.UserInfo
	if err = json.Unmarshal([]byte(value), &user); err != nil {
		log.Warnf("session: corrupt cached identity, ignoring: %v", err)
		return nil
	}
	return &user
}
