// Package session owns the authentication session lifecycle: the persisted
// token store, the Manager that is the sole authority for state transitions,
// and the Registry that maps browser sessions to Managers.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairhall/console/authapi"
	"github.com/fairhall/console/internal/metrics"
	"github.com/fairhall/console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuthAPI is the slice of the upstream contract the Manager needs.
// *authapi.Client satisfies it.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*authapi.TokenGrant, error)
	Refresh(ctx context.Context, userID, refreshToken string) (*authapi.TokenGrant, error)
	Logout(ctx context.Context, userID, refreshToken string) error
}

// State is the session-level state machine position.
type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
	StateRefreshing    State = "refreshing"
)

const logoutNotifyTimeout = 5 * time.Second

// Manager is the sole authority for one session's state transitions. All
// writes to the Store go through it, under a single mutex, so a reader never
// observes a fresh access token next to a stale user record.
type Manager struct {
	store  Store
	api    AuthAPI
	logger zerolog.Logger

	writeLock  sync.Mutex
	refreshing atomic.Bool
}

// ManagerOption modifies a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for teardown and notification diagnostics.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store. If the store holds an inconsistent
// session (a token without a user record, or vice versa) it is cleared
// immediately and the manager starts Anonymous.
func NewManager(store Store, api AuthAPI, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if api == nil {
		return nil, errors.New("[NewManager] auth API is required")
	}

	m := &Manager{
		store:  store,
		api:    api,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}

	m.reconcile()
	return m, nil
}

// Login exchanges credentials for a session. On success the three session
// fields are persisted together (user record first, so no reader ever sees a
// token without a matching user). On failure nothing is written and the
// returned error carries a message fit for display.
func (m *Manager) Login(ctx context.Context, email, password string) (*users.User, error) {
	grant, err := m.api.Login(ctx, email, password)
	if err != nil {
		metrics.LoginFailure.Inc()
		return nil, err
	}

	raw, err := grant.User.Marshal()
	if err != nil {
		metrics.LoginFailure.Inc()
		return nil, errors.Wrap(err, "[Manager.Login] serialize profile")
	}

	m.writeLock.Lock()
	m.store.Set(KeyUser, raw)
	m.store.Set(KeyAccessToken, grant.AccessToken)
	m.store.Set(KeyRefreshToken, grant.RefreshToken)
	m.writeLock.Unlock()

	metrics.LoginSuccess.Inc()
	return grant.User, nil
}

// Logout destroys the session. Local state is cleared before the server is
// told, so the client-observable authenticated state flips immediately and
// deterministically regardless of network outcome. The server notification is
// fire-and-forget: it runs detached from the caller's context and its failure
// is only logged.
func (m *Manager) Logout(ctx context.Context) {
	m.writeLock.Lock()
	user, hasUser := m.currentUserLocked()
	refreshToken, hasRefresh := m.store.Get(KeyRefreshToken)
	m.clearLocked()
	m.writeLock.Unlock()

	if !hasUser || !hasRefresh {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutNotifyTimeout)
	go func() {
		defer cancel()
		if err := m.api.Logout(notifyCtx, user.ID, refreshToken); err != nil {
			m.logger.Debug().Err(err).Str("user_id", user.ID).Msg("logout notification dropped")
		}
	}()
}

// Refresh exchanges the refresh token for a new access token. It performs at
// most one network round trip; on any failure the session is cleared and false
// is returned. If the refresh token or the user id is missing the call fails
// without touching the network. At most one refresh is ever in flight: a call
// arriving while another is outstanding returns false immediately, without a
// second network call, because most refresh-token schemes invalidate the old
// token on use.
func (m *Manager) Refresh(ctx context.Context) bool {
	if !m.refreshing.CompareAndSwap(false, true) {
		metrics.RefreshSuppressed.Inc()
		return false
	}
	defer m.refreshing.Store(false)

	m.writeLock.Lock()
	refreshToken, hasRefresh := m.store.Get(KeyRefreshToken)
	user, hasUser := m.currentUserLocked()
	if !hasRefresh || !hasUser {
		m.clearLocked()
		m.writeLock.Unlock()
		metrics.RefreshFailure.Inc()
		return false
	}
	m.writeLock.Unlock()

	grant, err := m.api.Refresh(ctx, user.ID, refreshToken)
	if err != nil {
		m.logger.Debug().Err(err).Str("user_id", user.ID).Msg("refresh failed, tearing session down")
		m.Clear()
		metrics.RefreshFailure.Inc()
		return false
	}

	m.writeLock.Lock()
	if grant.User != nil {
		if raw, marshalErr := grant.User.Marshal(); marshalErr == nil {
			m.store.Set(KeyUser, raw)
		}
	}
	m.store.Set(KeyAccessToken, grant.AccessToken)
	if grant.RefreshToken != "" {
		m.store.Set(KeyRefreshToken, grant.RefreshToken)
	}
	m.writeLock.Unlock()

	metrics.RefreshSuccess.Inc()
	return true
}

// IsAuthenticated reports whether both an access token and a user record are
// present. It is a purely local check: no expiry validation, no network.
func (m *Manager) IsAuthenticated() bool {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()
	_, hasToken := m.store.Get(KeyAccessToken)
	_, hasUser := m.currentUserLocked()
	return hasToken && hasUser
}

// CurrentUser returns the cached profile record. A stored value that fails to
// parse is treated as absent and removed, along with the access token that is
// now stray without it.
func (m *Manager) CurrentUser() (*users.User, bool) {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()
	return m.currentUserLocked()
}

// AccessToken returns the current access token, if any.
func (m *Manager) AccessToken() (string, bool) {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()
	return m.store.Get(KeyAccessToken)
}

// State reports the session's position in the lifecycle state machine.
func (m *Manager) State() State {
	if m.refreshing.Load() {
		return StateRefreshing
	}
	if m.IsAuthenticated() {
		return StateAuthenticated
	}
	return StateAnonymous
}

// Clear empties the store, forcing the session to Anonymous.
func (m *Manager) Clear() {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()
	m.clearLocked()
}

func (m *Manager) clearLocked() {
	m.store.Remove(KeyAccessToken)
	m.store.Remove(KeyRefreshToken)
	m.store.Remove(KeyUser)
}

// reconcile enforces the invariant that access token and user record are
// either both present or both absent. Anything else reads as a corrupted
// session and the whole store is cleared.
func (m *Manager) reconcile() {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()

	_, hasToken := m.store.Get(KeyAccessToken)
	_, hasUser := m.currentUserLocked()
	if hasToken != hasUser {
		m.logger.Warn().Msg("inconsistent session state at startup, clearing")
		m.clearLocked()
	}
}

func (m *Manager) currentUserLocked() (*users.User, bool) {
	raw, ok := m.store.Get(KeyUser)
	if !ok {
		return nil, false
	}
	u, err := users.Unmarshal(raw)
	if err != nil {
		m.logger.Warn().Err(err).Msg("stored profile unreadable, discarding")
		m.store.Remove(KeyUser)
		m.store.Remove(KeyAccessToken)
		return nil, false
	}
	return u, true
}
