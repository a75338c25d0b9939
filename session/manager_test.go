package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/fairhall/console/authapi"
	"github.com/fairhall/console/authapi/authapifakes"
	"github.com/fairhall/console/session"
	"github.com/fairhall/console/session/memorystore"
	"github.com/fairhall/console/users"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ann@fairhall.test"
	testPassword = "Password123"
)

type fixture struct {
	store *memorystore.Store
	api   *authapifakes.FakeClient
	mgr   *session.Manager
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store := memorystore.New()
	api := authapifakes.NewFakeClient()
	api.AddUser(testEmail, testPassword, users.RoleOrganizer)

	mgr, err := session.NewManager(store, api)
	require.NoError(t, err)

	return &fixture{store: store, api: api, mgr: mgr}
}

func (f *fixture) login(t *testing.T) *users.User {
	t.Helper()
	u, err := f.mgr.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return u
}

func TestManager_Login(t *testing.T) {
	t.Run("success persists all three fields", func(t *testing.T) {
		f := setup(t)
		u := f.login(t)

		require.Equal(t, testEmail, u.Email)
		require.Equal(t, users.RoleOrganizer, u.Role)

		_, ok := f.store.Get(session.KeyAccessToken)
		require.True(t, ok)
		_, ok = f.store.Get(session.KeyRefreshToken)
		require.True(t, ok)
		_, ok = f.store.Get(session.KeyUser)
		require.True(t, ok)
		require.True(t, f.mgr.IsAuthenticated())
		require.Equal(t, session.StateAuthenticated, f.mgr.State())
	})

	t.Run("invalid credentials surface the server message and write nothing", func(t *testing.T) {
		f := setup(t)

		_, err := f.mgr.Login(context.Background(), testEmail, "wrong")
		require.Error(t, err)
		require.Equal(t, "Invalid credentials", err.Error())

		ae, ok := authapi.AsAuthError(err)
		require.True(t, ok)
		require.Equal(t, 401, ae.StatusCode)

		require.Equal(t, 0, f.store.Len(), "no partial session may be persisted")
		require.False(t, f.mgr.IsAuthenticated())
	})

	t.Run("network failure writes nothing", func(t *testing.T) {
		f := setup(t)
		f.api.FailLogin = &authapi.AuthError{Message: "cannot reach the authentication service"}

		_, err := f.mgr.Login(context.Background(), testEmail, testPassword)
		require.Error(t, err)
		require.Equal(t, 0, f.store.Len())
	})
}

func TestManager_Logout(t *testing.T) {
	t.Run("clears local state before notifying the server", func(t *testing.T) {
		f := setup(t)
		f.login(t)
		rt, _ := f.store.Get(session.KeyRefreshToken)

		f.mgr.Logout(context.Background())

		// Local state flips immediately, regardless of the notification.
		require.False(t, f.mgr.IsAuthenticated())
		require.Equal(t, 0, f.store.Len())

		select {
		case <-f.api.LoggedOut():
		case <-time.After(2 * time.Second):
			t.Fatal("server was never notified")
		}
		require.Equal(t, rt, f.api.LastLogout.RefreshToken)
	})

	t.Run("notification failure is swallowed", func(t *testing.T) {
		f := setup(t)
		f.login(t)
		f.api.FailLogout = &authapi.AuthError{Message: "boom"}

		f.mgr.Logout(context.Background())
		require.False(t, f.mgr.IsAuthenticated())

		select {
		case <-f.api.LoggedOut():
		case <-time.After(2 * time.Second):
			t.Fatal("notification was not attempted")
		}
	})

	t.Run("anonymous logout does not notify", func(t *testing.T) {
		f := setup(t)
		f.mgr.Logout(context.Background())

		_, _, logouts := f.api.Calls()
		require.Equal(t, 0, logouts)
	})
}

func TestManager_Refresh(t *testing.T) {
	t.Run("rotates tokens on success", func(t *testing.T) {
		f := setup(t)
		f.login(t)
		oldAccess, _ := f.store.Get(session.KeyAccessToken)
		oldRefresh, _ := f.store.Get(session.KeyRefreshToken)

		require.True(t, f.mgr.Refresh(context.Background()))

		newAccess, _ := f.store.Get(session.KeyAccessToken)
		newRefresh, _ := f.store.Get(session.KeyRefreshToken)
		require.NotEqual(t, oldAccess, newAccess)
		require.NotEqual(t, oldRefresh, newRefresh)
		require.True(t, f.mgr.IsAuthenticated())
	})

	t.Run("missing refresh token fails without a network call", func(t *testing.T) {
		f := setup(t)
		f.login(t)
		f.store.Remove(session.KeyRefreshToken)

		require.False(t, f.mgr.Refresh(context.Background()))

		_, refreshCalls, _ := f.api.Calls()
		require.Equal(t, 0, refreshCalls)
		require.Equal(t, 0, f.store.Len(), "pre-existing token and user must be cleared")
	})

	t.Run("anonymous refresh fails without a network call", func(t *testing.T) {
		f := setup(t)
		require.False(t, f.mgr.Refresh(context.Background()))
		_, refreshCalls, _ := f.api.Calls()
		require.Equal(t, 0, refreshCalls)
	})

	t.Run("upstream rejection tears the session down", func(t *testing.T) {
		f := setup(t)
		f.login(t)
		f.store.Set(session.KeyRefreshToken, "stolen")

		require.False(t, f.mgr.Refresh(context.Background()))
		require.Equal(t, 0, f.store.Len())
		require.Equal(t, session.StateAnonymous, f.mgr.State())
	})

	t.Run("concurrent refresh is single flight", func(t *testing.T) {
		f := setup(t)
		f.login(t)

		barrier := make(chan struct{})
		f.api.RefreshBarrier = barrier

		firstDone := make(chan bool, 1)
		go func() {
			firstDone <- f.mgr.Refresh(context.Background())
		}()

		// Wait until the first refresh is parked inside the fake.
		require.Eventually(t, func() bool {
			_, calls, _ := f.api.Calls()
			return calls == 1
		}, 2*time.Second, 5*time.Millisecond)
		require.Equal(t, session.StateRefreshing, f.mgr.State())

		// The second caller must fail fast, without waiting and without a
		// second network call.
		start := time.Now()
		require.False(t, f.mgr.Refresh(context.Background()))
		require.Less(t, time.Since(start), 500*time.Millisecond)

		close(barrier)
		require.True(t, <-firstDone)

		_, refreshCalls, _ := f.api.Calls()
		require.Equal(t, 1, refreshCalls, "at most one refresh call may reach the network")
	})
}

func TestManager_IsAuthenticated(t *testing.T) {
	f := setup(t)

	// Anonymous.
	require.False(t, f.mgr.IsAuthenticated())

	// Over a sequence of logins and logouts the answer tracks "both token and
	// user present" exactly.
	for i := 0; i < 3; i++ {
		f.login(t)
		require.True(t, f.mgr.IsAuthenticated())
		f.mgr.Logout(context.Background())
		require.False(t, f.mgr.IsAuthenticated())
	}

	// Token without user is not authenticated.
	f.store.Set(session.KeyAccessToken, "stray")
	require.False(t, f.mgr.IsAuthenticated())
}

func TestManager_CurrentUser(t *testing.T) {
	t.Run("returns the cached profile", func(t *testing.T) {
		f := setup(t)
		f.login(t)

		u, ok := f.mgr.CurrentUser()
		require.True(t, ok)
		require.Equal(t, testEmail, u.Email)
	})

	t.Run("corrupt profile is treated as absent and removed", func(t *testing.T) {
		f := setup(t)
		f.login(t)
		f.store.Set(session.KeyUser, "{not json")

		_, ok := f.mgr.CurrentUser()
		require.False(t, ok)

		_, ok = f.store.Get(session.KeyUser)
		require.False(t, ok, "corrupt value must be cleared proactively")
		_, ok = f.store.Get(session.KeyAccessToken)
		require.False(t, ok, "a token without a profile is stray")
		require.False(t, f.mgr.IsAuthenticated())
	})
}

func TestNewManager_ReconcilesInconsistentState(t *testing.T) {
	t.Run("token without user", func(t *testing.T) {
		store := memorystore.New()
		store.Set(session.KeyAccessToken, "stray-token")

		mgr, err := session.NewManager(store, authapifakes.NewFakeClient())
		require.NoError(t, err)

		require.False(t, mgr.IsAuthenticated())
		require.Equal(t, 0, store.Len(), "stray access token must be cleared on startup")
	})

	t.Run("user without token", func(t *testing.T) {
		store := memorystore.New()
		raw, err := (&users.User{ID: "u-1", Email: "a@b.com", Role: users.RoleAdmin}).Marshal()
		require.NoError(t, err)
		store.Set(session.KeyUser, raw)
		store.Set(session.KeyRefreshToken, "rt")

		mgr, err := session.NewManager(store, authapifakes.NewFakeClient())
		require.NoError(t, err)

		require.False(t, mgr.IsAuthenticated())
		require.Equal(t, 0, store.Len())
	})

	t.Run("consistent session is kept", func(t *testing.T) {
		f := setup(t)
		f.login(t)

		// A second manager over the same store picks the session up.
		mgr2, err := session.NewManager(f.store, f.api)
		require.NoError(t, err)
		require.True(t, mgr2.IsAuthenticated())
	})
}

func TestNewManager_Validation(t *testing.T) {
	_, err := session.NewManager(nil, authapifakes.NewFakeClient())
	require.Error(t, err)

	_, err = session.NewManager(memorystore.New(), nil)
	require.Error(t, err)
}
