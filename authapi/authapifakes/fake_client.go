package authapifakes

import (
	"context"
	"strconv"
	"sync"

	"github.com/fairhall/console/authapi"
	"github.com/fairhall/console/users"
	"github.com/pkg/errors"
)

var _ authapi.API = (*FakeClient)(nil)

// FakeClient is an in-memory stand-in for the upstream auth endpoints.
// Accounts are seeded with AddUser; refresh tokens are single-use and rotate
// on every successful exchange, matching the platform's scheme.
type FakeClient struct {
	lock sync.Mutex

	accounts map[string]account // keyed by email
	refresh  map[string]string  // refresh token -> user ID
	nextTok  int

	// Failure toggles.
	FailLogin   error
	FailRefresh error
	FailLogout  error

	// RefreshBarrier, when non-nil, is closed-upon by the caller to release a
	// refresh call that is being held mid-flight. Used to test the
	// single-flight guard.
	RefreshBarrier chan struct{}

	// Call counters.
	LoginCalls   int
	RefreshCalls int
	LogoutCalls  int

	// LastLogout records the most recent logout notification.
	LastLogout struct {
		UserID       string
		RefreshToken string
	}
	loggedOut chan struct{}
}

type account struct {
	password string
	user     users.User
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		accounts:  make(map[string]account),
		refresh:   make(map[string]string),
		loggedOut: make(chan struct{}, 16),
	}
}

// AddUser seeds an account and returns its profile.
func (f *FakeClient) AddUser(email, password string, role users.RoleType) *users.User {
	f.lock.Lock()
	defer f.lock.Unlock()
	u := users.User{
		ID:    "user-" + email,
		Email: email,
		Role:  role,
	}
	f.accounts[email] = account{password: password, user: u}
	return &u
}

func (f *FakeClient) Login(ctx context.Context, email, password string) (*authapi.TokenGrant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.LoginCalls++

	if f.FailLogin != nil {
		return nil, f.FailLogin
	}
	acct, ok := f.accounts[email]
	if !ok || acct.password != password {
		return nil, &authapi.AuthError{Message: "Invalid credentials", StatusCode: 401}
	}
	grant := f.mintLocked(acct.user.ID)
	u := acct.user
	grant.User = &u
	return grant, nil
}

func (f *FakeClient) Refresh(ctx context.Context, userID, refreshToken string) (*authapi.TokenGrant, error) {
	f.lock.Lock()
	f.RefreshCalls++
	barrier := f.RefreshBarrier
	f.lock.Unlock()

	if barrier != nil {
		select {
		case <-barrier:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	if f.FailRefresh != nil {
		return nil, f.FailRefresh
	}
	owner, ok := f.refresh[refreshToken]
	if !ok || owner != userID {
		return nil, errors.New("invalid refresh token")
	}
	delete(f.refresh, refreshToken) // single use
	return f.mintLocked(userID), nil
}

func (f *FakeClient) Logout(ctx context.Context, userID, refreshToken string) error {
	f.lock.Lock()
	f.LogoutCalls++
	f.LastLogout.UserID = userID
	f.LastLogout.RefreshToken = refreshToken
	delete(f.refresh, refreshToken)
	err := f.FailLogout
	f.lock.Unlock()

	select {
	case f.loggedOut <- struct{}{}:
	default:
	}
	return err
}

func (f *FakeClient) ForgotPassword(ctx context.Context, email string) error {
	return nil
}

func (f *FakeClient) ResetPassword(ctx context.Context, token, password, confirmation string) error {
	if token == "expired" {
		return &authapi.AuthError{Message: "the reset link is invalid or has expired", StatusCode: 400}
	}
	return nil
}

func (f *FakeClient) VerifyEmail(ctx context.Context, token string) (string, error) {
	switch token {
	case "expired":
		return "", &authapi.AuthError{Message: "verification link expired", StatusCode: 400}
	case "used":
		return "", &authapi.AuthError{Message: "verification link already used", StatusCode: 400}
	default:
		return "email verified", nil
	}
}

// LoggedOut returns a channel that receives after each logout notification,
// so tests can wait for the fire-and-forget call without sleeping.
func (f *FakeClient) LoggedOut() <-chan struct{} {
	return f.loggedOut
}

// ValidRefreshToken reports whether tok is currently exchangeable.
func (f *FakeClient) ValidRefreshToken(tok string) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	_, ok := f.refresh[tok]
	return ok
}

// Calls returns the call counters under lock.
func (f *FakeClient) Calls() (login, refresh, logout int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.LoginCalls, f.RefreshCalls, f.LogoutCalls
}

func (f *FakeClient) mintLocked(userID string) *authapi.TokenGrant {
	f.nextTok++
	access := "access-" + strconv.Itoa(f.nextTok)
	f.nextTok++
	refreshTok := "refresh-" + strconv.Itoa(f.nextTok)
	f.refresh[refreshTok] = userID
	return &authapi.TokenGrant{AccessToken: access, RefreshToken: refreshTok}
}
