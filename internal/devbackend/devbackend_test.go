package devbackend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairhall/console/authapi"
	"github.com/fairhall/console/internal/devbackend"
	"github.com/fairhall/console/users"
)

const (
	testEmail    = "ola@fairhall.test"
	testPassword = "Password123"
)

func newFixture(t *testing.T, options ...devbackend.Options) (*devbackend.Backend, *authapi.Client) {
	t.Helper()
	backend := devbackend.New(options...)
	_, err := backend.AddUser(testEmail, testPassword, users.RoleOrganizer)
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	return backend, authapi.New(srv.URL)
}

func TestBackend_LoginAndRefreshRotation(t *testing.T) {
	_, client := newFixture(t)

	grant, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, grant.AccessToken)
	require.Equal(t, users.RoleOrganizer, grant.User.Role)

	next, err := client.Refresh(context.Background(), grant.User.ID, grant.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, grant.RefreshToken, next.RefreshToken)

	// The presented token was single use.
	_, err = client.Refresh(context.Background(), grant.User.ID, grant.RefreshToken)
	require.Error(t, err)
}

func TestBackend_RejectsBadCredentials(t *testing.T) {
	_, client := newFixture(t)

	_, err := client.Login(context.Background(), testEmail, "WrongPassword1")
	ae, ok := authapi.AsAuthError(err)
	require.True(t, ok)
	require.Equal(t, "Invalid credentials", ae.Message)
}

func TestBackend_LogoutInvalidatesRefreshToken(t *testing.T) {
	_, client := newFixture(t)

	grant, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, client.Logout(context.Background(), grant.User.ID, grant.RefreshToken))

	_, err = client.Refresh(context.Background(), grant.User.ID, grant.RefreshToken)
	require.Error(t, err)
}

func TestBackend_PasswordReset(t *testing.T) {
	backend, client := newFixture(t)

	require.NoError(t, client.ForgotPassword(context.Background(), testEmail))
	require.NoError(t, client.ForgotPassword(context.Background(), "nobody@fairhall.test"))

	token := backend.IssueResetToken(testEmail)
	require.NoError(t, client.ResetPassword(context.Background(), token, "NewPassword1", "NewPassword1"))

	// Token is consumed; old password no longer works.
	err := client.ResetPassword(context.Background(), token, "OtherPassword1", "OtherPassword1")
	require.Error(t, err)

	_, err = client.Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	grant, err := client.Login(context.Background(), testEmail, "NewPassword1")
	require.NoError(t, err)
	require.Equal(t, testEmail, grant.User.Email)
}

func TestBackend_VerifyEmail(t *testing.T) {
	backend, client := newFixture(t)

	token := backend.IssueVerifyToken()

	msg, err := client.VerifyEmail(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "Email verified", msg)

	_, err = client.VerifyEmail(context.Background(), token)
	ae, ok := authapi.AsAuthError(err)
	require.True(t, ok)
	require.Equal(t, "Verification link already used", ae.Message)

	_, err = client.VerifyEmail(context.Background(), "not-a-token")
	ae, ok = authapi.AsAuthError(err)
	require.True(t, ok)
	require.Equal(t, "Verification link is invalid or has expired", ae.Message)
}

func TestBackend_ProtectedEndpoint(t *testing.T) {
	backend := devbackend.New()
	_, err := backend.AddUser(testEmail, testPassword, users.RoleExhibitor)
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()
	client := authapi.New(srv.URL)

	grant, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	t.Run("accepts a valid bearer token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/exhibitions", nil)
		req.Header.Set("Authorization", "Bearer "+grant.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/exhibitions")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestBackend_SubSecondTTLToken(t *testing.T) {
	backend := devbackend.New(devbackend.WithAccessTTL(500 * time.Millisecond))
	_, err := backend.AddUser(testEmail, testPassword, users.RoleExhibitor)
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	grant, err := authapi.New(srv.URL).Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	fetch := func() int {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/exhibitions", nil)
		req.Header.Set("Authorization", "Bearer "+grant.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	// A freshly minted token with a sub-second lifetime must be live.
	require.Equal(t, http.StatusOK, fetch())

	time.Sleep(700 * time.Millisecond)
	require.Equal(t, http.StatusUnauthorized, fetch())
}

func TestBackend_ExpiredAccessToken(t *testing.T) {
	backend := devbackend.New(devbackend.WithAccessTTL(-time.Minute))
	_, err := backend.AddUser(testEmail, testPassword, users.RoleAdmin)
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	grant, err := authapi.New(srv.URL).Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/exhibitions", nil)
	req.Header.Set("Authorization", "Bearer "+grant.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
