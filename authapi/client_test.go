package authapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fairhall/console/authapi"
	"github.com/stretchr/testify/require"
)

func authServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Password != "Password123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"user":          map[string]string{"id": "u-1", "email": body.Email, "role": "exhibitor"},
		})
	})

	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID       string `json:"userId"`
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.RefreshToken != "rt-1" || body.UserID != "u-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "at-2",
			"refresh_token": "rt-2",
		})
	})

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /forgot-password", func(w http.ResponseWriter, r *http.Request) {
		// Deliberately generic whether or not the account exists.
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "If that account exists, an email is on its way"})
	})

	mux.HandleFunc("POST /reset-password", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Token == "expired" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Reset token has expired"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /auth/verify-email", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("token") {
		case "fresh":
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Email verified"})
		case "used":
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Verification link already used"})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Verification link expired"})
		}
	})

	return httptest.NewServer(mux)
}

func TestClient_Login(t *testing.T) {
	srv := authServer(t)
	defer srv.Close()
	c := authapi.New(srv.URL)

	t.Run("success", func(t *testing.T) {
		grant, err := c.Login(context.Background(), "a@b.com", "Password123")
		require.NoError(t, err)
		require.Equal(t, "at-1", grant.AccessToken)
		require.Equal(t, "rt-1", grant.RefreshToken)
		require.Equal(t, "u-1", grant.User.ID)
	})

	t.Run("server message passes through verbatim", func(t *testing.T) {
		_, err := c.Login(context.Background(), "a@b.com", "wrong")
		require.Error(t, err)

		ae, ok := authapi.AsAuthError(err)
		require.True(t, ok)
		require.Equal(t, "Invalid credentials", ae.Message)
		require.Equal(t, http.StatusUnauthorized, ae.StatusCode)
		require.False(t, ae.Temporary())
	})

	t.Run("malformed success response", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at-only"})
		}))
		defer bad.Close()

		_, err := authapi.New(bad.URL).Login(context.Background(), "a@b.com", "Password123")
		require.Error(t, err)
		ae, ok := authapi.AsAuthError(err)
		require.True(t, ok)
		require.Contains(t, ae.Message, "unexpected response")
	})

	t.Run("unreachable service", func(t *testing.T) {
		dead := httptest.NewServer(nil)
		dead.Close()

		_, err := authapi.New(dead.URL).Login(context.Background(), "a@b.com", "Password123")
		require.Error(t, err)
		ae, ok := authapi.AsAuthError(err)
		require.True(t, ok)
		require.True(t, ae.Temporary())
		require.Contains(t, ae.Message, "cannot reach")
	})

	t.Run("timeout", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer slow.Close()

		c := authapi.New(slow.URL, authapi.WithLoginTimeout(20*time.Millisecond))
		_, err := c.Login(context.Background(), "a@b.com", "Password123")
		require.Error(t, err)
		ae, ok := authapi.AsAuthError(err)
		require.True(t, ok)
		require.Contains(t, ae.Message, "too long")
	})
}

func TestClient_Refresh(t *testing.T) {
	srv := authServer(t)
	defer srv.Close()
	c := authapi.New(srv.URL)

	t.Run("success", func(t *testing.T) {
		grant, err := c.Refresh(context.Background(), "u-1", "rt-1")
		require.NoError(t, err)
		require.Equal(t, "at-2", grant.AccessToken)
		require.Equal(t, "rt-2", grant.RefreshToken)
		require.Nil(t, grant.User)
	})

	t.Run("rejection", func(t *testing.T) {
		_, err := c.Refresh(context.Background(), "u-1", "rt-stale")
		require.Error(t, err)
	})
}

func TestClient_Logout(t *testing.T) {
	srv := authServer(t)
	defer srv.Close()

	err := authapi.New(srv.URL).Logout(context.Background(), "u-1", "rt-1")
	require.NoError(t, err)
}

func TestClient_ForgotPassword(t *testing.T) {
	srv := authServer(t)
	defer srv.Close()

	require.NoError(t, authapi.New(srv.URL).ForgotPassword(context.Background(), "nobody@b.com"))
}

func TestClient_ResetPassword(t *testing.T) {
	srv := authServer(t)
	defer srv.Close()
	c := authapi.New(srv.URL)

	require.NoError(t, c.ResetPassword(context.Background(), "good", "NewPassword1", "NewPassword1"))

	err := c.ResetPassword(context.Background(), "expired", "NewPassword1", "NewPassword1")
	require.Error(t, err)
	ae, ok := authapi.AsAuthError(err)
	require.True(t, ok)
	require.Equal(t, "Reset token has expired", ae.Message)
}

func TestClient_VerifyEmail(t *testing.T) {
	srv := authServer(t)
	defer srv.Close()
	c := authapi.New(srv.URL)

	msg, err := c.VerifyEmail(context.Background(), "fresh")
	require.NoError(t, err)
	require.Equal(t, "Email verified", msg)

	_, err = c.VerifyEmail(context.Background(), "used")
	ae, ok := authapi.AsAuthError(err)
	require.True(t, ok)
	require.Equal(t, "Verification link already used", ae.Message)

	_, err = c.VerifyEmail(context.Background(), "stale")
	ae, ok = authapi.AsAuthError(err)
	require.True(t, ok)
	require.Equal(t, "Verification link expired", ae.Message)
}
