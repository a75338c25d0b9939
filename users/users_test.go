package users_test

import (
	"testing"

	"github.com/fairhall/console/users"
	"github.com/stretchr/testify/require"
)

func TestRoleType_Valid(t *testing.T) {
	for _, role := range users.Roles {
		require.True(t, role.Valid(), "role %q should be valid", role)
	}
	require.False(t, users.RoleType("superuser").Valid())
	require.False(t, users.RoleType("").Valid())
}

func TestRoleType_DashboardPath(t *testing.T) {
	require.Equal(t, "/admin/dashboard", users.RoleAdmin.DashboardPath())
	require.Equal(t, "/organizer/dashboard", users.RoleOrganizer.DashboardPath())
	require.Equal(t, "/exhibitor/dashboard", users.RoleExhibitor.DashboardPath())
	require.Equal(t, "/login", users.RoleType("ghost").DashboardPath())
}

func TestUnmarshal(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		u := &users.User{ID: "u-1", Email: "a@b.com", Username: "ann", Role: users.RoleOrganizer}
		raw, err := u.Marshal()
		require.NoError(t, err)

		got, err := users.Unmarshal(raw)
		require.NoError(t, err)
		require.Equal(t, u, got)
	})

	t.Run("corrupt json", func(t *testing.T) {
		_, err := users.Unmarshal(`{"id":`)
		require.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := users.Unmarshal(`{"email":"a@b.com","role":"admin"}`)
		require.Error(t, err)
		require.Contains(t, err.Error(), "missing user id")
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := users.Unmarshal(`{"id":"u-1","email":"a@b.com","role":"root"}`)
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown role")
	})
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, users.ValidatePasswordStrength("Password123"))
	})

	t.Run("too short", func(t *testing.T) {
		err := users.ValidatePasswordStrength("Ab1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "at least 8 characters")
	})

	t.Run("missing uppercase", func(t *testing.T) {
		err := users.ValidatePasswordStrength("password123")
		require.Error(t, err)
		require.Contains(t, err.Error(), "uppercase")
	})

	t.Run("missing number", func(t *testing.T) {
		err := users.ValidatePasswordStrength("Passwords")
		require.Error(t, err)
		require.Contains(t, err.Error(), "number")
	})
}
