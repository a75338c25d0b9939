package users

import (
	"encoding/json"
	"unicode"

	"github.com/pkg/errors"
)

// RoleType represents a console role. The set is closed: a user is exactly one
// of admin, organizer or exhibitor, and the role is fixed for the lifetime of a
// session (a role change requires a new login).
type RoleType string

const (
	RoleAdmin     RoleType = "admin"     // Platform administrators
	RoleOrganizer RoleType = "organizer" // Exhibition organizers
	RoleExhibitor RoleType = "exhibitor" // Exhibitors managing their own booths
)

// Roles lists every valid role, in no particular order.
var Roles = []RoleType{RoleAdmin, RoleOrganizer, RoleExhibitor}

// Valid reports whether r is one of the known console roles.
func (r RoleType) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleExhibitor:
		return true
	}
	return false
}

// DashboardPath returns the role's landing view. Authenticated users who reach
// a view gated to a different role are redirected here rather than to an error
// page. Unknown roles land on the login page.
func (r RoleType) DashboardPath() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleOrganizer:
		return "/organizer/dashboard"
	case RoleExhibitor:
		return "/exhibitor/dashboard"
	}
	return "/login"
}

// User is the profile record cached alongside the session tokens. It mirrors
// the shape returned by the platform's auth endpoints.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Username string   `json:"username,omitempty"`
	Role     RoleType `json:"role"`
	Avatar   string   `json:"avatar,omitempty"`
}

// Validate checks the fields a session depends on. A user without an ID cannot
// refresh (the refresh exchange requires the user id), and a user with an
// unknown role cannot be routed anywhere.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("[User.Validate] missing user id")
	}
	if !u.Role.Valid() {
		return errors.Errorf("[User.Validate] unknown role %q", u.Role)
	}
	return nil
}

// Marshal serializes the user for the token store.
func (u *User) Marshal() (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", errors.Wrap(err, "[User.Marshal] json.Marshal")
	}
	return string(b), nil
}

// Unmarshal parses a stored profile record. Callers treat any error as an
// integrity failure and clear the stored value.
func Unmarshal(raw string) (*User, error) {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, errors.Wrap(err, "[users.Unmarshal] json.Unmarshal")
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

// ValidatePasswordStrength checks reset-password input before it is sent
// upstream:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}

	return nil
}
