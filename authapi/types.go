package authapi

import "github.com/fairhall/console/users"

// TokenGrant is the token payload returned by the login and refresh endpoints.
// RefreshToken may be absent on refresh when the server does not rotate; User
// is only present when the server supplies an updated profile.
type TokenGrant struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         *users.User `json:"user,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token                string `json:"token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

// serverMessage is the error/info envelope the platform uses across endpoints.
type serverMessage struct {
	Message string `json:"message"`
}
