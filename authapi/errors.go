package authapi

import "errors"

// AuthError is the single error type surfaced by the client. Message is always
// safe to show to an end user; server-provided messages are passed through
// verbatim, network failures are normalized to a small set of readable ones.
type AuthError struct {
	Message    string
	StatusCode int // 0 when no HTTP response was received
	err        error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.err
}

// Temporary reports whether the failure was a transport problem rather than a
// server rejection. Credential errors are never temporary.
func (e *AuthError) Temporary() bool {
	return e.StatusCode == 0
}

// AsAuthError unwraps an *AuthError from err, if there is one.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Human-readable messages for transport failures. Only the login call site
// distinguishes between them; refresh treats every failure identically.
const (
	msgTimeout      = "the authentication service took too long to respond"
	msgUnreachable  = "cannot reach the authentication service"
	msgNetwork      = "a network error occurred, please try again"
	msgBadResponse  = "the authentication service returned an unexpected response"
	msgLoginFailed  = "invalid credentials"
	msgResetFailed  = "the reset link is invalid or has expired"
	msgVerifyFailed = "email verification failed"
)
