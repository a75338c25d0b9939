// Package authapi is the typed client for the FairHall platform's
// authentication endpoints. It owns the wire contract: request/response
// shapes, timeouts, and the normalization of every failure into an AuthError
// carrying a human-readable message.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
)

const (
	defaultTimeout = 10 * time.Second
	// Login gets a longer window: the upstream login/signup path accepts
	// avatar uploads and can be slow.
	defaultLoginTimeout = 30 * time.Second
)

// API is the full upstream auth surface consumed by the gateway.
type API interface {
	Login(ctx context.Context, email, password string) (*TokenGrant, error)
	Refresh(ctx context.Context, userID, refreshToken string) (*TokenGrant, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirmation string) error
	VerifyEmail(ctx context.Context, token string) (string, error)
}

// Client implements API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	loginHTTP  *http.Client
}

var _ API = (*Client)(nil)

// Option modifies a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client for all calls except
// login. The client's own timeout configuration is respected.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout for all calls except login.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithLoginTimeout sets the timeout for the login call only.
func WithLoginTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.loginHTTP = &http.Client{Timeout: d}
	}
}

// New creates a client for the auth endpoints rooted at baseURL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		loginHTTP:  &http.Client{Timeout: defaultLoginTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token grant. Failures are normalized to an
// *AuthError: server rejections carry the server's message verbatim, transport
// failures are classified into distinct readable messages.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenGrant, error) {
	var payload struct {
		TokenGrant
		serverMessage
	}
	status, err := c.postJSON(ctx, c.loginHTTP, "/auth/login", loginRequest{Email: email, Password: password}, &payload)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if status < 200 || status >= 300 {
		message := payload.Message
		if message == "" {
			message = msgLoginFailed
		}
		return nil, &AuthError{Message: message, StatusCode: status}
	}
	grant := payload.TokenGrant
	if grant.AccessToken == "" || grant.RefreshToken == "" || grant.User == nil {
		return nil, &AuthError{Message: msgBadResponse, StatusCode: status}
	}
	if err := grant.User.Validate(); err != nil {
		return nil, &AuthError{Message: msgBadResponse, StatusCode: status, err: err}
	}
	return &grant, nil
}

// Refresh performs a single refresh-token exchange. Unlike Login, callers do
// not distinguish failure modes, so everything collapses into one error.
func (c *Client) Refresh(ctx context.Context, userID, refreshToken string) (*TokenGrant, error) {
	grant := &TokenGrant{}
	status, err := c.postJSON(ctx, c.httpClient, "/refresh", refreshRequest{UserID: userID, RefreshToken: refreshToken}, grant)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Client.Refresh] exchange failed")
	}
	if status < 200 || status >= 300 {
		return nil, pkgerrors.Errorf("[Client.Refresh] upstream returned %d", status)
	}
	if grant.AccessToken == "" {
		return nil, pkgerrors.New("[Client.Refresh] response missing access token")
	}
	return grant, nil
}

// Logout notifies the server that the refresh token should be invalidated.
// Callers treat this as best effort; the error is returned for logging only.
func (c *Client) Logout(ctx context.Context, userID, refreshToken string) error {
	status, err := c.postJSON(ctx, c.httpClient, "/logout", logoutRequest{UserID: userID, RefreshToken: refreshToken}, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "[Client.Logout] notify failed")
	}
	if status < 200 || status >= 300 {
		return pkgerrors.Errorf("[Client.Logout] upstream returned %d", status)
	}
	return nil
}

// ForgotPassword requests a reset email. The upstream response is generic and
// non-revealing; so is this method — any outcome other than a transport
// failure is success, to avoid account enumeration at every layer.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.postJSON(ctx, c.httpClient, "/forgot-password", forgotPasswordRequest{Email: email}, nil)
	if err != nil {
		return classifyTransport(err)
	}
	return nil
}

// ResetPassword completes a password reset using the emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirmation string) error {
	var msg serverMessage
	status, err := c.postJSON(ctx, c.httpClient, "/reset-password", resetPasswordRequest{
		Token:                token,
		Password:             password,
		PasswordConfirmation: confirmation,
	}, &msg)
	if err != nil {
		return classifyTransport(err)
	}
	if status < 200 || status >= 300 {
		message := msg.Message
		if message == "" {
			message = msgResetFailed
		}
		return &AuthError{Message: message, StatusCode: status}
	}
	return nil
}

// VerifyEmail confirms an email-verification token and returns the server's
// outcome message (verified / expired / already used / already verified are
// distinguished by message content, not status).
func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	endpoint := c.baseURL + "/auth/verify-email?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", pkgerrors.Wrap(err, "[Client.VerifyEmail] new request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	var msg serverMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&msg); err != nil || msg.Message == "" {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return "", &AuthError{Message: msgBadResponse, StatusCode: resp.StatusCode}
		}
		return "", &AuthError{Message: msgVerifyFailed, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Message: msg.Message, StatusCode: resp.StatusCode}
	}
	return msg.Message, nil
}

const maxResponseBytes = 1 << 20

// postJSON sends body as JSON and, when out is non-nil, decodes the response
// into it. Non-2xx statuses are not errors here; callers decide what they
// mean. On a non-2xx status with a message envelope, out still receives the
// decoded body when shapes line up, and the server's message is folded into
// the returned status handling by the caller.
func (c *Client) postJSON(ctx context.Context, hc *http.Client, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "[Client.postJSON] marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, pkgerrors.Wrap(err, "[Client.postJSON] new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		// A decode failure on a 2xx response is a malformed-response error;
		// on an error status the body shape is the server's business.
		decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out)
		if decodeErr != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, pkgerrors.Wrap(decodeErr, "[Client.postJSON] decode response")
		}
	}
	return resp.StatusCode, nil
}

// classifyTransport turns low-level transport errors into AuthErrors with
// distinct human-readable messages: timeout, unreachable, or generic.
func classifyTransport(err error) *AuthError {
	var netErr net.Error
	switch {
	case pkgerrors.As(err, &netErr) && netErr.Timeout():
		return &AuthError{Message: msgTimeout, err: err}
	case pkgerrors.Is(err, context.DeadlineExceeded):
		return &AuthError{Message: msgTimeout, err: err}
	case pkgerrors.Is(err, syscall.ECONNREFUSED):
		return &AuthError{Message: msgUnreachable, err: err}
	default:
		return &AuthError{Message: msgNetwork, err: err}
	}
}
