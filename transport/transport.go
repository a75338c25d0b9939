// Package transport is the HTTP interceptor chain: it attaches the session's
// bearer credential to every outgoing request and transparently recovers from
// access-token expiry by refreshing and replaying the request exactly once.
package transport

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/fairhall/console/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionController is what the interceptor needs from the session layer.
// *session.Manager satisfies it.
type SessionController interface {
	AccessToken() (string, bool)
	Refresh(ctx context.Context) bool
	Logout(ctx context.Context)
}

// RetryMode selects how the refresh-attempt ceiling is scoped.
type RetryMode int

const (
	// RetryPerRequest allows each request its own single refresh-then-retry
	// cycle. This is the default: a failed refresh for one request cannot
	// suppress recovery for unrelated later requests.
	RetryPerRequest RetryMode = iota

	// RetryGlobalBudget bounds refresh attempts across the whole transport
	// with a single shared budget, restored only by a successful refresh.
	// Once exhausted, every 401 shortcuts straight to silent logout.
	RetryGlobalBudget
)

const refreshBudget = 1

// retriedKey marks a request that has already been replayed once, so a
// stacked or misconfigured chain can never retry the same request twice.
type retriedKey struct{}

// Transport decorates a base RoundTripper with the bearer-attach and
// 401-recovery stages.
type Transport struct {
	base    http.RoundTripper
	session SessionController
	mode    RetryMode
	budget  atomic.Int32
	logger  zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// TransportOption modifies a Transport.
type TransportOption func(*Transport)

// WithBase sets the RoundTripper the interceptor wraps.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// WithRetryMode selects the refresh-attempt ceiling scope.
func WithRetryMode(mode RetryMode) TransportOption {
	return func(t *Transport) {
		t.mode = mode
	}
}

// WithTransportLogger sets the logger for recovery diagnostics.
func WithTransportLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport builds the interceptor. Exactly one instance may wrap a given
// chain: passing a base that is already a *Transport is rejected, so tokens
// are never attached twice and a 401 never triggers two refresh cycles.
func NewTransport(session SessionController, options ...TransportOption) (*Transport, error) {
	if session == nil {
		return nil, errors.New("[NewTransport] session controller is required")
	}

	t := &Transport{
		base:    http.DefaultTransport,
		session: session,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}

	if _, already := t.base.(*Transport); already {
		return nil, errors.New("[NewTransport] interceptor already installed on this chain")
	}
	t.budget.Store(refreshBudget)
	return t, nil
}

// RoundTrip implements the two interceptor stages. The caller of a replayed
// request observes only the final outcome: a recovered request looks like it
// succeeded first time, an unrecoverable one sees the original 401.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if tok, ok := t.session.AccessToken(); ok {
		out.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if alreadyRetried(req.Context()) {
		return resp, nil
	}

	if !t.takeAttempt() {
		t.logger.Debug().Str("url", req.URL.Path).Msg("refresh budget exhausted, logging out")
		t.silentLogout(req.Context())
		return resp, nil
	}

	if !t.session.Refresh(req.Context()) {
		t.silentLogout(req.Context())
		return resp, nil
	}
	t.refreshSucceeded()

	retry, ok := cloneForRetry(req)
	if !ok {
		// The body was consumed and cannot be rebuilt; the refreshed session
		// will serve the caller's own retry, but this request is done.
		t.logger.Debug().Str("url", req.URL.Path).Msg("request body not replayable, propagating 401")
		return resp, nil
	}

	drain(resp)
	if tok, tokOK := t.session.AccessToken(); tokOK {
		retry.Header.Set("Authorization", "Bearer "+tok)
	}
	metrics.RetriedRequests.Inc()
	return t.base.RoundTrip(retry)
}

// takeAttempt enforces the refresh-attempt ceiling.
func (t *Transport) takeAttempt() bool {
	if t.mode == RetryPerRequest {
		return true
	}
	return t.budget.Add(-1) >= 0
}

// refreshSucceeded restores the global budget. In per-request mode the budget
// is unused.
func (t *Transport) refreshSucceeded() {
	if t.mode == RetryGlobalBudget {
		t.budget.Store(refreshBudget)
	}
}

// silentLogout tears the session down without surfacing anything to the
// caller; redirecting the user is a UI concern, not the interceptor's.
func (t *Transport) silentLogout(ctx context.Context) {
	metrics.SilentLogouts.Inc()
	t.session.Logout(ctx)
}

func alreadyRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

// cloneForRetry builds a replayable copy of req, marked so it can never be
// retried again. Requests whose body cannot be rebuilt are not replayable.
func cloneForRetry(req *http.Request) (*http.Request, bool) {
	if req.Body != nil && req.GetBody == nil {
		return nil, false
	}

	retry := req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, false
		}
		retry.Body = body
	}
	return retry, true
}

// drain discards a response we are replacing so the underlying connection can
// be reused.
func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
