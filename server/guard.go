package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fairhall/console/session"
	"github.com/fairhall/console/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the browser session ID
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyUser stores the authenticated user profile
	ContextKeyUser ContextKey = "user"
)

// RequireRole guards a server-rendered route for one role. The decision order
// matters: session restore must complete before any verdict, an anonymous
// visitor goes to login with the attempted path preserved, and an
// authenticated user of the wrong role lands on their own dashboard rather
// than an error page.
func (s *Server) RequireRole(role users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.registry.Ready() {
				s.renderLoadingPage(w)
				return
			}

			sid, mgr := s.sessionFromRequest(r)
			if mgr == nil || !mgr.IsAuthenticated() {
				s.redirectToLogin(w, r)
				return
			}

			user, ok := mgr.CurrentUser()
			if !ok {
				s.redirectToLogin(w, r)
				return
			}
			if user.Role != role {
				http.Redirect(w, r, user.Role.DashboardPath(), http.StatusSeeOther)
				return
			}

			next(w, r.WithContext(guardContext(r.Context(), sid, user)))
		}
	}
}

// RequireSessionAPI guards JSON routes. Browser fetches cannot follow a login
// redirect, so the verdicts here are plain status codes.
func (s *Server) RequireSessionAPI() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.registry.Ready() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, `{"message":"session restore in progress"}`, http.StatusServiceUnavailable)
				return
			}

			sid, mgr := s.sessionFromRequest(r)
			if mgr == nil || !mgr.IsAuthenticated() {
				http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			user, ok := mgr.CurrentUser()
			if !ok {
				http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			next(w, r.WithContext(guardContext(r.Context(), sid, user)))
		}
	}
}

func guardContext(ctx context.Context, sessionID string, user *users.User) context.Context {
	ctx = context.WithValue(ctx, ContextKeySessionID, sessionID)
	return context.WithValue(ctx, ContextKeyUser, user)
}

// sessionFromRequest resolves the browser's session manager from the session
// cookie. A missing cookie or an unknown session ID both come back nil.
func (s *Server) sessionFromRequest(r *http.Request) (string, *session.Manager) {
	cookie, err := r.Cookie(s.config.GetCookieName())
	if err != nil || cookie.Value == "" {
		return "", nil
	}
	mgr, ok := s.registry.Get(cookie.Value)
	if !ok {
		return "", nil
	}
	return cookie.Value, mgr
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := RouteLogin
	if next := sanitizeNext(r.URL.RequestURI()); next != "" {
		target += "?next=" + url.QueryEscape(next)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func userFromContext(ctx context.Context) *users.User {
	user, _ := ctx.Value(ContextKeyUser).(*users.User)
	return user
}

func sessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(ContextKeySessionID).(string)
	return sid
}
