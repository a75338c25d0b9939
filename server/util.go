package server

import "strings"

// sanitizeNext keeps post-login redirect targets on this host. Anything that
// is not a local absolute path is discarded: external URLs, scheme-relative
// "//host" tricks, and the auth pages themselves (redirecting back to /login
// after login would loop).
func sanitizeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return ""
	}
	if strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	path := next
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch path {
	case RouteLogin, RouteLogout, RouteForgotPassword, RouteResetPassword:
		return ""
	}
	return next
}
