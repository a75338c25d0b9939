package server

import (
	"net/http"

	"github.com/fairhall/console/internal/metrics"
	"github.com/fairhall/console/users"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /{$}", s.IndexHandler())

	// LOGIN / LOGOUT
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleware()...))

	// PASSWORD MANAGEMENT
	s.RegisterRouteHandler("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordGetHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPostHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordGetHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPostHandler(), s.HTMLMiddleware()...))

	// EMAIL VERIFICATION
	s.RegisterRouteHandler("GET "+RouteVerifyEmail, ChainMiddleware(s.VerifyEmailHandler(), s.HTMLMiddleware()...))

	// Dashboards (one per role, behind the route guard)
	s.RegisterRouteHandler("GET "+RouteAdminDashboard, ChainMiddleware(s.AdminDashboardHandler(), s.HTMLMiddleware(s.RequireRole(users.RoleAdmin))...))
	s.RegisterRouteHandler("GET "+RouteOrganizerDashboard, ChainMiddleware(s.OrganizerDashboardHandler(), s.HTMLMiddleware(s.RequireRole(users.RoleOrganizer))...))
	s.RegisterRouteHandler("GET "+RouteExhibitorDashboard, ChainMiddleware(s.ExhibitorDashboardHandler(), s.HTMLMiddleware(s.RequireRole(users.RoleExhibitor))...))

	// Authenticated platform proxy
	s.RegisterRouteHandler(RouteAPIPrefix, ChainMiddleware(s.APIProxyHandler(), s.APIMiddleware(s.RequireSessionAPI())...))

	// Operational
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}

// IndexHandler sends the root path wherever the visitor belongs: their
// dashboard when signed in, the login page otherwise.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.registry.Ready() {
			s.renderLoadingPage(w)
			return
		}
		if _, mgr := s.sessionFromRequest(r); mgr != nil && mgr.IsAuthenticated() {
			if user, ok := mgr.CurrentUser(); ok {
				http.Redirect(w, r, user.Role.DashboardPath(), http.StatusSeeOther)
				return
			}
		}
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.registry.Ready() {
			http.Error(w, "restoring", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
