package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Logout
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	// Auth Routes - Password Management
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password"

	// Auth Routes - Email Verification
	RouteVerifyEmail = "/verify-email"

	// Dashboard Routes (one per role)
	RouteAdminDashboard     = "/admin/dashboard"
	RouteOrganizerDashboard = "/organizer/dashboard"
	RouteExhibitorDashboard = "/exhibitor/dashboard"

	// Platform proxy
	RouteAPIPrefix = "/api/"

	// Operational
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
