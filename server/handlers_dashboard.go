package server

import "net/http"

// Dashboard handlers run behind RequireRole, so the user in context is
// guaranteed present and of the right role.

func (s *Server) AdminDashboardHandler() http.HandlerFunc {
	return s.dashboardHandler("Admin dashboard")
}

func (s *Server) OrganizerDashboardHandler() http.HandlerFunc {
	return s.dashboardHandler("Organizer dashboard")
}

func (s *Server) ExhibitorDashboardHandler() http.HandlerFunc {
	return s.dashboardHandler("Exhibitor dashboard")
}

func (s *Server) dashboardHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user == nil {
			http.Error(w, "No session", http.StatusInternalServerError)
			return
		}
		renderPage(w, http.StatusOK, "dashboard", dashboardPageData{
			Title: title,
			User:  userView{Email: user.Email, Role: string(user.Role)},
		})
	}
}
