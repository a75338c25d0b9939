package server

import (
	"net/http"

	"github.com/fairhall/console/authapi"
)

// VerifyEmailHandler lands email-verification links (GET /verify-email).
// The upstream distinguishes outcomes by message, not status, and the page
// shows that message as-is.
func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			renderPage(w, http.StatusBadRequest, "message", messagePageData{
				Title:   "Verification failed",
				Message: "This verification link is missing its token.",
			})
			return
		}

		message, err := s.api.VerifyEmail(r.Context(), token)
		if err != nil {
			display := "Email verification failed"
			if ae, ok := authapi.AsAuthError(err); ok {
				display = ae.Message
			}
			renderPage(w, http.StatusBadRequest, "message", messagePageData{
				Title:   "Verification failed",
				Message: display,
			})
			return
		}

		renderPage(w, http.StatusOK, "message", messagePageData{
			Title:   "Email verified",
			Message: message,
		})
	}
}
