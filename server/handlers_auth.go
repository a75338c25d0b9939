package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// LoginPageHandler displays the login page (GET /login). A visitor who is
// already signed in is sent straight to their dashboard.
func (s *Server) LoginPageHandler() http.HandlerFunc {
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

		renderPage(w, http.StatusOK, "login", loginPageData{
			Title:  "Sign in",
			Error:  r.URL.Query().Get("error"),
			Notice: r.URL.Query().Get("notice"),
			Email:  r.URL.Query().Get("email"),
			Next:   sanitizeNext(r.URL.Query().Get("next")),
		})
	}
}

// LoginSubmissionHandler processes the login form (POST /login).
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.registry.Ready() {
			s.renderLoadingPage(w)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		form := loginForm{
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}
		next := sanitizeNext(r.FormValue("next"))

		if err := s.validate.Struct(form); err != nil {
			renderPage(w, http.StatusBadRequest, "login", loginPageData{
				Title: "Sign in",
				Error: "Enter a valid email address and a password",
				Email: form.Email,
				Next:  next,
			})
			return
		}

		// Every login gets a fresh session ID; an ID handed out before
		// authentication must never survive it. The presented session, if
		// any, is retired only after the new one succeeds, so a failed
		// re-login does not destroy a live session.
		oldSID, oldMgr := s.sessionFromRequest(r)

		sid, mgr, err := s.registry.Create()
		if err != nil {
			log.Err(err).Msg("Failed to create browser session")
			http.Error(w, "Session unavailable", http.StatusInternalServerError)
			return
		}

		user, err := mgr.Login(r.Context(), form.Email, form.Password)
		if err != nil {
			s.registry.Delete(r.Context(), sid)
			renderPage(w, http.StatusUnauthorized, "login", loginPageData{
				Title: "Sign in",
				Error: err.Error(),
				Email: form.Email,
				Next:  next,
			})
			return
		}

		if oldMgr != nil {
			s.registry.Delete(r.Context(), oldSID)
			s.dropClient(oldSID)
		}
		s.setSessionCookie(w, sid)

		target := next
		if target == "" {
			target = user.Role.DashboardPath()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// LogoutHandler ends the browser session (POST /logout). The session is gone
// locally before the platform hears about it; a dead upstream cannot keep a
// user signed in.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sid, mgr := s.sessionFromRequest(r); mgr != nil {
			s.registry.Delete(r.Context(), sid)
			s.dropClient(sid)
		}
		s.clearSessionCookie(w)
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetCookieName(),
		Value:    sid,
		Path:     "/",
		MaxAge:   int(s.config.GetSessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}
