package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fairhall/console/authapi"
)

// The forgot-password flow never reveals whether an account exists. Both the
// form and its confirmation say the same thing for every submitted address.
const forgotPasswordNotice = "If an account exists for that address, a reset link is on its way."

type forgotPasswordForm struct {
	Email string `form:"email" validate:"required,email"`
}

func (s *Server) ForgotPasswordGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, http.StatusOK, "forgot_password", forgotPageData{Title: "Reset your password"})
	}
}

func (s *Server) ForgotPasswordPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		form := forgotPasswordForm{Email: r.FormValue("email")}
		if err := s.validate.Struct(form); err != nil {
			renderPage(w, http.StatusOK, "forgot_password", forgotPageData{
				Title:  "Reset your password",
				Notice: forgotPasswordNotice,
			})
			return
		}

		if err := s.api.ForgotPassword(r.Context(), form.Email); err != nil {
			// Transport failures are logged but the page stays generic.
			log.Err(err).Msg("Forgot-password request failed")
		}

		renderPage(w, http.StatusOK, "forgot_password", forgotPageData{
			Title:  "Reset your password",
			Notice: forgotPasswordNotice,
		})
	}
}

type resetPasswordForm struct {
	Token                string `form:"token" validate:"required"`
	Password             string `form:"password" validate:"required"`
	PasswordConfirmation string `form:"passwordConfirmation" validate:"required,eqfield=Password"`
}

func (s *Server) ResetPasswordGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			renderPage(w, http.StatusBadRequest, "message", messagePageData{
				Title:   "Invalid link",
				Message: "This password reset link is missing its token. Request a new one.",
			})
			return
		}
		renderPage(w, http.StatusOK, "reset_password", resetPageData{
			Title: "Choose a new password",
			Token: token,
		})
	}
}

func (s *Server) ResetPasswordPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		form := resetPasswordForm{
			Token:                r.FormValue("token"),
			Password:             r.FormValue("password"),
			PasswordConfirmation: r.FormValue("passwordConfirmation"),
		}
		if err := s.validate.Struct(form); err != nil {
			renderPage(w, http.StatusBadRequest, "reset_password", resetPageData{
				Title: "Choose a new password",
				Error: "Both passwords are required and must match",
				Token: form.Token,
			})
			return
		}

		err := s.api.ResetPassword(r.Context(), form.Token, form.Password, form.PasswordConfirmation)
		if err != nil {
			message := "The reset link is invalid or has expired"
			if ae, ok := authapi.AsAuthError(err); ok {
				message = ae.Message
			}
			renderPage(w, http.StatusBadRequest, "reset_password", resetPageData{
				Title: "Choose a new password",
				Error: message,
				Token: form.Token,
			})
			return
		}

		http.Redirect(w, r, RouteLogin+"?notice=Your+password+has+been+reset.+Sign+in+with+your+new+password.", http.StatusSeeOther)
	}
}
