package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// The console's pages are deliberately plain server-rendered HTML. Templates
// are compiled once at package init; a parse failure is a programming error.
var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "layout_top"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} | FairHall Console</title>
</head>
<body>
<main>{{end}}

{{define "layout_bottom"}}</main>
</body>
</html>{{end}}

{{define "login"}}{{template "layout_top" .}}
<h1>Sign in</h1>
{{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
<form method="post" action="/login">
  <input type="hidden" name="next" value="{{.Next}}">
  <label>Email <input type="email" name="email" value="{{.Email}}" required autofocus></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
<p><a href="/forgot-password">Forgot your password?</a></p>
{{template "layout_bottom" .}}{{end}}

{{define "forgot_password"}}{{template "layout_top" .}}
<h1>Reset your password</h1>
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
<form method="post" action="/forgot-password">
  <label>Email <input type="email" name="email" required autofocus></label>
  <button type="submit">Send reset link</button>
</form>
<p><a href="/login">Back to sign in</a></p>
{{template "layout_bottom" .}}{{end}}

{{define "reset_password"}}{{template "layout_top" .}}
<h1>Choose a new password</h1>
{{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/reset-password">
  <input type="hidden" name="token" value="{{.Token}}">
  <label>New password <input type="password" name="password" required autofocus></label>
  <label>Confirm password <input type="password" name="passwordConfirmation" required></label>
  <button type="submit">Set password</button>
</form>
{{template "layout_bottom" .}}{{end}}

{{define "message"}}{{template "layout_top" .}}
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p><a href="/login">Go to sign in</a></p>
{{template "layout_bottom" .}}{{end}}

{{define "dashboard"}}{{template "layout_top" .}}
<h1>{{.Title}}</h1>
<p>Signed in as {{.User.Email}} ({{.User.Role}})</p>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
{{template "layout_bottom" .}}{{end}}

{{define "loading"}}{{template "layout_top" .}}
<h1>One moment</h1>
<p>The console is restoring sessions. This page will retry automatically.</p>
{{template "layout_bottom" .}}{{end}}
`))

type loginPageData struct {
	Title  string
	Error  string
	Notice string
	Email  string
	Next   string
}

type forgotPageData struct {
	Title  string
	Notice string
}

type resetPageData struct {
	Title string
	Error string
	Token string
}

type messagePageData struct {
	Title   string
	Message string
}

type dashboardPageData struct {
	Title string
	User  userView
}

type userView struct {
	Email string
	Role  string
}

func renderPage(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render page")
	}
}

// renderLoadingPage answers requests that arrive before session restore has
// finished. 503 plus Refresh keeps browsers polling instead of erroring.
func (s *Server) renderLoadingPage(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Refresh", "1")
	renderPage(w, http.StatusServiceUnavailable, "loading", messagePageData{Title: "Loading"})
}
