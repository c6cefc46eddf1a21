package server

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	appmiddleware "github.com/eventhive/eventhive/cmd/eventhive/internal/middleware"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
)

// Notices for the auth pages.
const (
	MsgLoggedIn   = "Logged in successfully!"
	MsgSignedUp   = "Registration successful! You can now log in."
	MsgLoggedOut  = "You have been logged out."
	loginTitle    = "Login"
	registerTitle = "Register"
)

// safeNext returns next when it is a local absolute path, otherwise "/".
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

func signedIn(r *http.Request) bool {
	_, ok := auth.GetUserFromContext(r.Context())
	return ok
}

// HandleLogin serves GET and POST /auth/login. A successful login opens a DB
// session, sets the session cookie and follows the local ?next= target.
func HandleLogin(accountSvc *accounts.Service, rd *Renderer, secureCookies bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if signedIn(r) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if r.Method != http.MethodPost {
			rd.Render(w, r, http.StatusOK, "login", page{Title: loginTitle, Form: loginForm{}})
			return
		}

		var form loginForm
		if err := decodeForm(r, &form); err != nil {
			if fields, ok := fieldErrorsOf(err); ok {
				form.Password = ""
				rd.Render(w, r, http.StatusUnprocessableEntity, "login", page{Title: loginTitle, Form: form, Errors: fields})
				return
			}
			rd.ServerError(w, r, err)
			return
		}

		issued, err := accountSvc.Login(r.Context(), accounts.Credentials{
			Email:     form.Email,
			Password:  form.Password,
			Remember:  form.Remember,
			UserAgent: r.UserAgent(),
			IPAddress: r.RemoteAddr,
		})
		if err != nil {
			if errors.Is(err, apperr.ErrUnauthorized) {
				form.Password = ""
				rd.Render(w, r, http.StatusOK, "login", page{
					Title:   loginTitle,
					Form:    form,
					Flashes: []flash.Message{{Category: flash.Danger, Text: accounts.MsgLoginFailed}},
				})
				return
			}
			rd.ServerError(w, r, err)
			return
		}

		appmiddleware.SetSessionCookie(w, issued.Token, issued.Session.ExpiresAt, form.Remember, secureCookies)
		rd.Flash(w, r, flash.Success, MsgLoggedIn)
		http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusFound)
	}
}

// HandleLogout revokes the current session and clears the cookie.
func HandleLogout(accountSvc *accounts.Service, rd *Renderer, secureCookies bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := identity(r)
		if err := accountSvc.Logout(r.Context(), current.SessionID); err != nil {
			log.Printf("WARNING: logout for %s: %v", current.Username, err)
		}
		appmiddleware.ClearSessionCookie(w, secureCookies)
		rd.Flash(w, r, flash.Info, MsgLoggedOut)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleRegister serves GET and POST /auth/register.
func HandleRegister(accountSvc *accounts.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if signedIn(r) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if r.Method != http.MethodPost {
			rd.Render(w, r, http.StatusOK, "register", page{Title: registerTitle, Form: registerForm{}, Data: roleOptions()})
			return
		}

		var form registerForm
		err := decodeForm(r, &form)
		if err == nil {
			_, err = accountSvc.Signup(r.Context(), form.input())
		}
		if err != nil {
			if fields, ok := fieldErrorsOf(err); ok {
				form.Password, form.ConfirmPassword = "", ""
				rd.Render(w, r, http.StatusUnprocessableEntity, "register", page{
					Title:  registerTitle,
					Form:   form,
					Errors: fields,
					Data:   roleOptions(),
				})
				return
			}
			if errors.Is(err, apperr.ErrConflict) {
				form.Password, form.ConfirmPassword = "", ""
				rd.Render(w, r, http.StatusUnprocessableEntity, "register", page{
					Title:   registerTitle,
					Form:    form,
					Flashes: []flash.Message{{Category: flash.Danger, Text: apperr.Message(err, accounts.MsgAccountExists)}},
					Data:    roleOptions(),
				})
				return
			}
			rd.ServerError(w, r, err)
			return
		}

		rd.Flash(w, r, flash.Success, MsgSignedUp)
		http.Redirect(w, r, appmiddleware.LoginPath, http.StatusFound)
	}
}
