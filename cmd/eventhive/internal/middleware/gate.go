package middleware

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
)

// LoginPath is where anonymous requests to protected routes are sent.
const LoginPath = "/auth/login"

// LoginRedirect returns the login URL that returns to r afterwards.
func LoginRedirect(r *http.Request) string {
	return LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// RequireLogin admits any authenticated request.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.GetUserFromContext(r.Context()); !ok {
			http.Redirect(w, r, LoginRedirect(r), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Gate admits requests whose role is granted a route's action.
type Gate struct {
	authorizer *auth.Authorizer
	flashes    *flash.Store
}

// NewGate creates the role gate.
func NewGate(authorizer *auth.Authorizer, flashes *flash.Store) *Gate {
	return &Gate{authorizer: authorizer, flashes: flashes}
}

// DeniedMessage is the notice shown to a signed-in user lacking the role.
func DeniedMessage(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return "Access denied. You need to be an " + strings.Join(names, ", ") + " to view this page."
}

// Require guards a route with action. Anonymous requests go to the login
// page; signed-in users without a granting role are sent home with a notice.
// The wrapped handler runs only when admitted.
func (g *Gate) Require(action auth.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.GetUserFromContext(r.Context())
			if !ok {
				http.Redirect(w, r, LoginRedirect(r), http.StatusFound)
				return
			}

			allowed, err := g.authorizer.RoleAllowed(identity.Role, action)
			if err != nil {
				log.Printf("ERROR: authorize %s for %s: %v", identity.Username, action, err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				log.Printf("denied %s (%s) for %s", identity.Username, identity.Role, action)
				g.flashes.Add(w, r, flash.Danger, DeniedMessage(g.authorizer.AllowedRoles(action)))
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
