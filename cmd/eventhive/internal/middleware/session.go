package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
)

// SessionResolver maps session cookie tokens to identities.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (auth.Identity, error)
	TouchSession(ctx context.Context, sessionID string) error
}

// NewSessionMiddleware attaches the identity behind the session cookie to the
// request context. Requests without a valid session pass through anonymously;
// a stale cookie is cleared.
func NewSessionMiddleware(resolver SessionResolver, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				log.Printf("session rejected: %v", err)
				ClearSessionCookie(w, secureCookies)
				next.ServeHTTP(w, r)
				return
			}

			// Update last used timestamp (best effort, non-blocking)
			go func(sessionID string) {
				updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := resolver.TouchSession(updateCtx, sessionID); err != nil {
					log.Printf("warning: failed to update session last_used: %v", err)
				}
			}(identity.SessionID)

			next.ServeHTTP(w, r.WithContext(auth.SetUserContext(r.Context(), identity)))
		})
	}
}

// SetSessionCookie writes the session cookie. Without persistent the cookie
// lives for the browser session only; the server-side expiry still applies.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, persistent, secure bool) {
	cookie := &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		cookie.Expires = expiresAt
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
