package auth

import (
	"context"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
)

// Identity is the authenticated user attached to a request. It is passed
// explicitly into service operations as the acting user.
type Identity struct {
	UserID    int64
	Username  string
	Email     string
	Role      models.Role
	SessionID string
}

// Is reports whether the identity holds role.
func (i Identity) Is(role models.Role) bool {
	return i.Role == role
}

// IdentityFor builds an Identity from a user row.
func IdentityFor(user *models.User, sessionID string) Identity {
	return Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID,
	}
}

type identityContextKey struct{}

// SetUserContext stores the authenticated identity on the context for downstream consumers.
func SetUserContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// GetUserFromContext retrieves the authenticated identity from the context.
func GetUserFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
