package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// SessionCookieName is the cookie carrying the session token
	SessionCookieName = "eventhive.session"

	// SessionDuration is the default server-side session lifetime
	SessionDuration = 12 * time.Hour

	// RememberDuration is the lifetime of "remember me" sessions
	RememberDuration = 365 * 24 * time.Hour

	// TokenLength is the length of generated session tokens in bytes
	TokenLength = 32
)

// GenerateSessionToken generates a random session token.
// Returns: token (base58 text for the cookie), token hash (SHA256 hex for storage), error
func GenerateSessionToken() (string, string, error) {
	tokenBytes := make([]byte, TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("generate random token: %w", err)
	}

	token := base58.Encode(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken hashes a session token for storage/lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// SessionLifetime returns how long a new session stays valid.
func SessionLifetime(remember bool, session, rememberFor time.Duration) time.Duration {
	if remember {
		return rememberFor
	}
	return session
}

// ValidateSession checks expiry and revocation at the given instant.
func ValidateSession(now, expiresAt time.Time, revoked bool) error {
	if revoked {
		return fmt.Errorf("session revoked")
	}
	if !now.Before(expiresAt) {
		return fmt.Errorf("session expired")
	}
	return nil
}
