// Package accounts handles signup, password login, DB-backed sessions and
// account removal.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/bunx"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/telemetry"
)

const tracerName = "eventhive/services/accounts"

// Notices shown to the acting user.
const (
	MsgLoginFailed    = "Login Unsuccessful. Please check email and password."
	MsgUsernameTaken  = "That username is taken. Please choose a different one."
	MsgEmailTaken     = "That email is taken. Please choose a different one."
	MsgAccountExists  = "An account with that username or email already exists."
	MsgRoleNotAllowed = "Choose either Student or Organizer."
	MsgDeleteSelf     = "You cannot delete your own account."
	MsgUserNotFound   = "User not found."
	MsgUserDeletedFmt = "User %s has been deleted successfully."
)

var errSessionInvalid = apperr.New(apperr.ErrUnauthorized, "Please log in to access this page.")

// SignupInput is a new account request.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// Credentials is a login attempt plus the client details recorded on the session.
type Credentials struct {
	Email     string
	Password  string
	Remember  bool
	UserAgent string
	IPAddress string
}

// IssuedSession is a freshly created session and the raw token for the cookie.
// The token is never stored.
type IssuedSession struct {
	Token   string
	Session *models.Session
	User    *models.User
}

// Service manages user accounts and their sessions.
type Service struct {
	users            repository.UserRepository
	sessions         repository.SessionRepository
	clock            clock.Clock
	sessionDuration  time.Duration
	rememberDuration time.Duration
	metrics          *telemetry.AuthMetrics
}

// NewService constructs a new Service instance.
func NewService(users repository.UserRepository, sessions repository.SessionRepository) *Service {
	return &Service{
		users:            users,
		sessions:         sessions,
		clock:            clock.New(),
		sessionDuration:  auth.SessionDuration,
		rememberDuration: auth.RememberDuration,
	}
}

// WithClock replaces the wall clock (tests use clock.NewMock).
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

// WithSessionDurations overrides the plain and "remember me" session lifetimes.
func (s *Service) WithSessionDurations(session, remember time.Duration) *Service {
	s.sessionDuration = session
	s.rememberDuration = remember
	return s
}

// WithMetrics records login attempts.
func (s *Service) WithMetrics(m *telemetry.AuthMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// Signup creates a Student or Organizer account. A taken username or email
// yields field errors that also match apperr.ErrConflict.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "accounts.Signup",
		attribute.String(telemetry.AttrUserRole, string(in.Role)),
	)
	defer span.End()

	if !selfServiceRole(in.Role) {
		return nil, apperr.FieldErrors{"role": MsgRoleNotAllowed}
	}

	user, err := s.createUser(ctx, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return user, nil
}

// CreateAdmin creates an Admin account. Used by the CLI only.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.createUser(ctx, SignupInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
}

func selfServiceRole(role models.Role) bool {
	for _, r := range models.SelfServiceRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *Service) createUser(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	taken := apperr.FieldErrors{}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		taken["username"] = MsgUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		taken["email"] = MsgEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, fmt.Errorf("%w: %w", apperr.ErrConflict, taken)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperr.New(apperr.ErrConflict, MsgAccountExists)
		}
		return nil, err
	}
	return user, nil
}

// Login checks credentials and opens a session. Any mismatch yields the same
// Unauthorized notice.
func (s *Service) Login(ctx context.Context, creds Credentials) (*IssuedSession, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "accounts.Login")
	defer span.End()

	user, err := s.checkCredentials(ctx, creds.Email, creds.Password)
	if s.metrics != nil {
		s.metrics.RecordAuth(ctx, "password", err == nil)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64(telemetry.AttrUserID, user.ID))

	token, tokenHash, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.Session{
		ID:        bunx.NewUUIDv7(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		Remember:  creds.Remember,
		UserAgent: creds.UserAgent,
		IPAddress: creds.IPAddress,
		CreatedAt: now,
		ExpiresAt: now.Add(auth.SessionLifetime(creds.Remember, s.sessionDuration, s.rememberDuration)),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &IssuedSession{Token: token, Session: session, User: user}, nil
}

func (s *Service) checkCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.ErrUnauthorized, MsgLoginFailed)
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.ErrUnauthorized, MsgLoginFailed)
	}
	return user, nil
}

// ResolveSession maps a cookie token to the identity it belongs to. Unknown,
// expired and revoked sessions are Unauthorized.
func (s *Service) ResolveSession(ctx context.Context, token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, errSessionInvalid
	}

	session, err := s.sessions.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.Identity{}, errSessionInvalid
		}
		return auth.Identity{}, err
	}

	if err := auth.ValidateSession(s.now(), session.ExpiresAt, session.Revoked); err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", errSessionInvalid, err)
	}
	if session.User == nil {
		return auth.Identity{}, errSessionInvalid
	}

	return auth.IdentityFor(session.User, session.ID), nil
}

// TouchSession records activity on a session.
func (s *Service) TouchSession(ctx context.Context, sessionID string) error {
	return s.sessions.UpdateLastUsed(ctx, sessionID, s.now())
}

// Logout revokes the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// PurgeStaleSessions deletes sessions that are expired or logged out.
func (s *Service) PurgeStaleSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteStale(ctx, s.now())
}

// ListUsers returns every account ordered by id.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// DeleteUser removes an account together with its feedback, registrations
// and sessions, returning the removed user. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Identity, userID int64) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "accounts.DeleteUser",
		attribute.Int64(telemetry.AttrUserID, userID),
	)
	defer span.End()

	if actor.UserID == userID {
		return nil, apperr.New(apperr.ErrForbidden, MsgDeleteSelf)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, MsgUserNotFound)
		}
		return nil, err
	}
	if err := s.users.DeleteCascade(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, MsgUserNotFound)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	return user, nil
}
