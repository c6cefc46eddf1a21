package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/dbtest"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
)

var now = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	auth.PasswordCost = bcrypt.MinCost
	m.Run()
}

func newService(t *testing.T) (*Service, *clock.Mock, *repository.BunUserRepository) {
	t.Helper()
	db := dbtest.Open(t)
	mockClock := clock.NewMock()
	mockClock.Set(now)

	users := repository.NewBunUserRepository(db)
	svc := NewService(users, repository.NewBunSessionRepository(db)).
		WithClock(mockClock).
		WithSessionDurations(time.Hour, 24*time.Hour)
	return svc, mockClock, users
}

func TestSignup(t *testing.T) {
	svc, _, users := newService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Username: " alice ", Email: "alice@example.com", Password: "secret", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEqual(t, "secret", user.PasswordHash)

	tests := []struct {
		name  string
		input SignupInput
		field string
	}{
		{"duplicate username", SignupInput{Username: "alice", Email: "new@example.com", Password: "x", Role: models.RoleStudent}, "username"},
		{"duplicate email", SignupInput{Username: "bob", Email: "alice@example.com", Password: "x", Role: models.RoleOrganizer}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrConflict))

			var fields apperr.FieldErrors
			require.ErrorAs(t, err, &fields)
			assert.Contains(t, fields, tt.field)
		})
	}

	t.Run("admin role cannot be self-selected", func(t *testing.T) {
		_, err := svc.Signup(ctx, SignupInput{Username: "eve", Email: "eve@example.com", Password: "x", Role: models.RoleAdmin})
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})

	all, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateAdmin(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "root", "root@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	_, err = svc.CreateAdmin(ctx, "root", "other@example.com", "pw")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestLoginAndResolveSession(t *testing.T) {
	svc, mockClock, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Username: "sam", Email: "sam@example.com", Password: "hunter2", Role: models.RoleStudent})
	require.NoError(t, err)

	t.Run("bad credentials", func(t *testing.T) {
		for _, creds := range []Credentials{
			{Email: "sam@example.com", Password: "wrong"},
			{Email: "nobody@example.com", Password: "hunter2"},
		} {
			_, err := svc.Login(ctx, creds)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
			assert.Equal(t, MsgLoginFailed, err.Error())
		}
	})

	issued, err := svc.Login(ctx, Credentials{Email: "sam@example.com", Password: "hunter2", UserAgent: "test"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.NotEqual(t, issued.Token, issued.Session.TokenHash)
	assert.True(t, issued.Session.ExpiresAt.Equal(now.Add(time.Hour)))

	identity, err := svc.ResolveSession(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "sam", identity.Username)
	assert.Equal(t, models.RoleStudent, identity.Role)
	assert.Equal(t, issued.Session.ID, identity.SessionID)
	require.NoError(t, svc.TouchSession(ctx, identity.SessionID))

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.ResolveSession(ctx, "not-a-token")
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})

	t.Run("expired session", func(t *testing.T) {
		mockClock.Add(2 * time.Hour)
		_, err := svc.ResolveSession(ctx, issued.Token)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

		purged, err := svc.PurgeStaleSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)
	})
}

func TestLogin_RememberAndLogout(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Username: "sam", Email: "sam@example.com", Password: "hunter2", Role: models.RoleStudent})
	require.NoError(t, err)

	issued, err := svc.Login(ctx, Credentials{Email: "sam@example.com", Password: "hunter2", Remember: true})
	require.NoError(t, err)
	assert.True(t, issued.Session.Remember)
	assert.True(t, issued.Session.ExpiresAt.Equal(now.Add(24*time.Hour)))

	require.NoError(t, svc.Logout(ctx, issued.Session.ID))
	_, err = svc.ResolveSession(ctx, issued.Token)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestDeleteUser(t *testing.T) {
	svc, _, users := newService(t)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "root", "root@example.com", "pw")
	require.NoError(t, err)
	victim, err := svc.Signup(ctx, SignupInput{Username: "sam", Email: "sam@example.com", Password: "pw", Role: models.RoleStudent})
	require.NoError(t, err)

	actor := auth.IdentityFor(admin, "")

	_, err = svc.DeleteUser(ctx, actor, admin.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.Equal(t, MsgDeleteSelf, err.Error())

	deleted, err := svc.DeleteUser(ctx, actor, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "sam", deleted.Username)
	_, err = users.GetByID(ctx, victim.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	_, err = svc.DeleteUser(ctx, actor, victim.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
