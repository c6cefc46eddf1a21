package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/dbtest"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
)

func TestMain(m *testing.M) {
	auth.PasswordCost = bcrypt.MinCost
	m.Run()
}

func TestReadPasswordLine(t *testing.T) {
	pw, err := readPasswordLine(strings.NewReader("s3cret pass\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret pass", pw)

	pw, err = readPasswordLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)
}

func TestAdminInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      adminInput
		wantErr string
	}{
		{"valid", adminInput{"root", "root@example.com", "pw"}, ""},
		{"missing username", adminInput{"", "root@example.com", "pw"}, "username is required"},
		{"missing email", adminInput{"root", "", "pw"}, "email is required"},
		{"bad email", adminInput{"root", "not-an-email", "pw"}, "invalid email format"},
		{"missing password", adminInput{"root", "root@example.com", ""}, "password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	users := repository.NewBunUserRepository(db)
	svc := accounts.NewService(users, repository.NewBunSessionRepository(db))

	require.NoError(t, createAdmin(ctx, svc, adminInput{"root", "root@example.com", "hunter22"}))

	stored, err := users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "root", stored.Username)
	assert.Equal(t, models.RoleAdmin, stored.Role)

	t.Run("duplicate username", func(t *testing.T) {
		err := createAdmin(ctx, svc, adminInput{"root", "other@example.com", "hunter22"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := createAdmin(ctx, svc, adminInput{"other", "root@example.com", "hunter22"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("invalid input never reaches the database", func(t *testing.T) {
		err := createAdmin(ctx, svc, adminInput{"ghost", "bad", "hunter22"})
		require.Error(t, err)
		_, err = users.GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
