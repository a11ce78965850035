package userservice_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/database/databasetest"
	"github.com/ichigozero/todokit/usersvc"
	"github.com/ichigozero/todokit/usersvc/db/gorm"
	"github.com/ichigozero/todokit/usersvc/pkg/userservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) userservice.Service {
	t.Helper()
	db := databasetest.Open(t)
	return userservice.New(
		gorm.NewUserRepository(db),
		userservice.NewBcryptHasher(bcrypt.MinCost),
		log.NewNopLogger(),
	)
}

func TestService_CreateUser(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "testuser", "secret")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "testuser", u.Username)
	assert.NotEqual(t, "secret", u.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret")))

	_, err = svc.CreateUser(ctx, "testuser", "other")
	assert.ErrorIs(t, err, usersvc.ErrUserExists)
}

func TestService_CreateUserInvalid(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tests := []struct {
		name, username, password string
	}{
		{"empty username", "", "secret"},
		{"empty password", "testuser", ""},
		{"username too long", strings.Repeat("a", usersvc.MaxUsernameLength+1), "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, usersvc.ErrInvalidArgument)
		})
	}

	_, err := svc.CreateUser(ctx, strings.Repeat("a", usersvc.MaxUsernameLength), "secret")
	assert.NoError(t, err)
}

func TestService_UserID(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "testuser", "secret")
	require.NoError(t, err)

	id, err := svc.UserID(ctx, "testuser", "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = svc.UserID(ctx, "testuser", "wrong")
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)

	_, err = svc.UserID(ctx, "ghost", "secret")
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)

	_, err = svc.UserID(ctx, "", "")
	assert.ErrorIs(t, err, usersvc.ErrInvalidArgument)
}

func TestService_User(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "testuser", "secret")
	require.NoError(t, err)

	found, err := svc.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, found.Username)

	_, err = svc.User(ctx, u.ID+1)
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)

	_, err = svc.User(ctx, 0)
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)
}
