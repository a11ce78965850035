package authservice

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/usersvc"
	"github.com/ichigozero/todokit/usersvc/pkg/userendpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubUserIDEndpoint(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(userendpoint.UserIDRequest)
	switch {
	case req.Name == "" || req.Password == "":
		return userendpoint.UserIDResponse{Err: usersvc.ErrInvalidArgument}, nil
	case req.Name == "testuser" && req.Password == "secret":
		return userendpoint.UserIDResponse{ID: 7}, nil
	}
	return userendpoint.UserIDResponse{Err: usersvc.ErrUserNotFound}, nil
}

func stubUserEndpoint(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(userendpoint.UserRequest)
	if req.ID == 7 {
		return userendpoint.UserResponse{User: usersvc.User{ID: 7, Username: "testuser"}}, nil
	}
	return userendpoint.UserResponse{Err: usersvc.ErrUserNotFound}, nil
}

func newTestService(t *testing.T) (Service, Tokenizer) {
	t.Helper()
	tk := newTestTokenizer(t)

	var svc Service
	{
		svc = New(tk, 30*time.Minute, log.NewNopLogger())
		svc = ProxingMiddleware(stubUserIDEndpoint, stubUserEndpoint)(svc)
	}
	return svc, tk
}

func TestService_Login(t *testing.T) {
	svc, tk := newTestService(t)

	token, err := svc.Login(context.Background(), "testuser", "secret")
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)

	subject, _, err := tk.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), subject)
}

func TestService_LoginFailuresAreUniform(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "testuser", "nope"},
		{"unknown user", "ghost", "secret"},
		{"empty password", "testuser", ""},
		{"empty username", "", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, authsvc.ErrBadCredentials)
		})
	}
}

func TestService_LoginWithoutProxy(t *testing.T) {
	svc := NewBasicService(newTestTokenizer(t), 0)

	_, err := svc.Login(context.Background(), "testuser", "secret")
	assert.ErrorIs(t, err, authsvc.ErrIdentityMissing)
}

func TestService_Authenticate(t *testing.T) {
	svc, tk := newTestService(t)

	at, err := tk.Issue(7, time.Minute)
	require.NoError(t, err)

	id, err := svc.Authenticate(context.Background(), at.Hash)
	require.NoError(t, err)
	assert.Equal(t, authsvc.Identity{UserID: 7, Username: "testuser", TokenID: at.UUID}, id)
}

func TestService_AuthenticateFailures(t *testing.T) {
	svc, tk := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, authsvc.ErrNotAuthenticated)

	_, err = svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, authsvc.ErrInvalidToken)

	// A valid token for a user that does not exist.
	at, err := tk.Issue(99, time.Minute)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), at.Hash)
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)
}
