package authservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/authsvc"
)

type Service interface {
	Login(ctx context.Context, username, password string) (Token, error)
	Authenticate(ctx context.Context, hash string) (authsvc.Identity, error)
}

// Token is handed to clients after a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func New(t Tokenizer, ttl time.Duration, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t, ttl)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tokenizer Tokenizer
	ttl       time.Duration
}

func NewBasicService(t Tokenizer, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = AccessTokenExpiry()
	}
	return &basicService{tokenizer: t, ttl: ttl}
}

// Login expects the user ID to have been resolved into the context by
// ProxingMiddleware.
func (s *basicService) Login(ctx context.Context, _, _ string) (Token, error) {
	userID, ok := ctx.Value(UserIDContextKey).(uint64)
	if !ok {
		return Token{}, authsvc.ErrIdentityMissing
	}

	at, err := s.tokenizer.Issue(userID, s.ttl)
	if err != nil {
		return Token{}, err
	}

	return Token{AccessToken: at.Hash, TokenType: "bearer"}, nil
}

func (s *basicService) Authenticate(_ context.Context, hash string) (authsvc.Identity, error) {
	if hash == "" {
		return authsvc.Identity{}, authsvc.ErrNotAuthenticated
	}

	userID, tokenID, err := s.tokenizer.Verify(hash)
	if err != nil {
		return authsvc.Identity{}, err
	}

	return authsvc.Identity{UserID: userID, TokenID: tokenID}, nil
}
