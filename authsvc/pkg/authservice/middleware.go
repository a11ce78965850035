package authservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/usersvc"
	"github.com/ichigozero/todokit/usersvc/pkg/userendpoint"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Login(ctx context.Context, username, password string) (t Token, err error) {
	defer func() {
		mw.logger.Log("method", "Login", "username", username, "err", err)
	}()
	return mw.next.Login(ctx, username, password)
}

func (mw loggingMiddleware) Authenticate(ctx context.Context, hash string) (id authsvc.Identity, err error) {
	defer func() {
		mw.logger.Log("method", "Authenticate", "user_id", id.UserID, "access_uuid", id.TokenID, "err", err)
	}()
	return mw.next.Authenticate(ctx, hash)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) Login(ctx context.Context, username, password string) (t Token, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "login").Add(1)
		mw.requestLatency.With("method", "login").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Login(ctx, username, password)
}

func (mw instrumentingMiddleware) Authenticate(ctx context.Context, hash string) (id authsvc.Identity, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "authenticate").Add(1)
		mw.requestLatency.With("method", "authenticate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Authenticate(ctx, hash)
}

// ProxingMiddleware resolves credentials and token subjects through the
// user service endpoints.
func ProxingMiddleware(userIDEndpoint, userEndpoint endpoint.Endpoint) Middleware {
	return func(next Service) Service {
		return proxingMiddleware{next, userIDEndpoint, userEndpoint}
	}
}

type proxingMiddleware struct {
	next   Service
	userID endpoint.Endpoint
	user   endpoint.Endpoint
}

func (mw proxingMiddleware) Login(ctx context.Context, username, password string) (Token, error) {
	response, err := mw.userID(ctx, userendpoint.UserIDRequest{Name: username, Password: password})
	if err != nil {
		return Token{}, err
	}

	resp := response.(userendpoint.UserIDResponse)
	switch resp.Err {
	case nil:
	case usersvc.ErrUserNotFound, usersvc.ErrInvalidArgument:
		return Token{}, authsvc.ErrBadCredentials
	default:
		return Token{}, resp.Err
	}

	ctx = context.WithValue(ctx, UserIDContextKey, resp.ID)

	return mw.next.Login(ctx, username, password)
}

func (mw proxingMiddleware) Authenticate(ctx context.Context, hash string) (authsvc.Identity, error) {
	id, err := mw.next.Authenticate(ctx, hash)
	if err != nil {
		return authsvc.Identity{}, err
	}

	response, err := mw.user(ctx, userendpoint.UserRequest{ID: id.UserID})
	if err != nil {
		return authsvc.Identity{}, err
	}

	resp := response.(userendpoint.UserResponse)
	if resp.Err != nil {
		return authsvc.Identity{}, resp.Err
	}

	id.Username = resp.User.Username
	return id, nil
}

type contextKey string

const UserIDContextKey contextKey = "UserID"
