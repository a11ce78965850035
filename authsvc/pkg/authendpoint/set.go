package authendpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
)

type Set struct {
	LoginEndpoint        endpoint.Endpoint
	AuthenticateEndpoint endpoint.Endpoint
}

// New wires the auth endpoints. Login is guarded by limit; a nil limit
// disables rate limiting.
func New(svc authservice.Service, limit ratelimit.Allower, logger log.Logger) Set {
	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = MakeLoginEndpoint(svc)
		if limit != nil {
			loginEndpoint = ratelimit.NewErroringLimiter(limit)(loginEndpoint)
		}
		loginEndpoint = LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	var authenticateEndpoint endpoint.Endpoint
	{
		authenticateEndpoint = MakeAuthenticateEndpoint(svc)
		authenticateEndpoint = LoggingMiddleware(log.With(logger, "method", "Authenticate"))(authenticateEndpoint)
	}

	return Set{
		LoginEndpoint:        loginEndpoint,
		AuthenticateEndpoint: authenticateEndpoint,
	}
}

func (s Set) Login(ctx context.Context, username, password string) (authservice.Token, error) {
	response, err := s.LoginEndpoint(ctx, LoginRequest{Username: username, Password: password})
	if err != nil {
		return authservice.Token{}, err
	}

	resp := response.(LoginResponse)
	return resp.Token, resp.Err
}

func (s Set) Authenticate(ctx context.Context, hash string) (authsvc.Identity, error) {
	response, err := s.AuthenticateEndpoint(ctx, AuthenticateRequest{Token: hash})
	if err != nil {
		return authsvc.Identity{}, err
	}

	resp := response.(AuthenticateResponse)
	return resp.Identity, resp.Err
}

func MakeLoginEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(LoginRequest)
		t, err := s.Login(ctx, req.Username, req.Password)

		return LoginResponse{Token: t, Err: err}, nil
	}
}

func MakeAuthenticateEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(AuthenticateRequest)
		id, err := s.Authenticate(ctx, req.Token)

		return AuthenticateResponse{Identity: id, Err: err}, nil
	}
}

var (
	_ endpoint.Failer = LoginResponse{}
	_ endpoint.Failer = AuthenticateResponse{}
)

type LoginRequest struct {
	Username string
	Password string
}

type LoginResponse struct {
	authservice.Token
	Err error `json:"-"`
}

func (r LoginResponse) Failed() error { return r.Err }

type AuthenticateRequest struct {
	Token string
}

type AuthenticateResponse struct {
	Identity authsvc.Identity
	Err      error `json:"-"`
}

func (r AuthenticateResponse) Failed() error { return r.Err }
