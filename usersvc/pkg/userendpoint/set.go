package userendpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/usersvc"
	"github.com/ichigozero/todokit/usersvc/pkg/userservice"
)

type Set struct {
	UserIDEndpoint     endpoint.Endpoint
	UserEndpoint       endpoint.Endpoint
	CreateUserEndpoint endpoint.Endpoint
}

func New(svc userservice.Service, logger log.Logger) Set {
	var userIDEndpoint endpoint.Endpoint
	{
		userIDEndpoint = MakeUserIDEndpoint(svc)
		userIDEndpoint = LoggingMiddleware(log.With(logger, "method", "UserID"))(userIDEndpoint)
	}
	var userEndpoint endpoint.Endpoint
	{
		userEndpoint = MakeUserEndpoint(svc)
		userEndpoint = LoggingMiddleware(log.With(logger, "method", "User"))(userEndpoint)
	}
	var createUserEndpoint endpoint.Endpoint
	{
		createUserEndpoint = MakeCreateUserEndpoint(svc)
		createUserEndpoint = LoggingMiddleware(log.With(logger, "method", "CreateUser"))(createUserEndpoint)
	}
	return Set{
		UserIDEndpoint:     userIDEndpoint,
		UserEndpoint:       userEndpoint,
		CreateUserEndpoint: createUserEndpoint,
	}
}

func (s Set) UserID(ctx context.Context, name, password string) (uint64, error) {
	resp, err := s.UserIDEndpoint(ctx, UserIDRequest{Name: name, Password: password})
	if err != nil {
		return 0, err
	}
	response := resp.(UserIDResponse)
	return response.ID, response.Err
}

func (s Set) User(ctx context.Context, id uint64) (usersvc.User, error) {
	resp, err := s.UserEndpoint(ctx, UserRequest{ID: id})
	if err != nil {
		return usersvc.User{}, err
	}
	response := resp.(UserResponse)
	return response.User, response.Err
}

func (s Set) CreateUser(ctx context.Context, name, password string) (usersvc.User, error) {
	resp, err := s.CreateUserEndpoint(ctx, CreateUserRequest{Name: name, Password: password})
	if err != nil {
		return usersvc.User{}, err
	}
	response := resp.(CreateUserResponse)
	return response.User, response.Err
}

func MakeUserIDEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(UserIDRequest)
		id, err := s.UserID(ctx, req.Name, req.Password)
		return UserIDResponse{ID: id, Err: err}, nil
	}
}

func MakeUserEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(UserRequest)
		u, err := s.User(ctx, req.ID)
		return UserResponse{User: u, Err: err}, nil
	}
}

func MakeCreateUserEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(CreateUserRequest)
		u, err := s.CreateUser(ctx, req.Name, req.Password)
		return CreateUserResponse{User: u, Err: err}, nil
	}
}

var (
	_ endpoint.Failer = UserIDResponse{}
	_ endpoint.Failer = UserResponse{}
	_ endpoint.Failer = CreateUserResponse{}
)

type UserIDRequest struct {
	Name, Password string
}

type UserIDResponse struct {
	ID  uint64 `json:"id"`
	Err error  `json:"-"`
}

func (r UserIDResponse) Failed() error { return r.Err }

type UserRequest struct {
	ID uint64
}

type UserResponse struct {
	User usersvc.User `json:"user"`
	Err  error        `json:"-"`
}

func (r UserResponse) Failed() error { return r.Err }

type CreateUserRequest struct {
	Name, Password string
}

type CreateUserResponse struct {
	User usersvc.User `json:"user"`
	Err  error        `json:"-"`
}

func (r CreateUserResponse) Failed() error { return r.Err }
