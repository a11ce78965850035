package userservice

import (
	"context"
	"unicode/utf8"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/usersvc"
)

type Service interface {
	UserID(ctx context.Context, username, password string) (uint64, error)
	User(ctx context.Context, id uint64) (usersvc.User, error)
	CreateUser(ctx context.Context, username, password string) (usersvc.User, error)
}

func New(u usersvc.UserRepository, h Hasher, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(u, h)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	users  usersvc.UserRepository
	hasher Hasher
	// decoy is compared against when the username is unknown so that
	// lookups of missing users take as long as wrong passwords.
	decoy string
}

func NewBasicService(u usersvc.UserRepository, h Hasher) Service {
	decoy, _ := h.Hash("todokit-decoy")
	return basicService{users: u, hasher: h, decoy: decoy}
}

// UserID returns usersvc.ErrUserNotFound both for unknown usernames and for
// wrong passwords.
func (s basicService) UserID(ctx context.Context, username, password string) (uint64, error) {
	if username == "" || password == "" {
		return 0, usersvc.ErrInvalidArgument
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err == usersvc.ErrUserNotFound {
		s.hasher.Compare(s.decoy, password)
		return 0, usersvc.ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}

	if !s.hasher.Compare(user.Password, password) {
		return 0, usersvc.ErrUserNotFound
	}

	return user.ID, nil
}

func (s basicService) User(ctx context.Context, id uint64) (usersvc.User, error) {
	if id == 0 {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}
	return s.users.Find(ctx, id)
}

func (s basicService) CreateUser(ctx context.Context, username, password string) (usersvc.User, error) {
	n := utf8.RuneCountInString(username)
	if n == 0 || n > usersvc.MaxUsernameLength || password == "" {
		return usersvc.User{}, usersvc.ErrInvalidArgument
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return usersvc.User{}, err
	}

	return s.users.Create(ctx, username, hash)
}
