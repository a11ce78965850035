package usersvc

import (
	"context"
	"errors"
)

// User is an account allowed to log in and own tasks. Users are provisioned
// out-of-band; the HTTP surface only reads them.
type User struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:15;not null;uniqueIndex" json:"username"`
	Password string `gorm:"size:60;not null" json:"-"`
}

type UserRepository interface {
	Create(ctx context.Context, username, passwordHash string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	Find(ctx context.Context, id uint64) (User, error)
}

// MaxUsernameLength mirrors the size of the username column.
const MaxUsernameLength = 15

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
)
