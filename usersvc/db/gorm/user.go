package gorm

import (
	"context"
	"errors"

	"github.com/ichigozero/todokit/usersvc"
	libgorm "gorm.io/gorm"
)

type userRepository struct {
	db *libgorm.DB
}

func NewUserRepository(db *libgorm.DB) usersvc.UserRepository {
	return &userRepository{db}
}

func (u *userRepository) Create(ctx context.Context, username, passwordHash string) (usersvc.User, error) {
	user := usersvc.User{Username: username, Password: passwordHash}

	err := u.db.WithContext(ctx).Transaction(func(tx *libgorm.DB) error {
		var count int64
		if err := tx.Model(&usersvc.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return usersvc.ErrUserExists
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return usersvc.User{}, err
	}

	return user, nil
}

func (u *userRepository) FindByUsername(ctx context.Context, username string) (usersvc.User, error) {
	var user usersvc.User
	result := u.db.WithContext(ctx).Where("username = ?", username).First(&user)

	return user, notFound(result.Error)
}

func (u *userRepository) Find(ctx context.Context, id uint64) (usersvc.User, error) {
	var user usersvc.User
	result := u.db.WithContext(ctx).First(&user, id)

	return user, notFound(result.Error)
}

func notFound(err error) error {
	if errors.Is(err, libgorm.ErrRecordNotFound) {
		return usersvc.ErrUserNotFound
	}
	return err
}
