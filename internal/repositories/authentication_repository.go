package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"syncBoard/internal/errs"
	"syncBoard/internal/models"
	"syncBoard/internal/utils"
)

type AuthenticationRepository struct {
	db *gorm.DB
}

func NewAuthenticationRepository(db *gorm.DB) *AuthenticationRepository {
	return &AuthenticationRepository{
		db: db,
	}
}

func (ar *AuthenticationRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, []error) {
	var errList []error
	result := ar.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		errList = append(errList, result.Error)
		return nil, errList
	}
	if result.RowsAffected == 0 {
		errList = append(errList, errs.ErrUserNotFound)
		return nil, errList
	}
	return user, nil
}

func (ar *AuthenticationRepository) CheckIfUserExists(ctx context.Context, email string) *models.User {
	var user models.User
	result := ar.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if result.Error == nil && result.RowsAffected > 0 {
		return &user
	}
	return nil
}

func (ar *AuthenticationRepository) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := ar.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (ar *AuthenticationRepository) Login(ctx context.Context, login *models.LoginRequestBody) (*models.User, []error) {
	var errList []error
	user := ar.CheckIfUserExists(ctx, login.Email)
	if user == nil {
		errList = append(errList, errs.ErrUserNotFound)
		return nil, errList
	}
	if err := utils.CompareHashAndPassword(user.PasswordHash, login.Password); err != nil {
		errList = append(errList, errs.ErrWrongPassword)
		return nil, errList
	}
	return user, nil
}
