package services

import (
	"context"
	"time"

	"syncBoard/configs"
	"syncBoard/internal/errs"
	"syncBoard/internal/models"
	"syncBoard/internal/repositories"
	"syncBoard/internal/utils"
	"syncBoard/internal/validators"
)

type AuthenticationService struct {
	authRepo *repositories.AuthenticationRepository
	config   *configs.Config
}

func NewAuthenticationService(
	authRepo *repositories.AuthenticationRepository,
	config *configs.Config,
) *AuthenticationService {
	return &AuthenticationService{
		authRepo: authRepo,
		config:   config,
	}
}

func (as *AuthenticationService) Register(ctx context.Context, user *models.User) (*models.User, []error) {
	var errList []error
	user.Email = validators.NormalizeEmail(user.Email)
	if as.CheckIfUserExists(ctx, user.Email) {
		errList = append(errList, errs.ErrUserAlreadyExists)
		return nil, errList
	}
	if validationErrs := validators.ValidateUser(user); len(validationErrs) > 0 {
		errList = append(errList, validationErrs...)
		return nil, errList
	}
	password, err := utils.HashPassword(user.Password)
	if err != nil {
		errList = append(errList, err)
		return nil, errList
	}
	user.PasswordHash = password
	user.Password = ""
	return as.authRepo.CreateUser(ctx, user)
}

func (as *AuthenticationService) Login(ctx context.Context, loginData *models.LoginRequestBody) (*models.LoginResponse, []error) {
	var errList []error

	jwtKey, err := utils.GetJwtKey(as.config)
	if err != nil {
		errList = append(errList, err)
		return nil, errList
	}
	if validationErrs := validators.ValidateLogin(loginData); len(validationErrs) > 0 {
		errList = append(errList, validationErrs...)
		return nil, errList
	}
	user, loginErrs := as.authRepo.Login(ctx, loginData)
	if loginErrs != nil {
		errList = append(errList, loginErrs...)
		return nil, errList
	}

	jwtExpiration := time.Now().Add(time.Duration(as.config.Viper.GetInt("jwt.expiration_time")) * time.Second)
	token, jwtErr := utils.CreateJwtToken(
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		jwtKey,
		jwtExpiration,
	)
	if jwtErr != nil {
		errList = append(errList, jwtErr)
		return nil, errList
	}

	return &models.LoginResponse{
		User:  *user,
		Token: token,
	}, nil
}

// Authenticate resolves the claims of a token issued by Login.
func (as *AuthenticationService) Authenticate(token string) (*models.Claims, error) {
	if token == "" {
		return nil, errs.ErrUnauthorized
	}
	jwtKey, err := utils.GetJwtKey(as.config)
	if err != nil {
		return nil, err
	}
	claims, err := utils.VerifyToken(token, jwtKey)
	if err != nil {
		return nil, errs.ErrInvalidToken
	}
	return claims, nil
}

func (as *AuthenticationService) CheckIfUserExists(ctx context.Context, email string) bool {
	return as.authRepo.CheckIfUserExists(ctx, email) != nil
}
