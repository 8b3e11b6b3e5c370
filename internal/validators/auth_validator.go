package validators

import (
	"regexp"
	"strings"

	"syncBoard/internal/errs"
	"syncBoard/internal/models"
)

const minNameLength = 2

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// At least 8 letters, digits or one of @#$%^&+=!
	passwordPattern = regexp.MustCompile(`^[0-9a-zA-Z@#$%^&+=!]{8,}$`)
)

// ValidateUser normalizes a registration in place and reports every field
// that is unusable.
func ValidateUser(user *models.User) []error {
	var errors []error
	if user == nil {
		errors = append(errors, errs.ErrInvalidUser)
		return errors
	}

	user.Email = NormalizeEmail(user.Email)
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)

	if !ValidateEmail(user.Email) {
		errors = append(errors, errs.ErrInvalidEmail)
	}
	if !ValidatePassword(user.Password) {
		errors = append(errors, errs.ErrInvalidPassword)
	}
	if len(user.FirstName) < minNameLength {
		errors = append(errors, errs.ErrFirstName)
	}
	if len(user.LastName) < minNameLength {
		errors = append(errors, errs.ErrLastName)
	}
	return errors
}

func ValidateLogin(login *models.LoginRequestBody) []error {
	var errors []error
	if login == nil {
		errors = append(errors, errs.ErrInvalidRequestBody)
		return errors
	}
	login.Email = NormalizeEmail(login.Email)
	if !ValidateEmail(login.Email) {
		errors = append(errors, errs.ErrInvalidEmail)
	}
	if login.Password == "" {
		errors = append(errors, errs.ErrInvalidPassword)
	}
	return errors
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

func ValidatePassword(password string) bool {
	return passwordPattern.MatchString(password)
}
