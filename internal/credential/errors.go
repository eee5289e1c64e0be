package credential

import (
	"unicode/utf8"

	"github.com/elskow/backoffice/internal/apperr"
)

var (
	ErrUserNotFound = apperr.New(apperr.NotFound, "user not found")
	ErrUserExists   = apperr.New(apperr.Conflict, "user already exists")
	ErrWeakPassword = apperr.New(apperr.InvalidInput, "password does not meet policy")
	ErrInvalidEmail = apperr.New(apperr.InvalidInput, "invalid email")
	ErrInvalidPhone = apperr.New(apperr.InvalidInput, "invalid phone")
)

// bcrypt ignores everything after 72 bytes.
const maxPasswordBytes = 72

func ValidatePassword(password string, minLength int) error {
	if utf8.RuneCountInString(password) < minLength || len(password) > maxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}
