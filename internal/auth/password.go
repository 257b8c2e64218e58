package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates at 72 bytes; reject instead so two long
// passwords sharing a prefix can never verify against each other.
const maxPasswordBytes = 72

var (
	ErrEmptyPassword   = errors.New("empty password")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func ComparePassword(hash, password string) error {
	if hash == "" || password == "" {
		return errors.New("missing hash or password")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
