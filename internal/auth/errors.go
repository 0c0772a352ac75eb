package auth

import "errors"

var (
	// ErrEmptyPassword is returned when hashing a blank password.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrPasswordTooLong is returned when the password exceeds bcrypt's input limit.
	ErrPasswordTooLong = errors.New("password is too long")

	// ErrTokenInvalid is returned for malformed tokens, bad signatures, and tokens of the wrong class.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired is returned for a well-formed token whose expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)
