package services

import (
	"errors"
	"fmt"
)

// Kind classifies service failures so transports can map them to status codes.
type Kind int

const (
	// KindInternal is an unexpected failure. Its details are never shown to callers.
	KindInternal Kind = iota
	// KindValidation is a missing, blank, or malformed input.
	KindValidation
	// KindConflict is a duplicate username or email.
	KindConflict
	// KindAuthenticationFailed is an unknown identifier or a wrong password.
	// The message never says which.
	KindAuthenticationFailed
	// KindUnauthorized is a missing, invalid, expired, or replayed token.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is the error type returned by every SessionManager operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) && serviceErr.Kind != KindInternal {
		return serviceErr.Message
	}
	return msgInternal
}

const (
	msgInternal           = "something went wrong"
	msgInvalidCredentials = "invalid user credentials"
	msgUnauthorized       = "unauthorized request"
	msgInvalidRefresh     = "invalid refresh token"
	msgRefreshExpired     = "refresh token is expired"
	msgRefreshUsed        = "refresh token is expired or used"
	msgInvalidAccess      = "invalid access token"
	msgAccessExpired      = "access token is expired"
)

func validationError(message string, err error) error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func conflictError(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func authenticationFailed() error {
	return &Error{Kind: KindAuthenticationFailed, Message: msgInvalidCredentials}
}

func unauthorizedError(message string, err error) error {
	return &Error{Kind: KindUnauthorized, Message: message, Err: err}
}

func internalError(message string, err error) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// asUnauthorized folds any error into KindUnauthorized, keeping the message of
// service errors and hiding everything else behind a generic refresh message.
func asUnauthorized(err error) error {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		if serviceErr.Kind == KindUnauthorized {
			return serviceErr
		}
		message := serviceErr.Message
		if serviceErr.Kind == KindInternal {
			message = msgInvalidRefresh
		}
		return &Error{Kind: KindUnauthorized, Message: message, Err: serviceErr}
	}
	return &Error{Kind: KindUnauthorized, Message: msgInvalidRefresh, Err: err}
}
