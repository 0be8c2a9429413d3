package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyUsername is returned when a registration omits the username.
	ErrEmptyUsername = errors.New("empty username")
	// ErrEmptyPassword is returned when a registration omits the password.
	ErrEmptyPassword = errors.New("empty password")
	// ErrUsernameTaken is returned when trying to register an existing username.
	ErrUsernameTaken = errors.New("username taken")

	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	// Unknown usernames and wrong passwords both map to this error.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrLoginRequired is returned by the authentication guard for anonymous requests.
	ErrLoginRequired = errors.New("login required")

	// ErrStoreUnavailable is returned when the credential store cannot be reached
	// or a query fails for reasons other than a missing row or a constraint.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError is a user-facing registration failure.
// It unwraps to one of ErrEmptyUsername, ErrEmptyPassword or ErrUsernameTaken.
type ValidationError struct {
	Reason   error
	Username string
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrEmptyUsername):
		return "Username is required."
	case errors.Is(e.Reason, ErrEmptyPassword):
		return "Password is required."
	case errors.Is(e.Reason, ErrUsernameTaken):
		return fmt.Sprintf("User %s is already registered.", e.Username)
	default:
		return "Invalid registration."
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// AuthError is a user-facing login failure. It always unwraps to ErrInvalidCredentials
// so callers cannot tell an unknown username from a wrong password.
type AuthError struct{}

func (e *AuthError) Error() string {
	return "Incorrect username or password."
}

func (e *AuthError) Unwrap() error {
	return ErrInvalidCredentials
}

// UserMessage returns the message to display for an expected, user-facing failure.
// ok is false for infrastructure faults, which must not be shown to the user.
func UserMessage(err error) (msg string, ok bool) {
	var (
		validationErr *ValidationError
		authErr       *AuthError
	)

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Error(), true
	case errors.As(err, &authErr):
		return authErr.Error(), true
	default:
		return "", false
	}
}
