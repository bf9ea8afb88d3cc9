package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrInvalidCode        = errors.New("invalid or missing auth code")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrUsernameTooShort   = errors.New("username must be at least 3 characters")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrFieldTooLong       = errors.New("field exceeds maximum length")
	ErrInvalidWebsite     = errors.New("website must be an http(s) URL")
	ErrAvatarNotFound     = errors.New("avatar not found")
)

// Validation constants
const (
	MinPasswordLength  = 6
	MinUsernameLength  = 3
	MaxProfileFieldLen = 255
)

// AuthError is a failure reported by the Supabase auth API
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase auth: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase auth: %d: %s", e.Status, e.Message)
}
