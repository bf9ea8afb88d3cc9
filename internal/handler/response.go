package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/labstack/echo/v4"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation         = "https://authgate.app/errors/validation"
	ErrorTypeNotFound           = "https://authgate.app/errors/not-found"
	ErrorTypeUnauthorized       = "https://authgate.app/errors/unauthorized"
	ErrorTypeConflict           = "https://authgate.app/errors/conflict"
	ErrorTypeRateLimit          = "https://authgate.app/errors/rate-limit"
	ErrorTypeUpstream           = "https://authgate.app/errors/upstream"
	ErrorTypeServiceUnavailable = "https://authgate.app/errors/service-unavailable"
	ErrorTypeInternal           = "https://authgate.app/errors/internal"
)

func problem(c echo.Context, status int, errorType, title, detail string) error {
	return c.JSON(status, ProblemDetails{
		Type:     errorType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return problem(c, http.StatusNotFound, ErrorTypeNotFound, "Not Found", detail)
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return problem(c, http.StatusUnauthorized, ErrorTypeUnauthorized, "Unauthorized", detail)
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return problem(c, http.StatusConflict, ErrorTypeConflict, "Conflict", detail)
}

// NewTooManyRequestsError creates a rate limit error response
func NewTooManyRequestsError(c echo.Context, detail string) error {
	return problem(c, http.StatusTooManyRequests, ErrorTypeRateLimit, "Rate Limit Exceeded", detail)
}

// NewBadGatewayError creates an error response for upstream failures
func NewBadGatewayError(c echo.Context, detail string) error {
	return problem(c, http.StatusBadGateway, ErrorTypeUpstream, "Bad Gateway", detail)
}

// NewServiceUnavailableError creates a service unavailable error response
func NewServiceUnavailableError(c echo.Context, detail string) error {
	return problem(c, http.StatusServiceUnavailable, ErrorTypeServiceUnavailable, "Service Unavailable", detail)
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return problem(c, http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error", detail)
}

// fieldErrors maps input validation failures to the offending field
var fieldErrors = map[error]string{
	domain.ErrEmailRequired:    "email",
	domain.ErrPasswordRequired: "password",
	domain.ErrPasswordTooShort: "password",
	domain.ErrInvalidCode:      "code",
	domain.ErrUsernameTooShort: "username",
	domain.ErrInvalidWebsite:   "website",
	domain.ErrFieldTooLong:     "profile",
	domain.ErrInvalidInput:     "body",
}

// handleAuthError turns a service error into a problem response
func handleAuthError(c echo.Context, err error, fallback string) error {
	for target, field := range fieldErrors {
		if errors.Is(err, target) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: field, Message: err.Error()},
			})
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return NewUnauthorizedError(c, "Invalid login credentials")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrSessionExpired):
		return NewUnauthorizedError(c, "Authentication required")
	case errors.Is(err, domain.ErrUsernameTaken):
		return NewConflictError(c, err.Error())
	case errors.Is(err, domain.ErrAvatarNotFound):
		return NewNotFoundError(c, err.Error())
	}

	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		switch {
		case authErr.Status == http.StatusTooManyRequests:
			return NewTooManyRequestsError(c, authErr.Message)
		case authErr.Status >= 400 && authErr.Status < 500:
			return NewValidationError(c, authErr.Message, nil)
		default:
			return NewBadGatewayError(c, "Auth provider unavailable")
		}
	}

	return NewInternalError(c, fallback)
}

// userMessage returns the text safe to show a visitor for err
func userMessage(err error) string {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) && authErr.Status < 500 {
		return authErr.Message
	}
	for target := range fieldErrors {
		if errors.Is(err, target) {
			return err.Error()
		}
	}
	for _, target := range []error{domain.ErrInvalidCredentials, domain.ErrUsernameTaken, domain.ErrSessionExpired} {
		if errors.Is(err, target) {
			return err.Error()
		}
	}
	if isImageError(err) {
		return err.Error()
	}
	return ""
}
