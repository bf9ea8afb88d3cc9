package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/dafibh/authgate/authgate-backend/internal/service"
)

// ErrorCodeParam carries the error page code: /error?code=<code>.
// The page only shows text registered here; unknown codes get the generic page.
const ErrorCodeParam = "code"

// authRejectedCode covers GoTrue 4xx responses without a known error_code
const authRejectedCode = "auth_rejected"

// pageErrors maps domain failures to error page codes, shown with the error's own text
var pageErrors = []struct {
	code   string
	target error
}{
	{"invalid_credentials", domain.ErrInvalidCredentials},
	{"email_required", domain.ErrEmailRequired},
	{"password_required", domain.ErrPasswordRequired},
	{"password_too_short", domain.ErrPasswordTooShort},
	{"invalid_code", domain.ErrInvalidCode},
	{"session_expired", domain.ErrSessionExpired},
	{"username_too_short", domain.ErrUsernameTooShort},
	{"username_taken", domain.ErrUsernameTaken},
	{"field_too_long", domain.ErrFieldTooLong},
	{"invalid_website", domain.ErrInvalidWebsite},
	{"avatar_missing", errAvatarMissing},
	{"image_too_large", service.ErrImageTooLarge},
	{"image_format", service.ErrInvalidFormat},
	{"image_too_small", service.ErrImageTooSmall},
	{"image_dimensions", service.ErrImageDimensionsTooLarge},
	{"image_invalid", service.ErrInvalidImageData},
}

// authErrorText is the text shown for GoTrue error_code values
var authErrorText = map[string]string{
	"user_already_exists":        "User already registered",
	"email_exists":               "User already registered",
	"weak_password":              "Password is too weak",
	"same_password":              "New password should be different from the old password",
	"email_not_confirmed":        "Email not confirmed",
	"signup_disabled":            "Signups are not allowed",
	"otp_expired":                "The email link is invalid or has expired",
	"flow_state_not_found":       "The email link is invalid or has expired",
	"flow_state_expired":         "The email link is invalid or has expired",
	"bad_code_verifier":          "The email link was opened in a different browser",
	"over_email_send_rate_limit": "Too many emails sent. Please wait before trying again.",
	"over_request_rate_limit":    "Too many requests. Please wait before trying again.",
	"validation_failed":          "Please check the details you entered",
}

var pageErrorText = buildPageErrorText()

func buildPageErrorText() map[string]string {
	text := map[string]string{
		authRejectedCode:           "The request was rejected. Please check your details and try again.",
		middleware.RateLimitedCode: "Too many requests. Please wait a moment and try again.",
	}
	for _, pe := range pageErrors {
		text[pe.code] = pe.target.Error()
	}
	for code, message := range authErrorText {
		text[code] = message
	}
	return text
}

// errorCode returns the error page code for err, or "" for the generic page
func errorCode(err error) string {
	for _, pe := range pageErrors {
		if errors.Is(err, pe.target) {
			return pe.code
		}
	}

	var authErr *domain.AuthError
	if errors.As(err, &authErr) && authErr.Status < 500 {
		if _, ok := authErrorText[authErr.Code]; ok {
			return authErr.Code
		}
		if authErr.Status == http.StatusTooManyRequests {
			return middleware.RateLimitedCode
		}
		return authRejectedCode
	}
	return ""
}

// errorPageText resolves an error page code to its fixed text
func errorPageText(code string) string {
	return pageErrorText[code]
}
