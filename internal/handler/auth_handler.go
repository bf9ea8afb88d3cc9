package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/dafibh/authgate/authgate-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// CredentialsRequest represents a signup or login request
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RecoverRequest represents a password recovery request
type RecoverRequest struct {
	Email string `json:"email"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ExchangeRequest represents an email link code exchange
type ExchangeRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"codeVerifier"`
}

// PasswordRequest represents a password change
type PasswordRequest struct {
	Password string `json:"password"`
}

// PendingResponse is returned when an email was sent. The code verifier must
// be presented with the code from the email link.
type PendingResponse struct {
	Message      string `json:"message"`
	CodeVerifier string `json:"codeVerifier"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SessionResponse represents an issued token pair
type SessionResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         UserResponse `json:"user"`
}

func newSessionResponse(session *domain.Session) SessionResponse {
	expiresIn := int64(time.Until(session.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return SessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    session.ExpiresAt,
		ExpiresIn:    expiresIn,
		User: UserResponse{
			ID:    session.User.ID.String(),
			Email: session.User.Email,
		},
	}
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	verifier, err := h.authService.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return handleAuthError(c, err, "Failed to sign up")
	}

	return c.JSON(http.StatusCreated, PendingResponse{
		Message:      "A confirmation email has been sent to your email address.",
		CodeVerifier: verifier,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	session, err := h.authService.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return handleAuthError(c, err, "Failed to log in")
	}

	return c.JSON(http.StatusOK, newSessionResponse(session))
}

// Recover handles POST /auth/recover
func (h *AuthHandler) Recover(c echo.Context) error {
	var req RecoverRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	verifier, err := h.authService.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return handleAuthError(c, err, "Failed to send recovery email")
	}

	return c.JSON(http.StatusAccepted, PendingResponse{
		Message:      "A password recovery email has been sent to your email address.",
		CodeVerifier: verifier,
	})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	session, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return handleAuthError(c, err, "Failed to refresh session")
	}

	return c.JSON(http.StatusOK, newSessionResponse(session))
}

// Exchange handles POST /auth/exchange
func (h *AuthHandler) Exchange(c echo.Context) error {
	var req ExchangeRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	session, err := h.authService.ExchangeToken(c.Request().Context(), req.Code, req.CodeVerifier)
	if err != nil {
		return handleAuthError(c, err, "Failed to exchange code")
	}

	return c.JSON(http.StatusOK, newSessionResponse(session))
}

// Me returns the current authenticated user's information
// GET /auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	return c.JSON(http.StatusOK, UserResponse{
		ID:    userID.String(),
		Email: middleware.GetEmail(c),
	})
}

// Logout revokes the caller's refresh tokens on the auth server
// POST /auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	if err := h.authService.RevokeToken(c.Request().Context(), userID, middleware.GetAccessToken(c)); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to log out")
		return handleAuthError(c, err, "Failed to log out")
	}

	log.Info().Str("user_id", userID.String()).Msg("User logged out")
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword handles PUT /auth/password
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req PasswordRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	if err := h.authService.ChangePassword(c.Request().Context(), middleware.GetAccessToken(c), req.Password); err != nil {
		return handleAuthError(c, err, "Failed to change password")
	}

	log.Info().Str("user_id", userID.String()).Msg("Password changed")
	return c.NoContent(http.StatusNoContent)
}
