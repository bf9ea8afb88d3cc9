package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SupabaseAudience is the audience GoTrue puts in user access tokens
const SupabaseAudience = "authenticated"

// SupabaseClaims contains the custom claims of a Supabase access token
type SupabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Validate implements validator.CustomClaims
func (c SupabaseClaims) Validate(ctx context.Context) error {
	return nil
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user ID
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for the authenticated user's email
	EmailKey contextKey = "email"
	// SessionKey is the context key for the browser session record
	SessionKey contextKey = "session"
)

// ErrInvalidToken is returned when an access token cannot be verified
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier turns an access token into the user it was issued to
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// JWTVerifier verifies Supabase access tokens locally with the project's
// JWT secret
type JWTVerifier struct {
	validator *validator.Validator
}

// NewJWTVerifier creates a JWTVerifier for tokens issued by supabaseURL
func NewJWTVerifier(supabaseURL, jwtSecret string) (*JWTVerifier, error) {
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return []byte(jwtSecret), nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		strings.TrimSuffix(supabaseURL, "/")+"/auth/v1",
		[]string{SupabaseAudience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &SupabaseClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &JWTVerifier{validator: jwtValidator}, nil
}

// Verify implements TokenVerifier
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*domain.User, error) {
	claims, err := v.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(validatedClaims.RegisteredClaims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user := &domain.User{ID: userID}
	if custom, ok := validatedClaims.CustomClaims.(*SupabaseClaims); ok {
		user.Email = custom.Email
	}
	return user, nil
}

// UserResolver looks a user up by access token on the auth server
type UserResolver interface {
	User(ctx context.Context, accessToken string) (*domain.User, error)
}

// RemoteVerifier verifies access tokens by asking the auth server. Used when
// no JWT secret is configured.
type RemoteVerifier struct {
	resolver UserResolver
}

// NewRemoteVerifier creates a new RemoteVerifier
func NewRemoteVerifier(resolver UserResolver) *RemoteVerifier {
	return &RemoteVerifier{resolver: resolver}
}

// Verify implements TokenVerifier
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*domain.User, error) {
	return v.resolver.User(ctx, token)
}

// AuthMiddleware provides bearer token authentication
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Verifier returns the verifier used by the middleware
func (m *AuthMiddleware) Verifier() TokenVerifier {
	return m.verifier
}

// Authenticate returns an Echo middleware that validates bearer tokens
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorizedError(c, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				return unauthorizedError(c, "invalid authorization header format")
			}

			token := parts[1]
			user, err := m.verifier.Verify(c.Request().Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, "invalid token")
			}

			SetUser(c, user, token)
			return next(c)
		}
	}
}

// SetUser stores the authenticated user and token on the request context
func SetUser(c echo.Context, user *domain.User, accessToken string) {
	ctx := context.WithValue(c.Request().Context(), UserIDKey, user.ID)
	ctx = context.WithValue(ctx, EmailKey, user.Email)
	ctx = domain.WithAccessToken(ctx, accessToken)
	c.SetRequest(c.Request().WithContext(ctx))
}

// GetUserID extracts the user ID from the context
func GetUserID(c echo.Context) uuid.UUID {
	if id, ok := c.Request().Context().Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetEmail extracts the user's email from the context
func GetEmail(c echo.Context) string {
	if email, ok := c.Request().Context().Value(EmailKey).(string); ok {
		return email
	}
	return ""
}

// GetAccessToken extracts the caller's access token from the context
func GetAccessToken(c echo.Context) string {
	return domain.AccessTokenFromContext(c.Request().Context())
}
