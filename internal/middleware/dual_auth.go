package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// DualAuthMiddleware accepts either a bearer token or a browser session.
// Browsers cannot set headers on a websocket upgrade, so the token may also
// arrive as the "token" query parameter.
type DualAuthMiddleware struct {
	tokenAuth   *AuthMiddleware
	sessionAuth *SessionMiddleware
}

// NewDualAuthMiddleware creates a new DualAuthMiddleware
func NewDualAuthMiddleware(tokenAuth *AuthMiddleware, sessionAuth *SessionMiddleware) *DualAuthMiddleware {
	return &DualAuthMiddleware{
		tokenAuth:   tokenAuth,
		sessionAuth: sessionAuth,
	}
}

// Authenticate returns an Echo middleware that tries the bearer token first,
// then the session cookie
func (m *DualAuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token != "" {
				log.Debug().Msg("Attempting bearer token authentication")
				user, err := m.tokenAuth.verifier.Verify(c.Request().Context(), token)
				if err != nil {
					log.Debug().Err(err).Msg("Token validation failed")
					return unauthorizedError(c, "invalid token")
				}
				SetUser(c, user, token)
				return next(c)
			}

			if m.sessionAuth == nil {
				return unauthorizedError(c, "missing credentials")
			}

			log.Debug().Msg("Attempting session authentication")
			return m.sessionAuth.LoadSession()(func(c echo.Context) error {
				if GetSession(c) == nil {
					return unauthorizedError(c, "missing credentials")
				}
				return next(c)
			})(c)
		}
	}
}

// bearerToken reads the token from the Authorization header or the token query parameter
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
		return ""
	}
	return c.QueryParam("token")
}
