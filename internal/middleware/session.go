package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// LoginPath is where RequireSession sends anonymous visitors
const LoginPath = "/login"

// SessionResolver resolves a session cookie value into a live session
type SessionResolver interface {
	CurrentSession(ctx context.Context, id string) (*domain.AuthSession, error)
}

// SessionMiddleware authenticates browser requests with a server-side session cookie
type SessionMiddleware struct {
	sessions   SessionResolver
	cookieName string
	secure     bool
}

// NewSessionMiddleware creates a new SessionMiddleware
func NewSessionMiddleware(sessions SessionResolver, cookieName string, secure bool) *SessionMiddleware {
	return &SessionMiddleware{
		sessions:   sessions,
		cookieName: cookieName,
		secure:     secure,
	}
}

// CookieName returns the name of the session cookie
func (m *SessionMiddleware) CookieName() string {
	return m.cookieName
}

// LoadSession resolves the session cookie when present. Requests without a
// valid session pass through anonymously.
func (m *SessionMiddleware) LoadSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(m.cookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			session, err := m.sessions.CurrentSession(c.Request().Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
					m.ClearCookie(c)
				} else {
					log.Error().Err(err).Msg("Failed to load session")
				}
				return next(c)
			}

			SetUser(c, &domain.User{ID: session.UserID, Email: session.Email}, session.AccessToken)
			ctx := context.WithValue(c.Request().Context(), SessionKey, session)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireSession redirects to the login page unless LoadSession found a session
func (m *SessionMiddleware) RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetSession(c) == nil {
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}
			return next(c)
		}
	}
}

// SetCookie issues the session cookie
func (m *SessionMiddleware) SetCookie(c echo.Context, sessionID string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie
func (m *SessionMiddleware) ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSession extracts the browser session from the context
func GetSession(c echo.Context) *domain.AuthSession {
	if session, ok := c.Request().Context().Value(SessionKey).(*domain.AuthSession); ok {
		return session
	}
	return nil
}
