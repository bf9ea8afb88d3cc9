package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthSession is the server-side record a browser session cookie points to
type AuthSession struct {
	ID           string    `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NeedsRefresh reports whether the access token expires within the given window
func (s *AuthSession) NeedsRefresh(now time.Time, window time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(window))
}

// Apply copies a freshly issued Supabase session onto the record
func (s *AuthSession) Apply(session *Session) {
	s.UserID = session.User.ID
	s.Email = session.User.Email
	s.AccessToken = session.AccessToken
	s.RefreshToken = session.RefreshToken
	s.ExpiresAt = session.ExpiresAt
}

// SessionStore persists AuthSessions
type SessionStore interface {
	Save(ctx context.Context, session *AuthSession, ttl time.Duration) error
	Get(ctx context.Context, id string) (*AuthSession, error)
	Delete(ctx context.Context, id string) error
}
