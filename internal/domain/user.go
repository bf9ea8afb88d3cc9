package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User represents a Supabase auth user
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a token pair issued by Supabase auth
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         User      `json:"user"`
}

// AuthGateway is the remote auth API. Each method is a single call.
type AuthGateway interface {
	SignUp(ctx context.Context, email, password, redirectTo, codeChallenge string) error
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo, codeChallenge string) error
	ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*Session, error)
	UpdatePassword(ctx context.Context, accessToken, password string) error
	GetUser(ctx context.Context, accessToken string) (*User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}
