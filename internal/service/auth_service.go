package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/util"
	"github.com/dafibh/authgate/authgate-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RefreshWindow is how close to expiry an access token may get before
// CurrentSession rotates it
const RefreshWindow = 60 * time.Second

// Paths the auth emails send the user back to, relative to the site URL
const (
	SignUpCallbackPath = "auth/callback?next=/account"
	RecoveryPath       = "auth/reset?next=/reset-password"
)

// AuthService handles authentication-related business logic
type AuthService struct {
	gateway        domain.AuthGateway
	sessions       domain.SessionStore
	siteURL        string
	sessionTTL     time.Duration
	eventPublisher websocket.SessionPublisher
	now            func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(gateway domain.AuthGateway, sessions domain.SessionStore, siteURL string, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		gateway:    gateway,
		sessions:   sessions,
		siteURL:    siteURL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *AuthService) SetEventPublisher(publisher websocket.SessionPublisher) {
	s.eventPublisher = publisher
}

// endConnections tells the user's open sockets they were signed out and
// closes them; they were authenticated by credentials that no longer hold.
func (s *AuthService) endConnections(userID uuid.UUID) {
	if s.eventPublisher != nil {
		s.eventPublisher.Disconnect(userID.String(), websocket.SessionSignedOut(map[string]interface{}{
			"userId": userID,
		}))
	}
}

// SessionTTL returns how long a browser session lives
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// SignUp registers a new account and returns the PKCE verifier the caller
// must keep until the confirmation link comes back
func (s *AuthService) SignUp(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return "", err
	}
	if err := validateNewPassword(password); err != nil {
		return "", err
	}

	verifier, challenge := util.NewPKCE()
	if err := s.gateway.SignUp(ctx, email, password, s.siteURL+SignUpCallbackPath, challenge); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Sign up failed")
		return "", err
	}

	log.Info().Str("email", email).Msg("Sign up requested")
	return verifier, nil
}

// Authenticate signs in with email and password and returns the raw token pair
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	session, err := s.gateway.SignInWithPassword(ctx, email, password)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Sign in failed")
		return nil, err
	}
	return session, nil
}

// Login signs in and opens a server-side session
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	session, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, session)
}

// ForgotPassword sends a recovery email and returns the PKCE verifier
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.ErrEmailRequired
	}

	verifier, challenge := util.NewPKCE()
	if err := s.gateway.ResetPasswordForEmail(ctx, email, s.siteURL+RecoveryPath, challenge); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Password recovery failed")
		return "", err
	}

	log.Info().Str("email", email).Msg("Password recovery requested")
	return verifier, nil
}

// ExchangeToken trades an email link code for a token pair
func (s *AuthService) ExchangeToken(ctx context.Context, code, verifier string) (*domain.Session, error) {
	if code == "" || verifier == "" {
		return nil, domain.ErrInvalidCode
	}

	session, err := s.gateway.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		log.Warn().Err(err).Msg("Code exchange failed")
		return nil, err
	}
	return session, nil
}

// ExchangeCode trades an email link code for a server-side session
func (s *AuthService) ExchangeCode(ctx context.Context, code, verifier string) (*domain.AuthSession, error) {
	session, err := s.ExchangeToken(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, session)
}

// ResetPassword sets a new password for the signed-in user
func (s *AuthService) ResetPassword(ctx context.Context, session *domain.AuthSession, password string) error {
	if session == nil {
		return domain.ErrUnauthorized
	}
	if err := s.ChangePassword(ctx, session.AccessToken, password); err != nil {
		return err
	}

	log.Info().Str("user_id", session.UserID.String()).Msg("Password updated")
	return nil
}

// ChangePassword sets a new password for the owner of the access token
func (s *AuthService) ChangePassword(ctx context.Context, accessToken, password string) error {
	if password == "" {
		return domain.ErrPasswordRequired
	}
	if err := validateNewPassword(password); err != nil {
		return err
	}
	return s.gateway.UpdatePassword(ctx, accessToken, password)
}

// CurrentSession loads a server-side session, rotating its tokens when the
// access token is about to expire
func (s *AuthService) CurrentSession(ctx context.Context, id string) (*domain.AuthSession, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !session.NeedsRefresh(s.now(), RefreshWindow) {
		return session, nil
	}

	refreshed, err := s.gateway.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Str("user_id", session.UserID.String()).Msg("Session refresh failed")
		if delErr := s.sessions.Delete(ctx, id); delErr != nil {
			log.Error().Err(delErr).Msg("Failed to delete expired session")
		}
		return nil, domain.ErrSessionExpired
	}

	session.Apply(refreshed)
	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to save refreshed session: %w", err)
	}

	log.Debug().Str("user_id", session.UserID.String()).Msg("Session refreshed")
	return session, nil
}

// SignOut ends a server-side session. The remote logout is best effort.
func (s *AuthService) SignOut(ctx context.Context, id string) error {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	if err := s.gateway.SignOut(ctx, session.AccessToken); err != nil {
		log.Warn().Err(err).Str("user_id", session.UserID.String()).Msg("Remote sign out failed")
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.endConnections(session.UserID)

	log.Info().Str("user_id", session.UserID.String()).Msg("Signed out")
	return nil
}

// Refresh rotates a refresh token into a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", domain.ErrInvalidInput)
	}
	return s.gateway.RefreshSession(ctx, refreshToken)
}

// User resolves an access token into its user
func (s *AuthService) User(ctx context.Context, accessToken string) (*domain.User, error) {
	return s.gateway.GetUser(ctx, accessToken)
}

// RevokeToken signs the owner of the access token out of Supabase
func (s *AuthService) RevokeToken(ctx context.Context, userID uuid.UUID, accessToken string) error {
	if err := s.gateway.SignOut(ctx, accessToken); err != nil {
		return err
	}

	s.endConnections(userID)
	return nil
}

func (s *AuthService) openSession(ctx context.Context, session *domain.Session) (*domain.AuthSession, error) {
	authSession := &domain.AuthSession{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}
	authSession.Apply(session)

	if err := s.sessions.Save(ctx, authSession, s.sessionTTL); err != nil {
		log.Error().Err(err).Str("user_id", authSession.UserID.String()).Msg("Failed to save session")
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	log.Info().Str("user_id", authSession.UserID.String()).Msg("Session opened")
	return authSession, nil
}

func validateCredentials(email, password string) error {
	if email == "" {
		return domain.ErrEmailRequired
	}
	if password == "" {
		return domain.ErrPasswordRequired
	}
	return nil
}

func validateNewPassword(password string) error {
	if len(password) < domain.MinPasswordLength {
		return domain.ErrPasswordTooShort
	}
	return nil
}
