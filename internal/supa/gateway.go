package supa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

const defaultHTTPTimeout = 15 * time.Second

// Gateway implements domain.AuthGateway against the Supabase auth API
type Gateway struct {
	auth gotrue.Client
	rest *restClient
}

// NewGateway creates a Gateway. client must carry the anon key.
func NewGateway(projectURL, anonKey string, client *supabase.Client) *Gateway {
	return &Gateway{
		auth: client.Auth,
		rest: &restClient{
			baseURL:    projectURL,
			apiKey:     anonKey,
			httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		},
	}
}

type signupRequest struct {
	Email               string `json:"email"`
	Password            string `json:"password"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

type recoverRequest struct {
	Email               string `json:"email"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

type pkceTokenRequest struct {
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier"`
}

// SignUp registers a user; Supabase sends the confirmation email
func (g *Gateway) SignUp(ctx context.Context, email, password, redirectTo, codeChallenge string) error {
	req := signupRequest{Email: email, Password: password}
	if codeChallenge != "" {
		req.CodeChallenge = codeChallenge
		req.CodeChallengeMethod = challengeMethod
	}
	return g.rest.do(ctx, http.MethodPost, SignupPath, redirectQuery(redirectTo), req, nil)
}

// SignInWithPassword exchanges email and password for a session
func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	resp, err := g.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, mapCredentialError(err)
	}
	return toDomainSession(resp.Session), nil
}

// ResetPasswordForEmail sends a recovery email that links back to redirectTo
func (g *Gateway) ResetPasswordForEmail(ctx context.Context, email, redirectTo, codeChallenge string) error {
	req := recoverRequest{Email: email}
	if codeChallenge != "" {
		req.CodeChallenge = codeChallenge
		req.CodeChallengeMethod = challengeMethod
	}
	return g.rest.do(ctx, http.MethodPost, RecoverPath, redirectQuery(redirectTo), req, nil)
}

// ExchangeCodeForSession trades a PKCE auth code for a session
func (g *Gateway) ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*domain.Session, error) {
	query := url.Values{}
	query.Set(grantTypeParam, pkceGrantType)

	var session types.Session
	err := g.rest.do(ctx, http.MethodPost, TokenPath, query, pkceTokenRequest{
		AuthCode:     code,
		CodeVerifier: codeVerifier,
	}, &session)
	if err != nil {
		var authErr *domain.AuthError
		if errors.As(err, &authErr) && authErr.Status < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCode, err)
		}
		return nil, err
	}
	return toDomainSession(session), nil
}

// UpdatePassword sets a new password for the token's user
func (g *Gateway) UpdatePassword(ctx context.Context, accessToken, password string) error {
	_, err := g.auth.WithToken(accessToken).UpdateUser(types.UpdateUserRequest{
		Password: &password,
	})
	if err != nil {
		return mapSDKError(err)
	}
	return nil
}

// GetUser resolves the user an access token belongs to
func (g *Gateway) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	resp, err := g.auth.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, mapSDKError(err)
	}
	return &domain.User{
		ID:        resp.ID,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	}, nil
}

// RefreshSession issues a new session from a refresh token
func (g *Gateway) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	resp, err := g.auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, mapSDKError(err)
	}
	return toDomainSession(resp.Session), nil
}

// SignOut revokes the refresh tokens of the token's session
func (g *Gateway) SignOut(ctx context.Context, accessToken string) error {
	if err := g.auth.WithToken(accessToken).Logout(); err != nil {
		return mapSDKError(err)
	}
	return nil
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	query := url.Values{}
	query.Set(redirectToParam, redirectTo)
	return query
}

func toDomainSession(s types.Session) *domain.Session {
	expiresAt := time.Unix(s.ExpiresAt, 0)
	if s.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt.UTC(),
		User: domain.User{
			ID:        s.User.ID,
			Email:     s.User.Email,
			CreatedAt: s.User.CreatedAt,
		},
	}
}

func mapSDKError(err error) error {
	authErr := parseSDKError(err)
	if authErr == nil {
		return err
	}
	if authErr.Status == http.StatusUnauthorized || authErr.Status == http.StatusForbidden {
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, authErr)
	}
	return authErr
}

func mapCredentialError(err error) error {
	authErr := parseSDKError(err)
	if authErr == nil {
		return err
	}
	if authErr.Status == http.StatusBadRequest || authErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, authErr)
	}
	return authErr
}
