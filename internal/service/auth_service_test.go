package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSiteURL = "https://app.example.com/"

func newTestAuthService() (*AuthService, *testutil.MockAuthGateway, *testutil.MockSessionStore) {
	gateway := testutil.NewMockAuthGateway()
	sessions := testutil.NewMockSessionStore()
	return NewAuthService(gateway, sessions, testSiteURL, 24*time.Hour), gateway, sessions
}

func TestSignUp_Success(t *testing.T) {
	svc, gateway, _ := newTestAuthService()

	verifier, err := svc.SignUp(context.Background(), "  new@example.com ", "secret123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if verifier == "" {
		t.Error("Expected a PKCE verifier")
	}
	if gateway.LastRedirectTo != "https://app.example.com/auth/callback?next=/account" {
		t.Errorf("Unexpected redirect: %s", gateway.LastRedirectTo)
	}
	if gateway.LastChallenge == "" || gateway.LastChallenge == verifier {
		t.Error("Expected a challenge derived from the verifier")
	}
	if _, ok := gateway.Users["new@example.com"]; !ok {
		t.Error("Expected trimmed email to be registered")
	}
}

func TestSignUp_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		err      error
	}{
		{"missing email", " ", "secret123", domain.ErrEmailRequired},
		{"missing password", "a@example.com", "", domain.ErrPasswordRequired},
		{"short password", "a@example.com", "12345", domain.ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gateway, _ := newTestAuthService()
			_, err := svc.SignUp(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, gateway.LastRedirectTo)
		})
	}
}

func TestSignUp_GatewayError(t *testing.T) {
	svc, gateway, _ := newTestAuthService()
	gateway.SignUpErr = &domain.AuthError{Status: 422, Code: "user_already_exists", Message: "User already registered"}

	_, err := svc.SignUp(context.Background(), "a@example.com", "secret123")
	var authErr *domain.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "user_already_exists", authErr.Code)
}

func TestLogin_CreatesSession(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	userID := gateway.AddUser("a@example.com", "secret123")

	session, err := svc.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, "a@example.com", session.Email)
	assert.NotEmpty(t, session.AccessToken)

	stored, ok := sessions.Sessions[session.ID]
	require.True(t, ok)
	assert.Equal(t, session.AccessToken, stored.AccessToken)
	assert.Equal(t, 24*time.Hour, sessions.TTLs[session.ID])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")

	_, err := svc.Login(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Empty(t, sessions.Sessions)
}

func TestLogin_SaveFailure(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")
	sessions.SaveErr = errors.New("redis down")

	_, err := svc.Login(context.Background(), "a@example.com", "secret123")
	assert.Error(t, err)
}

func TestForgotPassword(t *testing.T) {
	svc, gateway, _ := newTestAuthService()

	verifier, err := svc.ForgotPassword(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, verifier)
	assert.Equal(t, "https://app.example.com/auth/reset?next=/reset-password", gateway.LastRedirectTo)

	_, err = svc.ForgotPassword(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmailRequired)
}

func TestExchangeCode(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	gateway.AddCode("the-code", "the-verifier", "a@example.com")

	session, err := svc.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", session.Email)
	assert.Contains(t, sessions.Sessions, session.ID)
}

func TestExchangeCode_Invalid(t *testing.T) {
	svc, gateway, _ := newTestAuthService()
	gateway.AddCode("the-code", "the-verifier", "a@example.com")

	tests := []struct {
		name     string
		code     string
		verifier string
	}{
		{"missing code", "", "the-verifier"},
		{"missing verifier", "the-code", ""},
		{"wrong verifier", "the-code", "other"},
		{"unknown code", "nope", "the-verifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ExchangeCode(context.Background(), tt.code, tt.verifier)
			assert.ErrorIs(t, err, domain.ErrInvalidCode)
		})
	}
}

func TestResetPassword(t *testing.T) {
	svc, gateway, _ := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")

	session, err := svc.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(context.Background(), session, "newsecret"))
	assert.Equal(t, "newsecret", gateway.UpdatedPasswords["a@example.com"])

	assert.ErrorIs(t, svc.ResetPassword(context.Background(), session, "123"), domain.ErrPasswordTooShort)
	assert.ErrorIs(t, svc.ResetPassword(context.Background(), session, ""), domain.ErrPasswordRequired)
	assert.ErrorIs(t, svc.ResetPassword(context.Background(), nil, "newsecret"), domain.ErrUnauthorized)
}

func TestCurrentSession_Fresh(t *testing.T) {
	svc, gateway, _ := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")

	opened, err := svc.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	current, err := svc.CurrentSession(context.Background(), opened.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.AccessToken, current.AccessToken)
}

func TestCurrentSession_RefreshesNearExpiry(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")

	opened, err := svc.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	svc.now = func() time.Time { return opened.ExpiresAt.Add(-30 * time.Second) }

	current, err := svc.CurrentSession(context.Background(), opened.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, current.ID)
	assert.NotEqual(t, opened.AccessToken, current.AccessToken)
	assert.NotEqual(t, opened.RefreshToken, current.RefreshToken)
	assert.Equal(t, current.AccessToken, sessions.Sessions[opened.ID].AccessToken)
}

func TestCurrentSession_RefreshFailureExpiresSession(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")

	opened, err := svc.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	gateway.RefreshErr = &domain.AuthError{Status: 400, Code: "refresh_token_not_found", Message: "Invalid Refresh Token"}
	svc.now = func() time.Time { return opened.ExpiresAt.Add(time.Minute) }

	_, err = svc.CurrentSession(context.Background(), opened.ID)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.NotContains(t, sessions.Sessions, opened.ID)
}

func TestCurrentSession_Missing(t *testing.T) {
	svc, _, _ := newTestAuthService()

	_, err := svc.CurrentSession(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.CurrentSession(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSignOut(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	publisher := &testutil.MockPublisher{}
	svc.SetEventPublisher(publisher)
	userID := gateway.AddUser("a@example.com", "secret123")

	opened, err := svc.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), opened.ID))
	assert.NotContains(t, sessions.Sessions, opened.ID)
	assert.Equal(t, []string{opened.AccessToken}, gateway.SignedOutTokens)
	assert.Equal(t, []string{"session.signed_out"}, publisher.Types())
	assert.Equal(t, userID.String(), publisher.Events[0].UserID)
	assert.Equal(t, []string{userID.String()}, publisher.Disconnected)
}

func TestSignOut_RemoteFailureStillClearsSession(t *testing.T) {
	svc, gateway, sessions := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")
	gateway.SignOutErr = errors.New("network unreachable")

	opened, err := svc.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), opened.ID))
	assert.NotContains(t, sessions.Sessions, opened.ID)
}

func TestSignOut_UnknownSession(t *testing.T) {
	svc, gateway, _ := newTestAuthService()

	assert.NoError(t, svc.SignOut(context.Background(), "unknown"))
	assert.Empty(t, gateway.SignedOutTokens)
}

func TestRefresh(t *testing.T) {
	svc, gateway, _ := newTestAuthService()
	gateway.AddUser("a@example.com", "secret123")

	first, err := svc.Authenticate(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	_, err = svc.Refresh(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUserAndRevokeToken(t *testing.T) {
	svc, gateway, _ := newTestAuthService()
	publisher := &testutil.MockPublisher{}
	svc.SetEventPublisher(publisher)
	userID := gateway.AddUser("a@example.com", "secret123")

	session, err := svc.Authenticate(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	user, err := svc.User(context.Background(), session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	require.NoError(t, svc.RevokeToken(context.Background(), userID, session.AccessToken))
	_, err = svc.User(context.Background(), session.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, []string{"session.signed_out"}, publisher.Types())
	assert.Equal(t, []string{userID.String()}, publisher.Disconnected)
}

func TestChangePassword_UnknownToken(t *testing.T) {
	svc, _, _ := newTestAuthService()

	err := svc.ChangePassword(context.Background(), "bogus", "secret123")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
