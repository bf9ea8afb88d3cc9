package testutil

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/websocket"
	"github.com/google/uuid"
)

// MockAuthGateway is a mock implementation of domain.AuthGateway.
// Users maps email to password; Tokens maps access tokens to users.
type MockAuthGateway struct {
	Users  map[string]string
	IDs    map[string]uuid.UUID
	Tokens map[string]*domain.User

	// Codes maps an auth code to the verifier it was issued for
	Codes map[string]string
	// Refresh maps refresh tokens to the email that owns them
	Refresh map[string]string

	SignUpErr  error
	RecoverErr error
	SignOutErr error
	RefreshErr error

	LastRedirectTo   string
	LastChallenge    string
	UpdatedPasswords map[string]string
	SignedOutTokens  []string
	SessionTTL       time.Duration
	mu               sync.Mutex
}

// NewMockAuthGateway creates a new MockAuthGateway
func NewMockAuthGateway() *MockAuthGateway {
	return &MockAuthGateway{
		Users:            make(map[string]string),
		IDs:              make(map[string]uuid.UUID),
		Tokens:           make(map[string]*domain.User),
		Codes:            make(map[string]string),
		Refresh:          make(map[string]string),
		UpdatedPasswords: make(map[string]string),
		SessionTTL:       time.Hour,
	}
}

// AddUser registers a confirmed user and returns its ID
func (m *MockAuthGateway) AddUser(email, password string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.Users[email] = password
	m.IDs[email] = id
	return id
}

// AddCode registers an auth code that can be exchanged for a session of email
func (m *MockAuthGateway) AddCode(code, verifier, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Codes[code] = verifier + "|" + email
}

// SignUp records the redirect and challenge
func (m *MockAuthGateway) SignUp(ctx context.Context, email, password, redirectTo, codeChallenge string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRedirectTo = redirectTo
	m.LastChallenge = codeChallenge
	if m.SignUpErr != nil {
		return m.SignUpErr
	}
	m.Users[email] = password
	m.IDs[email] = uuid.New()
	return nil
}

// SignInWithPassword checks the stored password
func (m *MockAuthGateway) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Users[email]
	if !ok || stored != password {
		return nil, domain.ErrInvalidCredentials
	}
	return m.issueLocked(email), nil
}

// ResetPasswordForEmail records the redirect and challenge
func (m *MockAuthGateway) ResetPasswordForEmail(ctx context.Context, email, redirectTo, codeChallenge string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRedirectTo = redirectTo
	m.LastChallenge = codeChallenge
	return m.RecoverErr
}

// ExchangeCodeForSession issues a session for a registered code and verifier
func (m *MockAuthGateway) ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.Codes[code]
	if !ok {
		return nil, domain.ErrInvalidCode
	}
	verifier, email, _ := strings.Cut(entry, "|")
	if verifier != codeVerifier {
		return nil, domain.ErrInvalidCode
	}
	delete(m.Codes, code)
	if _, ok := m.IDs[email]; !ok {
		m.IDs[email] = uuid.New()
	}
	return m.issueLocked(email), nil
}

// UpdatePassword changes the password of the token's user
func (m *MockAuthGateway) UpdatePassword(ctx context.Context, accessToken, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.Tokens[accessToken]
	if !ok {
		return domain.ErrUnauthorized
	}
	m.Users[user.Email] = password
	m.UpdatedPasswords[user.Email] = password
	return nil
}

// GetUser resolves an access token
func (m *MockAuthGateway) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.Tokens[accessToken]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	copied := *user
	return &copied, nil
}

// RefreshSession rotates a refresh token
func (m *MockAuthGateway) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	email, ok := m.Refresh[refreshToken]
	if !ok {
		return nil, &domain.AuthError{Status: 400, Code: "refresh_token_not_found", Message: "Invalid Refresh Token"}
	}
	delete(m.Refresh, refreshToken)
	return m.issueLocked(email), nil
}

// SignOut revokes an access token
func (m *MockAuthGateway) SignOut(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignedOutTokens = append(m.SignedOutTokens, accessToken)
	if m.SignOutErr != nil {
		return m.SignOutErr
	}
	delete(m.Tokens, accessToken)
	return nil
}

func (m *MockAuthGateway) issueLocked(email string) *domain.Session {
	user := domain.User{ID: m.IDs[email], Email: email, CreatedAt: time.Now().UTC()}
	session := &domain.Session{
		AccessToken:  "access-" + uuid.NewString(),
		RefreshToken: "refresh-" + uuid.NewString(),
		ExpiresAt:    time.Now().Add(m.SessionTTL),
		User:         user,
	}
	m.Tokens[session.AccessToken] = &user
	m.Refresh[session.RefreshToken] = email
	return session
}

// MockSessionStore is a mock implementation of domain.SessionStore
type MockSessionStore struct {
	Sessions map[string]*domain.AuthSession
	TTLs     map[string]time.Duration
	SaveErr  error
	mu       sync.Mutex
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		Sessions: make(map[string]*domain.AuthSession),
		TTLs:     make(map[string]time.Duration),
	}
}

// Save stores a copy of the session
func (m *MockSessionStore) Save(ctx context.Context, session *domain.AuthSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	copied := *session
	m.Sessions[session.ID] = &copied
	m.TTLs[session.ID] = ttl
	return nil
}

// Get returns a copy of the session
func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.Sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// Delete removes the session
func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Sessions, id)
	delete(m.TTLs, id)
	return nil
}

// MockProfileRepository is a mock implementation of domain.ProfileRepository
type MockProfileRepository struct {
	Profiles map[uuid.UUID]*domain.Profile
	GetErr   error
	UpsertFn func(profile *domain.Profile) (*domain.Profile, error)
	mu       sync.Mutex
}

// NewMockProfileRepository creates a new MockProfileRepository
func NewMockProfileRepository() *MockProfileRepository {
	return &MockProfileRepository{
		Profiles: make(map[uuid.UUID]*domain.Profile),
	}
}

// AddProfile adds a profile to the mock repository
func (m *MockProfileRepository) AddProfile(profile *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Profiles[profile.ID] = profile
}

// GetByID retrieves a profile by user ID
func (m *MockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	profile, ok := m.Profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

// Upsert stores the profile, rejecting usernames owned by another profile
func (m *MockProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if m.UpsertFn != nil {
		return m.UpsertFn(profile)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if profile.Username != nil {
		for id, other := range m.Profiles {
			if id != profile.ID && other.Username != nil && *other.Username == *profile.Username {
				return nil, domain.ErrUsernameTaken
			}
		}
	}
	copied := *profile
	m.Profiles[profile.ID] = &copied
	result := copied
	return &result, nil
}

// MockAvatarStorage is a mock implementation of domain.AvatarStorage
type MockAvatarStorage struct {
	Objects      map[string][]byte
	ContentTypes map[string]string
	Deleted      []string
	UploadErr    error
	DeleteErr    error
	mu           sync.Mutex
}

// NewMockAvatarStorage creates a new MockAvatarStorage
func NewMockAvatarStorage() *MockAvatarStorage {
	return &MockAvatarStorage{
		Objects:      make(map[string][]byte),
		ContentTypes: make(map[string]string),
	}
}

// Upload stores the object bytes
func (m *MockAvatarStorage) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[objectPath] = buf.Bytes()
	m.ContentTypes[objectPath] = contentType
	return nil
}

// Download returns the stored bytes
func (m *MockAvatarStorage) Download(ctx context.Context, objectPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[objectPath]
	if !ok {
		return nil, domain.ErrAvatarNotFound
	}
	return data, nil
}

// Delete removes the object
func (m *MockAvatarStorage) Delete(ctx context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, objectPath)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Objects, objectPath)
	return nil
}

// PublishedEvent is an event captured by MockPublisher
type PublishedEvent struct {
	UserID string
	Event  websocket.Event
}

// MockPublisher records published events
type MockPublisher struct {
	Events       []PublishedEvent
	Disconnected []string
	mu           sync.Mutex
}

// Publish records the event
func (m *MockPublisher) Publish(userID string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{UserID: userID, Event: event})
}

// Disconnect records the final event and the disconnected user
func (m *MockPublisher) Disconnect(userID string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{UserID: userID, Event: event})
	m.Disconnected = append(m.Disconnected, userID)
}

// Types returns the type of every recorded event in order
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.Event.Type)
	}
	return types
}
