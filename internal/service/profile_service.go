package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ProfileInput holds the editable profile fields as submitted
type ProfileInput struct {
	FullName string `json:"fullName" form:"fullName"`
	Username string `json:"username" form:"username"`
	Website  string `json:"website" form:"website"`
}

// ProfileService handles profile-related business logic
type ProfileService struct {
	profileRepo    domain.ProfileRepository
	eventPublisher websocket.EventPublisher
	now            func() time.Time
}

// NewProfileService creates a new ProfileService
func NewProfileService(profileRepo domain.ProfileRepository) *ProfileService {
	return &ProfileService{profileRepo: profileRepo, now: time.Now}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ProfileService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// GetProfile retrieves a user's profile. A user without a row yet gets an
// empty profile carrying only the ID.
func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return &domain.Profile{ID: userID}, nil
		}
		return nil, err
	}
	return profile, nil
}

// UpdateProfile validates and stores the editable fields, keeping the avatar
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*domain.Profile, error) {
	fullName, err := normalizeField(input.FullName)
	if err != nil {
		return nil, err
	}
	username, err := normalizeField(input.Username)
	if err != nil {
		return nil, err
	}
	if username != nil && utf8.RuneCountInString(*username) < domain.MinUsernameLength {
		return nil, domain.ErrUsernameTooShort
	}
	website, err := normalizeField(input.Website)
	if err != nil {
		return nil, err
	}
	if website != nil && !isHTTPURL(*website) {
		return nil, domain.ErrInvalidWebsite
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile.FullName = fullName
	profile.Username = username
	profile.Website = website
	profile.UpdatedAt = &now

	saved, err := s.profileRepo.Upsert(ctx, profile)
	if err != nil {
		if !errors.Is(err, domain.ErrUsernameTaken) {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to update profile")
		}
		return nil, err
	}

	s.publish(userID, websocket.ProfileUpdated(saved))
	log.Info().Str("user_id", userID.String()).Msg("Profile updated")
	return saved, nil
}

// SetAvatarURL points the profile at a new avatar object and returns the
// previous one
func (s *ProfileService) SetAvatarURL(ctx context.Context, userID uuid.UUID, avatarURL string) (*domain.Profile, *string, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	previous := profile.AvatarURL
	now := s.now().UTC()
	profile.AvatarURL = &avatarURL
	profile.UpdatedAt = &now

	saved, err := s.profileRepo.Upsert(ctx, profile)
	if err != nil {
		return nil, nil, err
	}
	return saved, previous, nil
}

func (s *ProfileService) publish(userID uuid.UUID, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID.String(), event)
	}
}

// normalizeField trims a form value; blank becomes nil
func normalizeField(value string) (*string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(value) > domain.MaxProfileFieldLen {
		return nil, domain.ErrFieldTooLong
	}
	return &value, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
