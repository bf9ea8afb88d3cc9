package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/websocket"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

const (
	MaxAvatarSize   = 5 * 1024 * 1024 // 5MB
	MinAvatarWidth  = 50
	MinAvatarHeight = 50
	MaxAvatarPixels = 40_000_000
	AvatarSize      = 256
	JPEGQuality     = 85
)

var (
	ErrImageTooLarge              = errors.New("file too large. Maximum size is 5MB")
	ErrInvalidFormat              = errors.New("invalid format. Supported: JPEG, PNG, WebP")
	ErrImageTooSmall              = errors.New("image too small. Minimum 50x50 pixels")
	ErrImageDimensionsTooLarge    = errors.New("image dimensions too large. Maximum 40 megapixels")
	ErrInvalidImageData           = errors.New("invalid image data")
	ErrAvatarStorageNotConfigured = errors.New("avatar storage not configured")
)

// AllowedExtensions maps extensions to content types
var AllowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// AvatarService validates, crops and stores profile pictures
type AvatarService struct {
	storage        domain.AvatarStorage
	profiles       *ProfileService
	eventPublisher websocket.EventPublisher
}

// NewAvatarService creates a new AvatarService
func NewAvatarService(storage domain.AvatarStorage, profiles *ProfileService) *AvatarService {
	return &AvatarService{storage: storage, profiles: profiles}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *AvatarService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// IsEnabled indicates whether uploads are supported (storage configured)
func (s *AvatarService) IsEnabled() bool {
	return s != nil && s.storage != nil
}

// ValidateImage validates image format, size and dimensions
func (s *AvatarService) ValidateImage(data []byte, filename string) error {
	_, err := s.validateAndDecode(data, filename)
	return err
}

func (s *AvatarService) validateAndDecode(data []byte, filename string) (image.Image, error) {
	if len(data) > MaxAvatarSize {
		return nil, ErrImageTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := AllowedExtensions[ext]; !ok {
		return nil, ErrInvalidFormat
	}

	// Header first: decoders allocate from the declared size
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImageData
	}
	if cfg.Width < MinAvatarWidth || cfg.Height < MinAvatarHeight {
		return nil, ErrImageTooSmall
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxAvatarPixels {
		return nil, ErrImageDimensionsTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImageData
	}
	return img, nil
}

// Upload crops the image to a square, stores it and points the profile at it.
// The previous avatar object is removed best effort.
func (s *AvatarService) Upload(ctx context.Context, userID uuid.UUID, data []byte, filename string) (*domain.Profile, error) {
	if !s.IsEnabled() {
		return nil, ErrAvatarStorageNotConfigured
	}

	img, err := s.validateAndDecode(data, filename)
	if err != nil {
		return nil, err
	}

	cropped := imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	objectPath := AvatarObjectPath(userID)
	if err := s.storage.Upload(ctx, objectPath, bytes.NewReader(buf.Bytes()), "image/jpeg", int64(buf.Len())); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Str("path", objectPath).Msg("Failed to upload avatar")
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	profile, previous, err := s.profiles.SetAvatarURL(ctx, userID, objectPath)
	if err != nil {
		// The profile still points at the old object, so drop the new one
		s.cleanup(ctx, objectPath)
		return nil, err
	}

	if previous != nil && *previous != objectPath && OwnsAvatar(userID, *previous) {
		s.cleanup(ctx, *previous)
	}

	s.publish(userID, websocket.AvatarUpdated(map[string]interface{}{
		"avatarUrl": objectPath,
	}))

	log.Info().Str("user_id", userID.String()).Str("path", objectPath).Msg("Avatar uploaded")
	return profile, nil
}

// Download returns the bytes and content type of the user's avatar
func (s *AvatarService) Download(ctx context.Context, userID uuid.UUID) ([]byte, string, error) {
	if !s.IsEnabled() {
		return nil, "", ErrAvatarStorageNotConfigured
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if profile.AvatarURL == nil || *profile.AvatarURL == "" {
		return nil, "", domain.ErrAvatarNotFound
	}

	objectPath := *profile.AvatarURL
	if !OwnsAvatar(userID, objectPath) {
		log.Warn().Str("user_id", userID.String()).Str("path", objectPath).Msg("Avatar path not owned by user")
		return nil, "", domain.ErrAvatarNotFound
	}

	data, err := s.storage.Download(ctx, objectPath)
	if err != nil {
		return nil, "", err
	}
	return data, GetContentType(objectPath), nil
}

func (s *AvatarService) cleanup(ctx context.Context, objectPath string) {
	if err := s.storage.Delete(ctx, objectPath); err != nil {
		log.Warn().Err(err).Str("path", objectPath).Msg("Failed to delete avatar object")
	}
}

func (s *AvatarService) publish(userID uuid.UUID, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID.String(), event)
	}
}

// AvatarObjectPath generates a fresh object name for a user's avatar
func AvatarObjectPath(userID uuid.UUID) string {
	return fmt.Sprintf("%s-%s.jpg", userID, uuid.New())
}

// OwnsAvatar reports whether the object name belongs to the user
func OwnsAvatar(userID uuid.UUID, objectPath string) bool {
	return strings.HasPrefix(objectPath, userID.String()+"-") && !strings.Contains(objectPath, "/")
}

// GetContentType returns the content type for a file extension
func GetContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := AllowedExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
