package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/dafibh/authgate/authgate-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AvatarFormField is the multipart field carrying the picture
const AvatarFormField = "avatar"

var errAvatarMissing = errors.New("avatar file is required")

// AvatarHandler handles profile picture uploads over the JSON API
type AvatarHandler struct {
	avatarService *service.AvatarService
}

// NewAvatarHandler creates a new AvatarHandler
func NewAvatarHandler(avatarService *service.AvatarService) *AvatarHandler {
	return &AvatarHandler{avatarService: avatarService}
}

// UploadAvatar handles POST /api/v1/profile/avatar
func (h *AvatarHandler) UploadAvatar(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	if !h.avatarService.IsEnabled() {
		return NewServiceUnavailableError(c, "Avatar uploads are disabled (storage not configured)")
	}

	data, filename, err := readAvatarUpload(c)
	if err != nil {
		if isImageError(err) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: AvatarFormField, Message: err.Error()},
			})
		}
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	profile, err := h.avatarService.Upload(c.Request().Context(), userID, data, filename)
	if err != nil {
		if isImageError(err) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: AvatarFormField, Message: err.Error()},
			})
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to upload avatar")
		return NewInternalError(c, "Failed to upload avatar")
	}

	return c.JSON(http.StatusCreated, newProfileResponse(profile, middleware.GetEmail(c)))
}

// GetAvatar handles GET /api/v1/profile/avatar
func (h *AvatarHandler) GetAvatar(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	return streamAvatar(c, h.avatarService, userID)
}

// readAvatarUpload reads the avatar file of a multipart form, refusing
// anything past the size limit without buffering it
func readAvatarUpload(c echo.Context) ([]byte, string, error) {
	file, err := c.FormFile(AvatarFormField)
	if err != nil {
		return nil, "", errAvatarMissing
	}
	if file.Size > service.MaxAvatarSize {
		return nil, "", service.ErrImageTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, service.MaxAvatarSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > service.MaxAvatarSize {
		return nil, "", service.ErrImageTooLarge
	}

	return data, file.Filename, nil
}

func streamAvatar(c echo.Context, avatars *service.AvatarService, userID uuid.UUID) error {
	data, contentType, err := avatars.Download(c.Request().Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAvatarNotFound):
			return NewNotFoundError(c, "Avatar not found")
		case errors.Is(err, service.ErrAvatarStorageNotConfigured):
			return NewServiceUnavailableError(c, "Avatar storage not configured")
		default:
			log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to download avatar")
			return NewInternalError(c, "Failed to download avatar")
		}
	}

	c.Response().Header().Set("Cache-Control", "private, no-cache")
	return c.Blob(http.StatusOK, contentType, data)
}

func isImageError(err error) bool {
	for _, target := range []error{
		errAvatarMissing,
		service.ErrImageTooLarge,
		service.ErrInvalidFormat,
		service.ErrImageTooSmall,
		service.ErrImageDimensionsTooLarge,
		service.ErrInvalidImageData,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
