package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/dafibh/authgate/authgate-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	profileService *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ProfileResponse represents the profile response
type ProfileResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  *string    `json:"fullName"`
	Username  *string    `json:"username"`
	Website   *string    `json:"website"`
	AvatarURL *string    `json:"avatarUrl"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func newProfileResponse(profile *domain.Profile, email string) ProfileResponse {
	return ProfileResponse{
		ID:        profile.ID.String(),
		Email:     email,
		FullName:  profile.FullName,
		Username:  profile.Username,
		Website:   profile.Website,
		AvatarURL: profile.AvatarURL,
		UpdatedAt: profile.UpdatedAt,
	}
}

// GetProfile handles GET /profile
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	profile, err := h.profileService.GetProfile(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get profile")
		return NewInternalError(c, "Failed to get profile")
	}

	return c.JSON(http.StatusOK, newProfileResponse(profile, middleware.GetEmail(c)))
}

// UpdateProfile handles PUT /profile
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req service.ProfileInput
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	profile, err := h.profileService.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return handleAuthError(c, err, "Failed to update profile")
	}

	return c.JSON(http.StatusOK, newProfileResponse(profile, middleware.GetEmail(c)))
}
