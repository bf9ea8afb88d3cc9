package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/dafibh/authgate/authgate-backend/internal/service"
	"github.com/dafibh/authgate/authgate-backend/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AccountPageHandler serves the signed-in account page
type AccountPageHandler struct {
	profileService *service.ProfileService
	avatarService  *service.AvatarService
}

// NewAccountPageHandler creates a new AccountPageHandler
func NewAccountPageHandler(profileService *service.ProfileService, avatarService *service.AvatarService) *AccountPageHandler {
	return &AccountPageHandler{
		profileService: profileService,
		avatarService:  avatarService,
	}
}

// Account handles GET /account
func (h *AccountPageHandler) Account(c echo.Context) error {
	session := middleware.GetSession(c)

	profile, err := h.profileService.GetProfile(c.Request().Context(), session.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", session.UserID.String()).Msg("Failed to load profile")
		return redirectToError(c, err)
	}

	return h.render(c, http.StatusOK, session, profile, "")
}

// UpdateAccount handles POST /account
func (h *AccountPageHandler) UpdateAccount(c echo.Context) error {
	session := middleware.GetSession(c)

	var input service.ProfileInput
	if err := c.Bind(&input); err != nil {
		return redirectToError(c, err)
	}

	profile, err := h.profileService.UpdateProfile(c.Request().Context(), session.UserID, input)
	if err != nil {
		return h.renderFailure(c, session, err)
	}

	return h.render(c, http.StatusOK, session, profile, "Profile updated!")
}

// UploadAvatar handles POST /account/avatar
func (h *AccountPageHandler) UploadAvatar(c echo.Context) error {
	session := middleware.GetSession(c)

	data, filename, err := readAvatarUpload(c)
	if err != nil {
		return h.renderFailure(c, session, err)
	}

	profile, err := h.avatarService.Upload(c.Request().Context(), session.UserID, data, filename)
	if err != nil {
		return h.renderFailure(c, session, err)
	}

	return h.render(c, http.StatusOK, session, profile, "Avatar updated!")
}

// Avatar handles GET /account/avatar
func (h *AccountPageHandler) Avatar(c echo.Context) error {
	session := middleware.GetSession(c)
	return streamAvatar(c, h.avatarService, session.UserID)
}

// renderFailure re-renders the form for errors the visitor can fix and sends
// everything else to the error page
func (h *AccountPageHandler) renderFailure(c echo.Context, session *domain.AuthSession, err error) error {
	message := userMessage(err)
	if message == "" {
		log.Error().Err(err).Str("user_id", session.UserID.String()).Msg("Account update failed")
		return redirectToError(c, err)
	}

	profile, getErr := h.profileService.GetProfile(c.Request().Context(), session.UserID)
	if getErr != nil {
		return redirectToError(c, getErr)
	}

	status := http.StatusBadRequest
	if errors.Is(err, domain.ErrUsernameTaken) {
		status = http.StatusConflict
	}
	return h.render(c, status, session, profile, message)
}

func (h *AccountPageHandler) render(c echo.Context, status int, session *domain.AuthSession, profile *domain.Profile, message string) error {
	return c.Render(status, web.PageAccount, web.PageData{
		Title:   "Account",
		Message: message,
		Email:   session.Email,
		Profile: profile,
	})
}
