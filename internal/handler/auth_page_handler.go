package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/dafibh/authgate/authgate-backend/internal/service"
	"github.com/dafibh/authgate/authgate-backend/internal/util"
	"github.com/dafibh/authgate/authgate-backend/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	// CodeVerifierCookie holds the PKCE verifier between the email request and the link coming back
	CodeVerifierCookie = "authgate_code_verifier"
	codeVerifierPath   = "/auth"
	codeVerifierTTL    = time.Hour

	ErrorPath        = "/error"
	ConfirmationPath = "/confirmation"
	AccountPath      = "/account"
)

// AuthPageHandler serves the sign-in, sign-up and password recovery pages
type AuthPageHandler struct {
	authService *service.AuthService
	sessions    *middleware.SessionMiddleware
	secure      bool
}

// NewAuthPageHandler creates a new AuthPageHandler
func NewAuthPageHandler(authService *service.AuthService, sessions *middleware.SessionMiddleware, secure bool) *AuthPageHandler {
	return &AuthPageHandler{
		authService: authService,
		sessions:    sessions,
		secure:      secure,
	}
}

// CredentialsForm is the login and signup form
type CredentialsForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

// Home handles GET /
func (h *AuthPageHandler) Home(c echo.Context) error {
	if middleware.GetSession(c) != nil {
		return c.Redirect(http.StatusSeeOther, AccountPath)
	}
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// LoginPage handles GET /login
func (h *AuthPageHandler) LoginPage(c echo.Context) error {
	return c.Render(http.StatusOK, web.PageLogin, web.PageData{Title: "Login"})
}

// Login handles POST /login
func (h *AuthPageHandler) Login(c echo.Context) error {
	var form CredentialsForm
	if err := c.Bind(&form); err != nil {
		return redirectToError(c, err)
	}

	session, err := h.authService.Login(c.Request().Context(), form.Email, form.Password)
	if err != nil {
		return redirectToError(c, err)
	}

	h.sessions.SetCookie(c, session.ID, h.authService.SessionTTL())
	return c.Redirect(http.StatusSeeOther, AccountPath)
}

// SignupPage handles GET /signup
func (h *AuthPageHandler) SignupPage(c echo.Context) error {
	return c.Render(http.StatusOK, web.PageSignup, web.PageData{Title: "Sign up"})
}

// Signup handles POST /signup
func (h *AuthPageHandler) Signup(c echo.Context) error {
	var form CredentialsForm
	if err := c.Bind(&form); err != nil {
		return redirectToError(c, err)
	}

	verifier, err := h.authService.SignUp(c.Request().Context(), form.Email, form.Password)
	if err != nil {
		return redirectToError(c, err)
	}

	h.setCodeVerifier(c, verifier)
	return c.Redirect(http.StatusSeeOther, ConfirmationPath)
}

// ForgotPasswordPage handles GET /forgot-password
func (h *AuthPageHandler) ForgotPasswordPage(c echo.Context) error {
	return c.Render(http.StatusOK, web.PageForgotPassword, web.PageData{Title: "Forgot password"})
}

// ForgotPassword handles POST /forgot-password
func (h *AuthPageHandler) ForgotPassword(c echo.Context) error {
	verifier, err := h.authService.ForgotPassword(c.Request().Context(), c.FormValue("email"))
	if err != nil {
		return redirectToError(c, err)
	}

	h.setCodeVerifier(c, verifier)
	return c.Redirect(http.StatusSeeOther, ConfirmationPath)
}

// AuthReset handles GET /auth/reset, the landing point of the recovery email
func (h *AuthPageHandler) AuthReset(c echo.Context) error {
	if code := c.QueryParam("code"); code != "" {
		if err := h.exchange(c, code); err != nil {
			return c.Redirect(http.StatusFound, errorLocation(err))
		}
	}

	next := util.SafeNextPath(c.QueryParam("next"), "/")
	return c.Redirect(http.StatusFound, util.WithQuery(next, "type", "recovery"))
}

// AuthCallback handles GET /auth/callback, the landing point of the signup email
func (h *AuthPageHandler) AuthCallback(c echo.Context) error {
	if code := c.QueryParam("code"); code != "" {
		if err := h.exchange(c, code); err != nil {
			return c.Redirect(http.StatusFound, errorLocation(err))
		}
	}

	return c.Redirect(http.StatusFound, util.SafeNextPath(c.QueryParam("next"), AccountPath))
}

// ResetPasswordPage handles GET /reset-password
func (h *AuthPageHandler) ResetPasswordPage(c echo.Context) error {
	return c.Render(http.StatusOK, web.PageResetPassword, web.PageData{Title: "Reset password"})
}

// ResetPassword handles POST /reset-password
func (h *AuthPageHandler) ResetPassword(c echo.Context) error {
	session := middleware.GetSession(c)
	if err := h.authService.ResetPassword(c.Request().Context(), session, c.FormValue("password")); err != nil {
		return redirectToError(c, err)
	}
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// SignOut handles POST /auth/signout
func (h *AuthPageHandler) SignOut(c echo.Context) error {
	if cookie, err := c.Cookie(h.sessions.CookieName()); err == nil && cookie.Value != "" {
		if err := h.authService.SignOut(c.Request().Context(), cookie.Value); err != nil {
			log.Error().Err(err).Msg("Failed to sign out")
		}
	}

	h.sessions.ClearCookie(c)
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// Confirmation handles GET /confirmation
func (h *AuthPageHandler) Confirmation(c echo.Context) error {
	return c.Render(http.StatusOK, web.PageConfirmation, web.PageData{Title: "Check your email"})
}

// Error handles GET /error
func (h *AuthPageHandler) Error(c echo.Context) error {
	message := errorPageText(c.QueryParam(ErrorCodeParam))
	return c.Render(http.StatusOK, web.PageError, web.PageData{Title: "Error", Message: message})
}

// exchange trades the email link code for a session and issues the cookie.
// The verifier cookie is single use.
func (h *AuthPageHandler) exchange(c echo.Context, code string) error {
	var verifier string
	if cookie, err := c.Cookie(CodeVerifierCookie); err == nil {
		verifier = cookie.Value
	}
	h.clearCodeVerifier(c)

	session, err := h.authService.ExchangeCode(c.Request().Context(), code, verifier)
	if err != nil {
		return err
	}

	h.sessions.SetCookie(c, session.ID, h.authService.SessionTTL())
	return nil
}

func (h *AuthPageHandler) setCodeVerifier(c echo.Context, verifier string) {
	c.SetCookie(&http.Cookie{
		Name:     CodeVerifierCookie,
		Value:    verifier,
		Path:     codeVerifierPath,
		MaxAge:   int(codeVerifierTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthPageHandler) clearCodeVerifier(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CodeVerifierCookie,
		Value:    "",
		Path:     codeVerifierPath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// errorLocation builds the error page URL, carrying a code when the
// failure has text the visitor may see
func errorLocation(err error) string {
	if code := errorCode(err); code != "" {
		return ErrorPath + "?" + ErrorCodeParam + "=" + url.QueryEscape(code)
	}
	return ErrorPath
}

func redirectToError(c echo.Context, err error) error {
	log.Warn().Err(err).Str("path", c.Request().URL.Path).Msg("Page action failed")
	return c.Redirect(http.StatusSeeOther, errorLocation(err))
}
