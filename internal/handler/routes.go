package handler

import (
	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Middlewares groups the authentication and throttling middleware the routes need
type Middlewares struct {
	Token       *middleware.AuthMiddleware
	Session     *middleware.SessionMiddleware
	Dual        *middleware.DualAuthMiddleware
	RateLimiter *middleware.RateLimiter
}

// RegisterPageRoutes sets up the server-rendered pages
func RegisterPageRoutes(e *echo.Echo, mw Middlewares, authPages *AuthPageHandler, accountPages *AccountPageHandler) {
	pages := e.Group("", mw.Session.LoadSession())
	limited := middleware.RateLimitMiddleware(mw.RateLimiter, ErrorPath)

	pages.GET("/", authPages.Home)
	pages.GET("/login", authPages.LoginPage)
	pages.POST("/login", authPages.Login, limited)
	pages.GET("/signup", authPages.SignupPage)
	pages.POST("/signup", authPages.Signup, limited)
	pages.GET("/forgot-password", authPages.ForgotPasswordPage)
	pages.POST("/forgot-password", authPages.ForgotPassword, limited)
	pages.GET("/confirmation", authPages.Confirmation)
	pages.GET("/error", authPages.Error)

	// Email link landings
	pages.GET("/auth/reset", authPages.AuthReset, limited)
	pages.GET("/auth/callback", authPages.AuthCallback, limited)
	pages.POST("/auth/signout", authPages.SignOut)

	// Session required
	signedIn := pages.Group("", mw.Session.RequireSession())
	signedIn.GET("/reset-password", authPages.ResetPasswordPage)
	signedIn.POST("/reset-password", authPages.ResetPassword, limited)
	signedIn.GET("/account", accountPages.Account)
	signedIn.POST("/account", accountPages.UpdateAccount)
	signedIn.GET("/account/avatar", accountPages.Avatar)
	signedIn.POST("/account/avatar", accountPages.UploadAvatar)
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, mw Middlewares, authHandler *AuthHandler, profileHandler *ProfileHandler, avatarHandler *AvatarHandler, wsHandler *WebSocketHandler) {
	// API version 1
	api := e.Group("/api/v1")
	limited := middleware.RateLimitMiddleware(mw.RateLimiter, "")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.Signup, limited)
	auth.POST("/login", authHandler.Login, limited)
	auth.POST("/recover", authHandler.Recover, limited)
	auth.POST("/refresh", authHandler.Refresh, limited)
	auth.POST("/exchange", authHandler.Exchange, limited)

	// Auth routes (protected)
	auth.GET("/me", authHandler.Me, mw.Token.Authenticate())
	auth.POST("/logout", authHandler.Logout, mw.Token.Authenticate())
	auth.PUT("/password", authHandler.ChangePassword, mw.Token.Authenticate(), limited)

	// Profile routes (protected)
	profile := api.Group("/profile")
	profile.Use(mw.Token.Authenticate())
	profile.GET("", profileHandler.GetProfile)
	profile.PUT("", profileHandler.UpdateProfile)
	profile.GET("/avatar", avatarHandler.GetAvatar)
	profile.POST("/avatar", avatarHandler.UploadAvatar)

	// Realtime events, token or session cookie
	e.GET("/ws", wsHandler.HandleWS, mw.Dual.Authenticate())
}
