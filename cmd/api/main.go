package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/config"
	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/handler"
	"github.com/dafibh/authgate/authgate-backend/internal/middleware"
	"github.com/dafibh/authgate/authgate-backend/internal/repository/postgres"
	"github.com/dafibh/authgate/authgate-backend/internal/repository/postgrest"
	"github.com/dafibh/authgate/authgate-backend/internal/repository/session"
	"github.com/dafibh/authgate/authgate-backend/internal/repository/storage"
	"github.com/dafibh/authgate/authgate-backend/internal/service"
	"github.com/dafibh/authgate/authgate-backend/internal/supa"
	"github.com/dafibh/authgate/authgate-backend/internal/web"
	"github.com/dafibh/authgate/authgate-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Configure zerolog once ENV is known, .env included
	log.Logger = newLogger(cfg, os.Stderr)

	ctx := context.Background()

	// Supabase clients
	clients, err := supa.NewClients(cfg.Supabase)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Supabase clients")
	}
	gateway := supa.NewGateway(cfg.Supabase.URL, cfg.Supabase.AnonKey, clients.Auth)

	// Session store: redis when configured, in-process otherwise
	var sessionStore domain.SessionStore
	if cfg.RedisURL != "" {
		redisClient, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()
		sessionStore = session.NewRedisStore(redisClient)
		log.Info().Msg("Sessions stored in redis")
	} else {
		memoryStore := session.NewMemoryStore()
		defer memoryStore.Stop()
		sessionStore = memoryStore
		log.Warn().Msg("REDIS_URL not set, sessions are kept in memory")
	}

	// Profile repository: direct Postgres when configured, PostgREST otherwise
	var profileRepo domain.ProfileRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping database")
		}
		log.Info().Msg("Connected to database")
		profileRepo = postgres.NewProfileRepository(pool)
	} else {
		profileRepo = postgrest.NewProfileRepository(clients)
	}

	// Avatar storage: S3 gateway when keys are set, Storage API otherwise
	var avatarStorage domain.AvatarStorage
	if cfg.S3.Enabled() {
		s3Repo, err := storage.NewS3AvatarRepository(ctx, cfg.S3, cfg.AvatarBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 avatar storage")
		}
		avatarStorage = s3Repo
		log.Info().Str("endpoint", cfg.S3.Endpoint).Msg("Avatars stored through the S3 endpoint")
	} else {
		avatarStorage = storage.NewSupabaseAvatarRepository(clients, cfg.AvatarBucket)
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub()

	// Initialize services
	authService := service.NewAuthService(gateway, sessionStore, cfg.SiteURL, cfg.SessionTTL)
	authService.SetEventPublisher(hub)
	profileService := service.NewProfileService(profileRepo)
	profileService.SetEventPublisher(hub)
	avatarService := service.NewAvatarService(avatarStorage, profileService)
	avatarService.SetEventPublisher(hub)

	// Access tokens are checked locally when the JWT secret is known
	var verifier middleware.TokenVerifier
	if cfg.Supabase.JWTSecret != "" {
		jwtVerifier, err := middleware.NewJWTVerifier(cfg.Supabase.URL, cfg.Supabase.JWTSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create JWT verifier")
		}
		verifier = jwtVerifier
	} else {
		log.Warn().Msg("SUPABASE_JWT_SECRET not set, access tokens are verified remotely")
		verifier = middleware.NewRemoteVerifier(authService)
	}

	tokenAuth := middleware.NewAuthMiddleware(verifier)
	sessionAuth := middleware.NewSessionMiddleware(authService, cfg.SessionCookieName, cfg.IsProduction())
	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.AuthRateLimit, cfg.AuthRateBurst)
	defer rateLimiter.Stop()

	mw := handler.Middlewares{
		Token:       tokenAuth,
		Session:     sessionAuth,
		Dual:        middleware.NewDualAuthMiddleware(tokenAuth, sessionAuth),
		RateLimiter: rateLimiter,
	}

	// Initialize handlers
	authPages := handler.NewAuthPageHandler(authService, sessionAuth, cfg.IsProduction())
	accountPages := handler.NewAccountPageHandler(profileService, avatarService)
	authHandler := handler.NewAuthHandler(authService)
	profileHandler := handler.NewProfileHandler(profileService)
	avatarHandler := handler.NewAvatarHandler(avatarService)
	// Pages served by this server open the socket from the site origin
	wsOrigins := append([]string{strings.TrimSuffix(cfg.SiteURL, "/")}, cfg.CORSOrigins...)
	wsHandler := handler.NewWebSocketHandler(hub, wsOrigins)

	renderer, err := web.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse templates")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	ipExtractor, err := middleware.NewIPExtractor(cfg.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure client IP extraction")
	}
	e.IPExtractor = ipExtractor

	// Middleware
	e.Use(echomiddleware.RequestID())

	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Avatar uploads are capped at 5MB by the service, leave room for the multipart envelope
	e.Use(echomiddleware.BodyLimit("6M"))

	e.Use(zerologMiddleware())

	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	handler.RegisterPageRoutes(e, mw, authPages, accountPages)
	handler.RegisterRoutes(e, mw, authHandler, profileHandler, avatarHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("site_url", cfg.SiteURL).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware logs every request with zerolog
// newLogger writes JSON in production and uses the console writer everywhere else
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if !cfg.IsProduction() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			event := log.Info()
			if res.Status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
