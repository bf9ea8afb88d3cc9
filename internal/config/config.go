package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Supabase
	Supabase SupabaseConfig

	// Server
	Port        string
	SiteURL     string
	CORSOrigins []string
	Env         string
	// CIDR ranges of reverse proxies whose X-Forwarded-For is believed.
	// Empty means the socket address is the client address.
	TrustedProxies []string

	// Optional backends
	RedisURL    string
	DatabaseURL string

	// Avatar storage
	AvatarBucket string
	S3           S3Config

	// Sessions
	SessionCookieName string
	SessionTTL        time.Duration

	// Rate limiting for credential-bearing routes
	AuthRateLimit int
	AuthRateBurst int
}

// SupabaseConfig holds the project endpoint and keys
type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
}

// S3Config holds the Supabase Storage S3 endpoint configuration
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// Enabled reports whether avatars should go through the S3 endpoint
func (s S3Config) Enabled() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL is invalid: %w", err)
	}

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey:        getEnv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		},
		Port:           getEnv("PORT", "8080"),
		SiteURL:        NormalizeSiteURL(getEnv("SITE_URL", "http://localhost:8080/")),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:            getEnv("ENV", "development"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		RedisURL:       getEnv("REDIS_URL", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AvatarBucket:   getEnv("AVATAR_BUCKET", "avatars"),
		S3: S3Config{
			Region:          getEnv("SUPABASE_S3_REGION", "us-east-1"),
			AccessKeyID:     getEnv("SUPABASE_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("SUPABASE_S3_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("SUPABASE_S3_ENDPOINT", ""),
		},
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "authgate_session"),
		SessionTTL:        sessionTTL,
		AuthRateLimit:     getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateBurst:     getEnvInt("AUTH_RATE_BURST", 5),
	}

	// The S3 endpoint defaults to the project's storage S3 gateway
	if cfg.S3.Endpoint == "" && cfg.Supabase.URL != "" {
		cfg.S3.Endpoint = cfg.Supabase.URL + "/storage/v1/s3"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if !strings.HasPrefix(c.Supabase.URL, "http://") && !strings.HasPrefix(c.Supabase.URL, "https://") {
		return fmt.Errorf("SUPABASE_URL must start with http:// or https://")
	}
	if c.Supabase.AnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.AuthRateLimit <= 0 || c.AuthRateBurst <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive")
	}
	return nil
}

// NormalizeSiteURL makes the public site URL absolute and slash-terminated,
// so redirect targets can be appended directly.
func NormalizeSiteURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		url = "http://localhost:8080/"
	}
	if !strings.Contains(url, "http") {
		url = "https://" + url
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvList(key string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(key), ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}
