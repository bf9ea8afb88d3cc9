package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 5) // 10 per minute, burst of 5
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("203.0.113.7") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if rl.Allow("203.0.113.7") {
		t.Error("Request 6 should be rate limited")
	}
}

func TestRateLimiter_DifferentClients(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.1") {
			t.Errorf("Client1 request %d should be allowed", i+1)
		}
	}

	if rl.Allow("203.0.113.1") {
		t.Error("Client1 should be rate limited")
	}

	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.2") {
			t.Errorf("Client2 request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 3)
	defer rl.Stop()

	rl.Allow("203.0.113.1")
	rl.sweep(time.Now().Add(LimiterTTL + time.Second))

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if len(rl.limiters) != 0 {
		t.Errorf("Expected stale limiter to be removed, %d left", len(rl.limiters))
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 3)
	rl.Stop()
	rl.Stop()
}

func newRateLimitedRequest(e *echo.Echo) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.4")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimitMiddleware_ProblemResponse(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}
	mw := RateLimitMiddleware(rl, "")

	c, rec := newRateLimitedRequest(e)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("First request: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("Expected X-RateLimit-Limit 1, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	c, rec = newRateLimitedRequest(e)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["type"] != errorTypeRateLimit {
		t.Errorf("Expected rate limit problem type, got %v", body["type"])
	}
}

func TestRateLimitMiddleware_RedirectsPages(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}
	mw := RateLimitMiddleware(rl, "/error")

	c, _ := newRateLimitedRequest(e)
	_ = mw(handler)(c)

	c, rec := newRateLimitedRequest(e)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "/error?code="+RateLimitedCode {
		t.Errorf("Unexpected redirect %q", rec.Header().Get("Location"))
	}
}

func TestRateLimitMiddleware_IgnoresForwardedForFromClients(t *testing.T) {
	e := echo.New()
	extractor, err := NewIPExtractor(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	e.IPExtractor = extractor

	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()
	mw := RateLimitMiddleware(rl, "")
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}

	passed := 0
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "198.51.100.9:40000"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		if err := mw(handler)(e.NewContext(req, rec)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if rec.Code == http.StatusOK {
			passed++
		}
	}
	if passed != 1 {
		t.Errorf("Expected 1 request from one socket address to pass, got %d", passed)
	}
}

func TestNewIPExtractor_TrustedProxy(t *testing.T) {
	extractor, err := NewIPExtractor([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	viaProxy := httptest.NewRequest(http.MethodGet, "/", nil)
	viaProxy.RemoteAddr = "10.1.2.3:5000"
	viaProxy.Header.Set(echo.HeaderXForwardedFor, "203.0.113.50")
	if got := extractor(viaProxy); got != "203.0.113.50" {
		t.Errorf("Expected forwarded client address, got %q", got)
	}

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.RemoteAddr = "198.51.100.9:40000"
	direct.Header.Set(echo.HeaderXForwardedFor, "203.0.113.50")
	if got := extractor(direct); got != "198.51.100.9" {
		t.Errorf("Expected socket address for untrusted peer, got %q", got)
	}

	private := httptest.NewRequest(http.MethodGet, "/", nil)
	private.RemoteAddr = "192.168.0.7:40000"
	private.Header.Set(echo.HeaderXForwardedFor, "203.0.113.50")
	if got := extractor(private); got != "192.168.0.7" {
		t.Errorf("Expected private peer outside the trusted range to be used as-is, got %q", got)
	}
}

func TestNewIPExtractor_InvalidRange(t *testing.T) {
	if _, err := NewIPExtractor([]string{"not-a-cidr"}); err == nil {
		t.Error("Expected error for invalid CIDR")
	}
}
