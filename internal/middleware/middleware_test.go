package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/AnshRaj112/estatehub-backend/internal/services"
	"github.com/AnshRaj112/estatehub-backend/pkg/clientip"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type stubIPChecker struct {
	blocked map[string]bool
	calls   int
}

func (s *stubIPChecker) CheckIP(_ context.Context, ip string) models.CheckResult {
	s.calls++
	if s.blocked[ip] {
		return models.CheckResult{IsBlacklisted: true, Category: models.CategoryIP, Reason: "abuse"}
	}
	return models.NotBlacklisted(models.CategoryIP)
}

func TestBlockBlacklistedIP(t *testing.T) {
	checker := &stubIPChecker{blocked: map[string]bool{"203.0.113.5": true}}
	violations := services.NewMemoryViolationLog(10)
	gate := BlockBlacklistedIP(checker, violations, clientip.Resolver{TrustProxy: true}, log.New(io.Discard))(okHandler)

	cases := []struct {
		name      string
		forwarded string
		want      int
	}{
		{"clean ip", "198.51.100.7", http.StatusOK},
		{"blacklisted ip", "203.0.113.5", http.StatusForbidden},
		{"blacklisted ip behind proxies", "203.0.113.5, 10.0.0.1", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/inquiries", nil)
			req.Header.Set("X-Forwarded-For", tc.forwarded)
			rec := httptest.NewRecorder()
			gate.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	recent, _ := violations.Recent(context.Background(), 10)
	if len(recent) != 2 {
		t.Fatalf("recorded %d violations, want 2", len(recent))
	}
	if recent[0].Type != models.ViolationTypeBlockedIP || recent[0].IPAddress != "203.0.113.5" || recent[0].Message != "abuse" {
		t.Fatalf("violation = %+v", recent[0])
	}
}

func TestBlockBlacklistedIPWithoutViolationLog(t *testing.T) {
	checker := &stubIPChecker{blocked: map[string]bool{"192.0.2.1": true}}
	gate := BlockBlacklistedIP(checker, nil, clientip.Resolver{}, log.New(io.Discard))(okHandler)

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/inquiries", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 2, "slow down")
	handler := limiter.Middleware(isFormSubmission)(okHandler)

	send := func(method, path, remote string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := range 2 {
		if code := send(http.MethodPost, "/api/inquiries", "10.0.0.1:1000"); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, code)
		}
	}
	if code := send(http.MethodPost, "/api/inquiries", "10.0.0.1:1000"); code != http.StatusTooManyRequests {
		t.Fatalf("third form post status = %d, want 429", code)
	}
	if code := send(http.MethodPost, "/api/inquiries", "10.0.0.2:1000"); code != http.StatusOK {
		t.Fatalf("other ip status = %d, want 200", code)
	}
	if code := send(http.MethodGet, "/api/properties/public", "10.0.0.1:1000"); code != http.StatusOK {
		t.Fatalf("non-form request status = %d, want 200", code)
	}
}

func TestHostCheck(t *testing.T) {
	handler := HostCheck("api.estatehub.com")(okHandler)

	cases := map[string]int{
		"api.estatehub.com":      http.StatusOK,
		"API.EstateHub.com:8443": http.StatusOK,
		"evil.example.com":       http.StatusForbidden,
	}
	for host, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("host %q status = %d, want %d", host, rec.Code, want)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://www.estatehub.com"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/blacklist/check", nil)
	req.Header.Set("Origin", "https://www.estatehub.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://www.estatehub.com" {
		t.Fatalf("Allow-Origin = %q for an allowed origin", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/properties/public", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q for a foreign origin, want none", got)
	}
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	resolver := clientip.Resolver{}

	t.Run("no client", func(t *testing.T) {
		handler := NewRedisRateLimiter(nil, resolver, log.New(io.Discard)).Middleware(okHandler)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("unreachable redis", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
		defer rdb.Close()
		handler := NewRedisRateLimiter(rdb, resolver, log.New(io.Discard)).Middleware(okHandler)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}
