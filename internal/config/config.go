package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	minCheckCacheTTL = 30 * time.Second
	maxCheckCacheTTL = 10 * time.Minute
)

type Config struct {
	PostgresURI    string
	RedisURI       string
	MongoURI       string // optional: violations fall back to memory when empty
	JWTSecret      string
	Port           string
	FrontendURL    string
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s); must include production frontend origin
	Host           string   // Raw HOST env (e.g. https://api.estatehub.com)
	AllowedHost    string   // Hostname only for strict host check (production only)
	TrustProxy     bool     // read X-Forwarded-For / X-Real-IP for IP checks
	Environment    string   // ENV: production, development, etc.
	LogLevel       string

	CheckCacheTTL         time.Duration // clamped to 30s-10m
	ContentFilterCacheTTL time.Duration
	RemoteCallTimeout     time.Duration

	FeedDefaultLimit      int
	FeedMaxLimit          int
	FeedMaxBackfillRounds int

	ViolationRetention       time.Duration
	ViolationCleanupInterval time.Duration
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	// AllowedHost is only set in production; host check is skipped in development
	var allowedHost string
	if env == "production" {
		allowedHost = hostname(host)
	}

	// CORS: allow multiple origins so the marketing site and the admin dashboard both work
	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", ""), getEnv("FRONTEND_URL_3", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	// When HOST is a backend host (e.g. api.estatehub.com), always add https://domain and https://www.domain
	// so OPTIONS preflight gets 200 even if ENV isn't set on the server
	if domain := parentDomain(host); domain != "" {
		for _, origin := range []string{"https://" + domain, "https://www." + domain} {
			if !containsOrigin(allowedOrigins, origin) {
				allowedOrigins = append(allowedOrigins, origin)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	feedMax := getInt("FEED_MAX_LIMIT", 100)
	if feedMax <= 0 {
		feedMax = 100
	}
	feedDefault := getInt("FEED_DEFAULT_LIMIT", 50)
	if feedDefault <= 0 || feedDefault > feedMax {
		feedDefault = min(50, feedMax)
	}

	return &Config{
		PostgresURI:    getEnv("POSTGRES_URI", "postgres://localhost:5432/estatehub?sslmode=disable"),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		MongoURI:       getEnv("MONGODB_URI", getEnv("MONGO_URI", "")),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		Host:           host,
		AllowedHost:    allowedHost,
		TrustProxy:     getBool("TRUST_PROXY", false),
		Environment:    env,
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		AllowedOrigins: allowedOrigins,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),

		CheckCacheTTL:         clampDuration(getDuration("CHECK_CACHE_TTL", 2*time.Minute), minCheckCacheTTL, maxCheckCacheTTL),
		ContentFilterCacheTTL: getDuration("CONTENT_FILTER_CACHE_TTL", 15*time.Minute),
		RemoteCallTimeout:     getDuration("REMOTE_CALL_TIMEOUT", 3*time.Second),

		FeedDefaultLimit:      feedDefault,
		FeedMaxLimit:          feedMax,
		FeedMaxBackfillRounds: getInt("FEED_MAX_BACKFILL_ROUNDS", 5),

		ViolationRetention:       time.Duration(getInt("VIOLATION_RETENTION_HOURS", 6)) * time.Hour,
		ViolationCleanupInterval: getDuration("VIOLATION_CLEANUP_INTERVAL", time.Hour),
	}
}

// hostname strips scheme, path and port: "https://api.example.com:8443/x" -> "api.example.com".
func hostname(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSpace(host)
}

// parentDomain turns "https://api.example.com:8443/x" into "example.com".
// Returns "" for localhost and bare hostnames.
func parentDomain(host string) string {
	host = hostname(host)
	if host == "" || host == "localhost" {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[1:], ".")
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return b
}

// getDuration accepts Go durations ("90s", "2m") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
