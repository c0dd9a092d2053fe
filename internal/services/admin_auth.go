package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for a missing, malformed, expired or
// non-admin credential.
var ErrUnauthorized = errors.New("unauthorized")

// SessionValidator resolves an opaque session token to an admin id.
type SessionValidator interface {
	ValidateAdminSession(ctx context.Context, token string) (adminID string, ok bool, err error)
}

// AdminClaims is the JWT payload accepted for admin routes.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthenticator verifies admin bearer credentials: an HS256 JWT with an
// admin role, or a Redis-backed admin session token.
type AdminAuthenticator struct {
	secret   []byte
	sessions SessionValidator
	logger   *log.Logger
}

// NewAdminAuthenticator builds the authenticator. sessions may be nil when
// Redis isn't configured, in which case only JWTs are accepted.
func NewAdminAuthenticator(secret string, sessions SessionValidator, logger *log.Logger) *AdminAuthenticator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &AdminAuthenticator{secret: []byte(secret), sessions: sessions, logger: logger.WithPrefix("admin-auth")}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ")+1 || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// Authenticate returns the admin id behind the request's bearer credential.
func (a *AdminAuthenticator) Authenticate(r *http.Request) (string, error) {
	token, ok := BearerToken(r)
	if !ok {
		return "", ErrUnauthorized
	}
	return a.AuthenticateToken(r.Context(), token)
}

// AuthenticateToken verifies a JWT first and falls back to the session store.
func (a *AdminAuthenticator) AuthenticateToken(ctx context.Context, token string) (string, error) {
	if strings.Count(token, ".") == 2 {
		adminID, err := a.verifyJWT(token)
		if err == nil {
			return adminID, nil
		}
		a.logger.Debug("admin jwt rejected", "err", err)
	}

	if a.sessions == nil {
		return "", ErrUnauthorized
	}
	adminID, ok, err := a.sessions.ValidateAdminSession(ctx, token)
	if err != nil {
		a.logger.Error("admin session lookup failed", "err", err)
		return "", ErrUnauthorized
	}
	if !ok {
		return "", ErrUnauthorized
	}
	return adminID, nil
}

// IssueToken signs an admin JWT. Used by operators and tests; the dashboard
// normally signs in through its own session flow.
func (a *AdminAuthenticator) IssueToken(adminID string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	now := time.Now()
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AdminAuthenticator) verifyJWT(token string) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}

	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}

	switch claims.Role {
	case "admin", "superadmin":
	default:
		return "", fmt.Errorf("role %q is not an admin role", claims.Role)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
