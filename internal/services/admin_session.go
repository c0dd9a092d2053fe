package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// AdminSessionDuration is 7 days
	AdminSessionDuration = 7 * 24 * time.Hour
	// AdminSessionKeyPrefix is the Redis key prefix for admin sessions
	AdminSessionKeyPrefix = "admin_session:"
	// AdminToSessionKeyPrefix is the Redis key prefix for admin->session mapping
	AdminToSessionKeyPrefix = "admin_to_session:"
)

// AdminSessionStore reads admin sessions written by the admin dashboard's
// sign-in flow.
type AdminSessionStore struct {
	rdb *redis.Client
}

// NewAdminSessionStore wraps a connected Redis client.
func NewAdminSessionStore(rdb *redis.Client) *AdminSessionStore {
	return &AdminSessionStore{rdb: rdb}
}

// ValidateAdminSession checks if a session token is valid and returns the admin ID.
// A missing key is not an error. Valid sessions are extended.
func (s *AdminSessionStore) ValidateAdminSession(ctx context.Context, sessionToken string) (string, bool, error) {
	if sessionToken == "" || s == nil || s.rdb == nil {
		return "", false, nil
	}

	adminIDStr, err := s.rdb.Get(ctx, AdminSessionKeyPrefix+sessionToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read admin session: %w", err)
	}

	adminID, err := uuid.Parse(adminIDStr)
	if err != nil {
		return "", false, fmt.Errorf("admin session holds malformed id: %w", err)
	}

	// Sliding expiry; a failed refresh doesn't invalidate the session
	_ = s.refreshAdminSession(ctx, sessionToken, adminID.String())

	return adminID.String(), true, nil
}

// refreshAdminSession extends the session expiration by 7 days from now.
func (s *AdminSessionStore) refreshAdminSession(ctx context.Context, sessionToken, adminID string) error {
	if sessionToken == "" {
		return fmt.Errorf("session token is empty")
	}

	// Extend both keys by 7 days from now
	if err := s.rdb.Expire(ctx, AdminSessionKeyPrefix+sessionToken, AdminSessionDuration).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, AdminToSessionKeyPrefix+adminID, AdminSessionDuration).Err()
}
