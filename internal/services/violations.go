package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	violationsCollection = "violations"
	maxViolationPage     = 100
)

// ViolationLog is the audit trail of refused requests.
type ViolationLog interface {
	Record(ctx context.Context, v models.Violation) error
	Recent(ctx context.Context, limit int) ([]models.Violation, error)
}

// ContentFingerprint identifies rejected content in the audit log without
// storing it twice. Formatting and case differences hash the same.
func ContentFingerprint(content string) string {
	return strconv.FormatUint(xxhash.Sum64String(NormalizeWords(content)), 16)
}

// MongoViolationLog stores violations in MongoDB.
type MongoViolationLog struct {
	coll   *mongo.Collection
	logger *log.Logger
}

// NewMongoViolationLog uses the "violations" collection of db.
func NewMongoViolationLog(db *mongo.Database, logger *log.Logger) *MongoViolationLog {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &MongoViolationLog{coll: db.Collection(violationsCollection), logger: logger.WithPrefix("violations")}
}

// Record records a violation
func (l *MongoViolationLog) Record(ctx context.Context, v models.Violation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	_, err := l.coll.InsertOne(ctx, v)
	return err
}

// Recent returns violations, sorted by most recent
func (l *MongoViolationLog) Recent(ctx context.Context, limit int) ([]models.Violation, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := l.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(clampViolationLimit(limit))))
	if err != nil {
		return nil, fmt.Errorf("find violations: %w", err)
	}
	defer cursor.Close(ctx)

	violations := make([]models.Violation, 0)
	if err = cursor.All(ctx, &violations); err != nil {
		return nil, fmt.Errorf("decode violations: %w", err)
	}
	return violations, nil
}

// CleanupOlderThan removes violations older than age.
func (l *MongoViolationLog) CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoffTime := time.Now().Add(-age)
	result, err := l.coll.DeleteMany(ctx, bson.M{
		"created_at": bson.M{
			"$lt": cutoffTime,
		},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// StartCleanup periodically removes old violations until ctx is cancelled.
// It runs once immediately.
func (l *MongoViolationLog) StartCleanup(ctx context.Context, interval, age time.Duration) {
	if interval <= 0 {
		interval = time.Hour // Default: run every hour
	}
	if age <= 0 {
		age = 6 * time.Hour // Default: delete violations older than 6 hours
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			deleted, err := l.CleanupOlderThan(ctx, age)
			if err != nil {
				l.logger.Error("violation cleanup failed", "err", err)
			} else if deleted > 0 {
				l.logger.Info("cleaned up old violations", "deleted", deleted, "older_than", age)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// MemoryViolationLog keeps the most recent violations in memory. It is used
// when MongoDB isn't configured.
type MemoryViolationLog struct {
	mu         sync.Mutex
	violations []models.Violation
	capacity   int
}

// NewMemoryViolationLog keeps up to capacity violations.
func NewMemoryViolationLog(capacity int) *MemoryViolationLog {
	if capacity <= 0 {
		capacity = maxViolationPage
	}
	return &MemoryViolationLog{capacity: capacity}
}

func (l *MemoryViolationLog) Record(_ context.Context, v models.Violation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	l.violations = append(l.violations, v)
	if len(l.violations) > l.capacity {
		l.violations = l.violations[len(l.violations)-l.capacity:]
	}
	return nil
}

func (l *MemoryViolationLog) Recent(_ context.Context, limit int) ([]models.Violation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit = clampViolationLimit(limit)
	out := make([]models.Violation, 0, min(limit, len(l.violations)))
	for i := len(l.violations) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.violations[i])
	}
	return out, nil
}

func clampViolationLimit(limit int) int {
	if limit <= 0 || limit > maxViolationPage {
		return maxViolationPage
	}
	return limit
}
