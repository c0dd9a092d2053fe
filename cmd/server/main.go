package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AnshRaj112/estatehub-backend/internal/config"
	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/handlers"
	"github.com/AnshRaj112/estatehub-backend/internal/middleware"
	"github.com/AnshRaj112/estatehub-backend/internal/routes"
	"github.com/AnshRaj112/estatehub-backend/internal/services"
	"github.com/AnshRaj112/estatehub-backend/pkg/clientip"
)

const memoryViolationCapacity = 1000

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}
	cfg := config.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server terminated", "err", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Info("Connecting to PostgreSQL...")
	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
	if err != nil {
		return err
	}
	defer db.Close()
	store := database.NewPostgresStore(db)

	// Redis backs admin sessions and the shared rate limit; both degrade without it
	logger.Info("Connecting to Redis...")
	var rdb *redis.Client
	if client, err := database.ConnectRedis(ctx, cfg.RedisURI); err != nil {
		logger.Warn("Redis unavailable, admin sessions and shared rate limiting disabled", "err", err)
	} else {
		rdb = client
		defer rdb.Close()
	}

	violations, mongoClient := setupViolations(ctx, cfg, logger)
	defer func() {
		if err := database.DisconnectMongo(mongoClient); err != nil {
			logger.Warn("error disconnecting MongoDB", "err", err)
		}
	}()

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			logger.Error("JWT_SECRET is not set, admin JWTs will be rejected and only admin sessions accepted")
		} else {
			logger.Warn("JWT_SECRET is not set, admin JWTs disabled")
		}
	}

	resolver := clientip.Resolver{TrustProxy: cfg.TrustProxy}
	blacklist := services.NewBlacklistService(store, services.BlacklistOptions{
		CacheTTL:       cfg.CheckCacheTTL,
		FilterCacheTTL: cfg.ContentFilterCacheTTL,
		RemoteTimeout:  cfg.RemoteCallTimeout,
		Logger:         logger,
	})
	feed := services.NewListingMediator(store, blacklist, services.ListingOptions{
		DefaultLimit:      cfg.FeedDefaultLimit,
		MaxLimit:          cfg.FeedMaxLimit,
		MaxBackfillRounds: cfg.FeedMaxBackfillRounds,
		Logger:            logger,
	})

	h := handlers.New(handlers.Deps{
		Blacklist:  blacklist,
		Feed:       feed,
		Entries:    services.NewEntryService(store, blacklist, logger),
		Auth:       services.NewAdminAuthenticator(cfg.JWTSecret, services.NewAdminSessionStore(rdb), logger),
		Violations: violations,
		Inquiries:  store,
		Resolver:   resolver,
		Logger:     logger,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → FormRateLimit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		logger.Info("✅ Production security enabled", "host", cfg.AllowedHost)
	} else {
		r.Use(middleware.NewRedisRateLimiter(rdb, resolver, logger).Middleware)
	}

	routes.SetupRoutes(r, h, middleware.BlockBlacklistedIP(blacklist, violations, resolver, logger))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 EstateHub backend running", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupViolations uses MongoDB when MONGODB_URI is set and reachable,
// otherwise an in-process log. The returned client may be nil.
func setupViolations(ctx context.Context, cfg *config.Config, logger *log.Logger) (services.ViolationLog, *mongo.Client) {
	if cfg.MongoURI == "" {
		logger.Info("MONGODB_URI not set, keeping violations in memory")
		return services.NewMemoryViolationLog(memoryViolationCapacity), nil
	}

	logger.Info("Connecting to MongoDB...")
	client, mdb, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.Warn("MongoDB unavailable, keeping violations in memory", "err", err)
		return services.NewMemoryViolationLog(memoryViolationCapacity), nil
	}

	violations := services.NewMongoViolationLog(mdb, logger)
	violations.StartCleanup(ctx, cfg.ViolationCleanupInterval, cfg.ViolationRetention)
	logger.Info("✅ Violation cleanup started", "every", cfg.ViolationCleanupInterval, "retention", cfg.ViolationRetention)
	return violations, client
}
