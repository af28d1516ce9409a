// Command redlined runs the contract review decision engine: an HTTP
// server exposing decision writes, projection reads and redline export
// over a pluggable store backend.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lexroom/redline/pkg/api"
	"github.com/lexroom/redline/pkg/audit"
	"github.com/lexroom/redline/pkg/auth"
	"github.com/lexroom/redline/pkg/cache"
	"github.com/lexroom/redline/pkg/clause"
	"github.com/lexroom/redline/pkg/config"
	"github.com/lexroom/redline/pkg/conflict"
	"github.com/lexroom/redline/pkg/decision"
	"github.com/lexroom/redline/pkg/observability"
	"github.com/lexroom/redline/pkg/permission"
	"github.com/lexroom/redline/pkg/review"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()

	clauses, decisions, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	projections := buildCache(cfg, logger)

	var provider *observability.Provider
	if cfg.OTLPEndpoint != "" {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err = observability.New(ctx, obsCfg)
		if err != nil {
			return fmt.Errorf("init observability: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	} else {
		provider, err = observability.New(ctx, &observability.Config{Enabled: false})
		if err != nil {
			return fmt.Errorf("init observability: %w", err)
		}
	}

	profile, err := loadActiveProfile(cfg, logger)
	if err != nil {
		return err
	}

	// Role lookups are served by the external user service in production.
	// The static directory carries the active profile's approver roster.
	directory := permission.StaticDirectory{}
	var gateOpts []permission.GateOption
	var serverOpts []api.ServerOption
	detector := conflict.NewDetector()
	if profile != nil {
		for _, a := range profile.Escalation.Approvers {
			directory[a.UserID] = permission.Role{Name: a.Name, Admin: a.Admin, CanApprove: a.CanApprove}
		}
		gateOpts = append(gateOpts, permission.WithAllowedReasons(profile.Escalation.AllowedReasons))
		if profile.Conflict.WarnAfterSeconds > 0 {
			detector = detector.WithWarnWindow(time.Duration(profile.Conflict.WarnAfterSeconds) * time.Second)
		}
		if profile.Escalation.DefaultAssigneeID != "" {
			serverOpts = append(serverOpts, api.WithDefaultAssignee(profile.Escalation.DefaultAssigneeID))
		}
	}
	gate := permission.NewGate(directory, gateOpts...)

	service := review.NewService(
		clauses,
		decisions,
		gate,
		projections,
		detector,
		review.WithAudit(audit.NewLogger()),
		review.WithMetrics(provider.Engine()),
		review.WithLogger(logger),
	)

	// The rate limiter sits inside auth so it buckets by authenticated
	// actor rather than by remote address.
	server := api.NewServer(service, serverOpts...)
	handler := api.Chain(server.Routes(),
		auth.RequestIDMiddleware,
		api.LoggingMiddleware(logger),
		api.TelemetryMiddleware(provider),
		auth.CORSMiddleware(nil),
		auth.NewMiddleware(auth.NewJWTVerifier([]byte(cfg.JWTSecret))),
		auth.RateLimitMiddleware(auth.NewVisitorLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)),
		api.IdempotencyMiddleware(api.NewIdempotencyStore(24*time.Hour)),
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("redlined listening", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// loadActiveProfile resolves the review profile named by REVIEW_PROFILE.
// Without one the engine runs with built-in defaults: any escalation
// reason, no default assignee, warn on any stale snapshot.
func loadActiveProfile(cfg *config.Config, logger *slog.Logger) (*config.ReviewProfile, error) {
	if cfg.ProfileCode == "" {
		if profiles, err := config.LoadAllProfiles(cfg.ProfilesDir); err == nil && len(profiles) > 0 {
			logger.Info("review profiles available but none selected", "dir", cfg.ProfilesDir, "count", len(profiles))
		}
		return nil, nil
	}
	profile, err := config.LoadProfile(cfg.ProfilesDir, cfg.ProfileCode)
	if err != nil {
		return nil, fmt.Errorf("load review profile: %w", err)
	}
	logger.Info("review profile active",
		"code", profile.Code,
		"approvers", len(profile.Escalation.Approvers),
		"allowed_reasons", len(profile.Escalation.AllowedReasons),
	)
	return profile, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// buildStores selects the persistence backend. The cleanup func closes
// any opened database handle.
func buildStores(ctx context.Context, cfg *config.Config) (clause.Store, decision.Store, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case "memory":
		clauses := clause.NewMemoryStore()
		return clauses, decision.NewMemoryStore(clauses), noop, nil

	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		clauses, err := clause.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, nil, noop, fmt.Errorf("init clause store: %w", err)
		}
		decisions, err := decision.NewSQLiteStore(db, clauses)
		if err != nil {
			db.Close()
			return nil, nil, noop, fmt.Errorf("init decision store: %w", err)
		}
		return clauses, decisions, func() { db.Close() }, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, noop, fmt.Errorf("ping postgres: %w", err)
		}
		clauses, err := clause.NewPostgresStore(db)
		if err != nil {
			db.Close()
			return nil, nil, noop, fmt.Errorf("init clause store: %w", err)
		}
		decisions, err := decision.NewPostgresStore(db, clauses)
		if err != nil {
			db.Close()
			return nil, nil, noop, fmt.Errorf("init decision store: %w", err)
		}
		return clauses, decisions, func() { db.Close() }, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func buildCache(cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cache.WithTTL(cfg.CacheTTL))
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return cache.NewRedisCache(client, cfg.CacheTTL, logger)
}
