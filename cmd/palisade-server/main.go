// Package main is the entry point for the Palisade forum server.
// Palisade is an invite-only community forum with a built-in security
// event log, IP banning and per-IP rate limiting.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/palisade-forum/palisade/internal/config"
	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/handler"
	"github.com/palisade-forum/palisade/internal/lock"
	"github.com/palisade-forum/palisade/internal/metrics"
	"github.com/palisade-forum/palisade/internal/pkg/crypto"
	"github.com/palisade-forum/palisade/internal/ratelimit"
	"github.com/palisade-forum/palisade/internal/repository"
	"github.com/palisade-forum/palisade/internal/repository/postgres"
	"github.com/palisade-forum/palisade/internal/repository/sqlite"
	"github.com/palisade-forum/palisade/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Palisade forum server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Forum database (embedded).
	dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
	dbCfg.JournalMode = cfg.Database.JournalMode
	dbCfg.BusyTimeout = cfg.Database.BusyTimeout
	dbCfg.CacheSize = cfg.Database.CacheSize
	dbCfg.SynchronousMode = cfg.Database.SynchronousMode

	db, err := sqlite.NewDB(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// SIEM event backend: embedded by default, PostgreSQL for central
	// aggregation across nodes.
	var eventRepo repository.EventRepository
	if cfg.Database.IsEmbedded() {
		eventRepo = sqlite.NewEventRepository(db)
	} else {
		archive, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to event archive: %w", err)
		}
		defer archive.Close()

		if err := archive.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate event archive: %w", err)
		}
		eventRepo = postgres.NewEventRepository(archive)
	}

	// Distributed lock for key redemption; in-process when single-node.
	var locker lock.Locker
	if cfg.Redis.Enabled {
		redisLocker, err := lock.NewRedisLocker(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using redis locking")
	} else {
		locker = lock.NewMemoryLocker()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	userRepo := sqlite.NewUserRepository(db)
	threadRepo := sqlite.NewThreadRepository(db)
	replyRepo := sqlite.NewReplyRepository(db)
	keyRepo := sqlite.NewAccessKeyRepository(db)
	banRepo := sqlite.NewIPBanRepository(db)
	statsRepo := sqlite.NewStatsRepository(db)

	events := service.NewEventService(eventRepo, locker, m, cfg.SIEM.Retention, cfg.SIEM.QueryMaxLimit, logger)
	events.StartRetentionLoop(time.Hour)
	defer events.Stop()

	sessions := service.NewSessionService(cfg.Auth.SessionTTL, m, logger)
	sessions.StartJanitor(time.Minute)
	defer sessions.Stop()

	keys := service.NewAccessKeyService(keyRepo, locker, logger)
	users := service.NewUserService(userRepo, keys, sessions, events, m, cfg.Auth, cfg.Forum.RequireRegistrationKey, logger)
	threads := service.NewThreadService(threadRepo, replyRepo, events, logger)
	bans := service.NewIPBanService(banRepo, events, m, logger)
	stats := service.NewStatsService(statsRepo, events, sessions, logger)

	if cfg.Bootstrap.Enabled {
		if err := bootstrapAdmin(ctx, cfg, userRepo, keyRepo, events, logger); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	var globalLimiter, authLimiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		globalLimiter = ratelimit.NewLimiter(cfg.RateLimit.GlobalMax, cfg.RateLimit.Window)
		globalLimiter.StartJanitor(time.Minute)
		defer globalLimiter.Stop()

		authLimiter = ratelimit.NewLimiter(cfg.RateLimit.AuthMax, cfg.RateLimit.Window)
		authLimiter.StartJanitor(time.Minute)
		defer authLimiter.Stop()
	}

	mw := handler.NewMiddleware(handler.MiddlewareConfig{
		Sessions:      sessions,
		Users:         users,
		Bans:          bans,
		Events:        events,
		Metrics:       m,
		GlobalLimiter: globalLimiter,
		AuthLimiter:   authLimiter,
		CookieName:    cfg.Auth.CookieName,
		TrustProxy:    cfg.Server.TrustProxyHeader,
		Logger:        logger,
	})

	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		Users:        users,
		Sessions:     sessions,
		Events:       events,
		Middleware:   mw,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
		SessionTTL:   cfg.Auth.SessionTTL,
		Logger:       logger,
	})

	threadHandler := handler.NewThreadHandler(threads, mw, logger)

	adminHandler := handler.NewAdminHandler(handler.AdminHandlerConfig{
		Users:      users,
		Keys:       keys,
		Threads:    threads,
		Bans:       bans,
		Events:     events,
		Stats:      stats,
		Middleware: mw,
		Logger:     logger,
	})

	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}

	router := handler.NewRouter(handler.RouterConfig{
		Middleware:     mw,
		AuthHandler:    authHandler,
		ThreadHandler:  threadHandler,
		AdminHandler:   adminHandler,
		MetricsHandler: metricsHandler,
		HealthCheck: func() error {
			return db.Health(context.Background())
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      http.MaxBytesHandler(router.Handler(), cfg.Server.MaxBodySize),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// bootstrapAdmin provisions the initial admin account on an empty user
// table. When no password is configured a random one is generated and
// printed to the console exactly once.
func bootstrapAdmin(
	ctx context.Context,
	cfg *config.Config,
	userRepo repository.UserRepository,
	keyRepo repository.AccessKeyRepository,
	events *service.EventService,
	logger zerolog.Logger,
) error {
	existing, err := userRepo.List(ctx, repository.ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to check for existing users: %w", err)
	}
	if existing.Total > 0 {
		return nil
	}

	password := cfg.Bootstrap.AdminPassword
	generated := false
	if password == "" {
		password, err = crypto.GenerateRandomPassword()
		if err != nil {
			return err
		}
		generated = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	admin := domain.NewUser(cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminEmail, string(hash))
	admin.IsAdmin = true
	admin.HasPrivateAccess = true
	admin.EmailVerified = true

	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	events.Record(ctx, &domain.Event{
		Type:     domain.EventAdminCreated,
		Severity: domain.SeverityHigh,
		UserID:   &admin.ID,
		Username: admin.Username,
		Details:  map[string]any{"bootstrap": true},
	})

	// One starter invite key so the first real member can register even
	// when keys are required.
	code, err := crypto.GenerateAccessKeyCode()
	if err != nil {
		return err
	}
	key := &domain.AccessKey{
		Code:      code,
		IsActive:  true,
		CreatedBy: admin.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := keyRepo.Create(ctx, key); err != nil {
		return fmt.Errorf("failed to create bootstrap access key: %w", err)
	}

	logger.Info().Str("username", admin.Username).Msg("created bootstrap admin account")
	fmt.Printf("bootstrap registration key: %s\n", code)
	if generated {
		// Printed to stdout rather than the log so it does not end up
		// in aggregated log storage.
		fmt.Printf("bootstrap admin password (shown once): %s\n", password)
	}
	return nil
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).
			With().Timestamp().Logger()
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
