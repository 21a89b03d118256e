package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-session-core/internal/app"
	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/database"
	"github.com/sandeepkv93/credential-session-core/internal/health"
	"github.com/sandeepkv93/credential-session-core/internal/http/handler"
	"github.com/sandeepkv93/credential-session-core/internal/http/router"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

// Logging carries the process logger and the OTel log provider behind it,
// which is nil unless OTel logs are enabled.
type Logging struct {
	Logger   *slog.Logger
	Provider *sdklog.LoggerProvider
}

// Core is the storage and service graph without the HTTP surface. The admin
// commands run against it.
type Core struct {
	Config      *config.Config
	Logger      *slog.Logger
	DB          *gorm.DB
	Credentials *service.CredentialService
	Sessions    *service.SessionService
}

var StorageSet = wire.NewSet(
	provideDB,
	provideRedis,
)

var ServiceSet = wire.NewSet(
	repository.NewCredentialRepository,
	repository.NewSessionRepository,
	provideHasher,
	wire.Bind(new(security.PasswordHasher), new(*security.Argon2Hasher)),
	providePasswordPolicy,
	provideLocks,
	provideRetryPolicy,
	provideClock,
	provideSessionSettings,
	service.NewCredentialService,
	service.NewSessionService,
	wire.Bind(new(service.CredentialStore), new(*service.CredentialService)),
	wire.Bind(new(service.SessionManager), new(*service.SessionService)),
)

var HTTPSet = wire.NewSet(
	provideLoginAttempts,
	provideLoginPolicy,
	service.NewAuthService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	provideCookieSettings,
	handler.NewAuthHandler,
	handler.NewMeHandler,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
	provideSweeper,
)

func provideLogging(ctx context.Context, cfg *config.Config) (*Logging, error) {
	logger, lp, err := observability.NewLogger(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &Logging{Logger: logger, Provider: lp}, nil
}

func provideLogger(l *Logging) *slog.Logger { return l.Logger }

func provideObservability(ctx context.Context, cfg *config.Config, l *Logging) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, l.Logger, l.Provider)
}

func provideDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(cfg, db, logger); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			logger.Error("database close failed", "error", err)
		}
	}
	return db, cleanup, nil
}

// provideRedis returns a nil client when REDIS_ADDR is unset.
func provideRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}
	return client, cleanup, nil
}

func provideHasher(cfg *config.Config) *security.Argon2Hasher {
	params := security.DefaultArgon2Params()
	params.MemoryKiB = cfg.Argon2MemoryKiB
	params.Iterations = cfg.Argon2Iterations
	params.Parallelism = cfg.Argon2Parallelism
	return security.NewArgon2Hasher(params, cfg.HashConcurrency)
}

func providePasswordPolicy(cfg *config.Config) security.PasswordPolicy {
	return security.PasswordPolicy{MinLength: cfg.PasswordMinLength, MaxLength: cfg.PasswordMaxLength}
}

func provideLocks() *service.CredentialLocks { return service.NewCredentialLocks(0) }

func provideRetryPolicy(cfg *config.Config) service.RetryPolicy {
	return service.RetryPolicy{MaxAttempts: cfg.StorageRetryMaxAttempts, InitialBackoff: cfg.StorageRetryInitialBackoff}
}

func provideClock() service.Clock { return service.SystemClock{} }

func provideSessionSettings(cfg *config.Config) service.SessionSettings {
	return service.SessionSettings{
		DefaultTTL: cfg.SessionDefaultTTL,
		MaxTTL:     cfg.SessionMaxTTL,
		SweepGrace: cfg.SessionSweepGrace,
		Pepper:     cfg.SessionTokenPepper,
	}
}

func provideLoginAttempts(cfg *config.Config, client redis.UniversalClient, clock service.Clock) service.LoginAttemptStore {
	if client == nil {
		return service.NewInMemoryLoginAttemptStore(clock)
	}
	return service.NewRedisLoginAttemptStore(client, cfg.RedisPrefix+":login")
}

func provideLoginPolicy(cfg *config.Config) service.LoginPolicy {
	return service.LoginPolicy{MaxFailures: cfg.LoginMaxFailures, Window: cfg.LoginFailureWindow}
}

func provideCookieSettings(cfg *config.Config) handler.CookieSettings {
	return handler.CookieSettings{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure}
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.NewRedisChecker(client))
	}
	return health.NewProbeRunner(2*time.Second, time.Second, checkers...)
}

func provideRouterDependencies(
	cfg *config.Config,
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	meHandler *handler.MeHandler,
	sessions *service.SessionService,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		MeHandler:         meHandler,
		Sessions:          sessions,
		SessionCookieName: cfg.SessionCookieName,
		AuthRateLimitRPM:  cfg.AuthRateLimitRPM,
		APIRateLimitRPM:   cfg.APIRateLimitRPM,
		Readiness:         readiness,
		Logger:            logger,
		EnableOTelHTTP:    cfg.OTELHTTPEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideSweeper(cfg *config.Config, sessions *service.SessionService, logger *slog.Logger) *service.Sweeper {
	return service.NewSweeper(sessions, cfg.SessionSweepInterval, logger)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	sweeper *service.Sweeper,
	runtime *observability.Runtime,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, sweeper, runtime, readiness, nil)
}

func provideCore(
	cfg *config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	credentials *service.CredentialService,
	sessions *service.SessionService,
) *Core {
	return &Core{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Credentials: credentials,
		Sessions:    sessions,
	}
}
