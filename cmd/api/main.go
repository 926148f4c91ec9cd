// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/soundshare/internal/account"
	"github.com/angelamos/soundshare/internal/admin"
	"github.com/angelamos/soundshare/internal/auth"
	"github.com/angelamos/soundshare/internal/config"
	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/deletion"
	"github.com/angelamos/soundshare/internal/health"
	"github.com/angelamos/soundshare/internal/ledger"
	"github.com/angelamos/soundshare/internal/mail"
	"github.com/angelamos/soundshare/internal/middleware"
	"github.com/angelamos/soundshare/internal/migrate"
	"github.com/angelamos/soundshare/internal/queue"
	"github.com/angelamos/soundshare/internal/sameuser"
	"github.com/angelamos/soundshare/internal/server"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	if cfg.Database.AutoMigrate {
		if err := migrate.Up(ctx, cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	validate := account.NewValidator()

	accountRepo := account.NewRepository(db.DB)
	accountSvc := account.NewService(accountRepo, cfg.Accounts)
	accountHandler := account.NewHandler(accountSvc)

	resolver := sameuser.NewResolver(
		db.DB,
		db,
		cfg.Accounts.DuplicateEmailDomain,
		logger,
	)
	sameUserHandler := sameuser.NewHandler(resolver)

	notifier := mail.NewNotifier(
		mail.NewSender(cfg.Mail, logger),
		resolver,
		accountRepo,
		mail.NotifierConfig{
			AppName:       cfg.App.Name,
			SubjectPrefix: cfg.Mail.SubjectPrefix,
			ActivationTTL: cfg.Accounts.ActivationTTL,
		},
	)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(
		authRepo,
		jwtManager,
		accountSvc,
		redis.Client,
		auth.ServiceConfig{
			Mailer:        notifier,
			Reconciler:    resolver,
			ActivationTTL: cfg.Accounts.ActivationTTL,
			KeyPrefix:     cfg.Redis.KeyPrefix,
		},
	)
	authHandler := auth.NewHandler(authSvc, validate)

	ledgerSvc := ledger.NewService(db.DB, db, logger)
	ledgerHandler := ledger.NewHandler(ledgerSvc, cfg.Deletion.StaleAfter)

	jobs := queue.New(redis.Client, redis.Key(cfg.Deletion.QueueKey))
	purge := queue.NewPurgeStream(redis.Client, redis.Key(cfg.Deletion.PurgeStream))

	engine := deletion.NewEngine(
		db,
		purge,
		cfg.Accounts.AnonymizedEmailDomain,
		logger,
	)
	dispatcher := deletion.NewDispatcher(engine, jobs, cfg.Deletion.Async)
	deletionSvc := deletion.NewService(
		accountRepo,
		ledgerSvc,
		dispatcher,
		notifier,
		logger,
	)
	deletionHandler := deletion.NewHandler(deletionSvc)

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Jobs:       jobs,
		Requests:   ledgerSvc,
		Tombstones: deletion.NewRepository(db.DB),
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			Logger: logger,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager, authSvc)
	adminOnly := middleware.RequireAdmin
	sensitive := middleware.Sensitive(redis.Client, middleware.PerHour(5, 5))

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, sensitive)

		deletionHandler.RegisterRoutes(r, authenticator, sensitive)
		deletionHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		accountHandler.RegisterRoutes(r, authenticator)
		accountHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		sameUserHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		ledgerHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
