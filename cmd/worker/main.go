// AngelaMos | 2026
// main.go

// Command worker consumes queued account deletions and runs the periodic
// sweep over deletion requests that never completed.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelamos/soundshare/internal/auth"
	"github.com/angelamos/soundshare/internal/config"
	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/deletion"
	"github.com/angelamos/soundshare/internal/ledger"
	"github.com/angelamos/soundshare/internal/queue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	noSweep := flag.Bool("no-sweep", false, "only consume deletion jobs")
	flag.Parse()

	if err := run(*configPath, !*noSweep); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, sweep bool) error {
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

	logger := setupLogger(cfg.Log).With("component", "worker")
	slog.SetDefault(logger)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	jobs := queue.New(redis.Client, redis.Key(cfg.Deletion.QueueKey))
	purge := queue.NewPurgeStream(redis.Client, redis.Key(cfg.Deletion.PurgeStream))

	engine := deletion.NewEngine(
		db,
		purge,
		cfg.Accounts.AnonymizedEmailDomain,
		logger,
	)
	worker := deletion.NewWorker(
		jobs,
		engine,
		cfg.Deletion.DequeueTimeout,
		cfg.Deletion.JobTimeout,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	if sweep {
		sweeper := ledger.NewSweeper(
			ledger.NewService(db.DB, db, logger),
			cfg.Deletion.SweepInterval,
			cfg.Deletion.StaleAfter,
			logger,
		)
		g.Go(func() error {
			return sweeper.Run(gctx)
		})

		tokens := auth.NewRepository(db.DB)
		g.Go(func() error {
			return pruneSessions(gctx, tokens, cfg.Deletion.SweepInterval, logger)
		})
	}

	logger.Info("worker started",
		"queue", jobs.Key(),
		"sweep", sweep,
	)

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

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

	logger.Info("worker stopped")
	return runErr
}

const sessionGrace = 24 * time.Hour

// pruneSessions drops refresh tokens that expired or were revoked more than
// sessionGrace ago, and every token of an anonymised account.
func pruneSessions(
	ctx context.Context,
	tokens auth.Repository,
	interval time.Duration,
	logger *slog.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := tokens.Prune(ctx, time.Now().Add(-sessionGrace))
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("prune sessions failed", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.Info("pruned sessions", "count", n)
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
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
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
