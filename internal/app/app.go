// Package app bootstraps the battle server: configuration, logging,
// stores, collaborator clients and the HTTP/WebSocket surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizbattle/battle-server/internal/battle"
	"github.com/quizbattle/battle-server/internal/battle/queue"
	"github.com/quizbattle/battle-server/internal/config"
	"github.com/quizbattle/battle-server/internal/db"
	"github.com/quizbattle/battle-server/internal/logging"
	"github.com/quizbattle/battle-server/internal/problem"
	"github.com/quizbattle/battle-server/internal/server"
	"github.com/quizbattle/battle-server/internal/store"
	"github.com/quizbattle/battle-server/internal/user"
	"github.com/quizbattle/battle-server/pkg/ws"
)

// Application aggregates shared infrastructure.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps config, logger, stores and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	var pool *pgxpool.Pool
	if cfg.Postgres.Enabled() {
		var err error
		pool, err = db.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
	}

	var redisClient *redis.Client
	var kv store.KV
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		kv = store.NewRedis(redisClient)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("queue store: redis")
	} else {
		kv = store.NewMemory()
		logger.Warn().Msg("queue store: in-memory, single instance only")
	}

	// Problem source and user directory are the two collaborator
	// interfaces; both fall back to process-local implementations when
	// no database is configured.
	var source problem.Source
	var directory user.Directory
	if pool != nil {
		source = problem.NewPostgresSource(pool)
		directory = user.NewPostgresDirectory(pool, logger)
		logger.Info().Msg("collaborators: postgres")
	} else {
		fileSource, err := problem.NewFileSource(cfg.Game.ProblemsFile)
		if err != nil {
			return nil, err
		}
		source = fileSource
		directory = user.NewMemoryDirectory(nil)
		logger.Warn().Str("file", cfg.Game.ProblemsFile).Msg("collaborators: file source + in-memory directory")
	}

	hub := ws.NewHub(logger)
	matchQueue := queue.New(kv, logger, battle.CancelledSkipInc)
	registry := battle.NewRegistry(kv, logger)
	randomizer := problem.NewRandomizer(nil)

	handler := battle.NewHandler(
		matchQueue,
		registry,
		source,
		directory,
		randomizer,
		hub,
		battle.Options{ProblemsPerMatch: cfg.Game.ProblemsPerMatch},
		logger,
	)

	var pingers []server.Pinger
	if pool != nil {
		pingers = append(pingers, server.PoolPinger(pool))
	}
	if redisClient != nil {
		rc := redisClient
		pingers = append(pingers, func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		})
	}

	httpServer := server.NewHTTPServer(cfg, logger, handler.ServeWS, pingers...)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   httpServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
