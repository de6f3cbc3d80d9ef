// Package main provides the encounter server binary: the HTTP surface for
// starting encounters and submitting turns.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/api"
	"github.com/emberhold/encounter/internal/config"
	"github.com/emberhold/encounter/internal/game/boss"
	"github.com/emberhold/encounter/internal/game/dice"
	"github.com/emberhold/encounter/internal/game/encounter"
	"github.com/emberhold/encounter/internal/game/reward"
	"github.com/emberhold/encounter/internal/observability"
	"github.com/emberhold/encounter/internal/server"
	"github.com/emberhold/encounter/internal/service"
	"github.com/emberhold/encounter/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	// Every random draw in the engine flows through this source; the roller
	// logs each draw at debug for combat auditing.
	src := dice.NewRoller(dice.NewCryptoSource(), logger)

	logger.Info("starting encounter server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("session_store", cfg.Encounter.Store),
	)

	// Load boss content
	contentStart := time.Now()
	bosses, err := boss.LoadDirectory(cfg.Encounter.BossDir)
	if err != nil {
		logger.Fatal("loading boss templates", zap.Error(err))
	}
	logger.Info("boss templates loaded",
		zap.Int("count", len(bosses.All())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	// Character records always live in PostgreSQL; the store setting only
	// selects the session backend.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected", zap.Duration("elapsed", time.Since(dbStart)))

	characters := postgres.NewCharacterRepository(pool.DB())

	var store encounter.Store
	var memStore *encounter.MemoryStore
	var pgStore *postgres.SessionRepository
	switch cfg.Encounter.Store {
	case "postgres":
		pgStore = postgres.NewSessionRepository(pool.DB(), cfg.Encounter.SessionTTL)
		store = pgStore
	default:
		memStore = encounter.NewMemoryStore(cfg.Encounter.SessionTTL, logger)
		store = memStore
	}

	turns := service.NewTurnService(
		store, bosses, characters,
		encounter.NewEngine(src, cfg.Encounter.DefenseFactor, logger),
		reward.NewTableAwarder(src, logger),
		nil, // no realtime channel attached yet
		cfg.Encounter.SessionTTL,
		logger,
	)

	router := api.NewRouter(api.NewEncounterHandler(turns, logger), logger)
	httpSrv := &http.Server{Addr: cfg.Server.Addr(), Handler: router}

	lc := server.NewLifecycle(logger)

	lc.Add("http", &server.FuncService{
		StartFn: func() error {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	lc.Add("session-sweeper", &server.FuncService{
		StartFn: func() error {
			if memStore != nil {
				memStore.StartSweeper(sweepCtx, cfg.Encounter.SweepInterval)
				return nil
			}
			runPostgresSweeper(sweepCtx, cfg.Encounter.SweepInterval, pgStore, logger)
			return nil
		},
		StopFn: stopSweep,
	})

	logger.Info("encounter server ready", zap.Duration("startup", time.Since(start)))
	if err := lc.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}

// runPostgresSweeper reclaims expired session rows on a fixed interval until
// ctx is cancelled. The memory store ships its own sweeper loop.
func runPostgresSweeper(ctx context.Context, interval time.Duration, pgStore *postgres.SessionRepository, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := pgStore.Sweep(ctx); err != nil {
				logger.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}
