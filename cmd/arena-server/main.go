package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/analysis"
	appcfg "github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/config"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/evaloracle"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/gateway"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/kv"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/matchmaking"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/msgcat"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/obslog"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/rating"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/reward"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/rules"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/session"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/store"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/userdir"
)

type repository interface {
	session.Users
	session.GameStore
	rating.Store
}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo repository
	if cfg.DatabaseURL != "" {
		pg, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("store_open_failed", zap.Error(err))
		}
		defer pg.Close()
		repo = pg
	} else {
		logger.Warn("store_memory", zap.String("reason", "DATABASE_URL not set"))
		repo = store.NewMemoryRepository(true)
	}

	var users session.Users = repo
	if cfg.UserServiceURL != "" {
		users = userdir.NewClient(cfg.UserServiceURL, userdir.WithTimeout(3*time.Second), userdir.WithRetry(2))
	}

	var (
		rdb       *redis.Client
		snapshots session.Snapshots
		rewards   session.Rewards
	)
	if cfg.RedisURL != "" {
		rdb, err = kv.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis_connect_failed", zap.Error(err))
		}
		defer rdb.Close()
		snapshots = session.NewRedisSnapshots(rdb, cfg.Session.SnapshotTTL)
		rewards = reward.NewNotifier(rdb, cfg.Reward.Queue, logger)
	} else {
		logger.Warn("redis_disabled", zap.String("reason", "REDIS_URL not set"))
	}

	ro := rules.New()
	var (
		analyzer session.Analyzer
		pipeline *analysis.Pipeline
	)
	if cfg.Oracle.StockfishPath != "" {
		sf, err := evaloracle.NewStockfish(cfg.Oracle, logger)
		if err != nil {
			logger.Fatal("oracle_init_failed", zap.Error(err))
		}
		defer sf.Close()
		oracle := evaloracle.Limit(sf, evaloracle.LimitConfig{
			Timeout:     cfg.Oracle.Timeout,
			MinInterval: cfg.Oracle.MinInterval,
			Concurrency: cfg.Oracle.Concurrency,
		}, logger)
		pipeline = analysis.NewPipeline(analysis.Config{
			Workers:   cfg.Analysis.Workers,
			QueueSize: cfg.Analysis.QueueSize,
		}, oracle, ro, logger)
		analyzer = pipeline
	} else {
		logger.Warn("analysis_disabled", zap.String("reason", "STOCKFISH_PATH not set"))
	}

	hub := gateway.NewHub()
	coord := session.NewCoordinator(session.Config{
		ReconnectGrace: cfg.Session.ReconnectGrace,
		JoinTimeout:    cfg.Session.JoinTimeout,
		TickInterval:   cfg.Session.TickInterval,
		RewardAmount:   cfg.Reward.Amount,
	}, session.Deps{
		Rules:     ro,
		Users:     users,
		Store:     repo,
		Ratings:   rating.NewUpdater(repo, logger),
		Rewards:   rewards,
		Analyzer:  analyzer,
		Snapshots: snapshots,
		Notifier:  hub,
		Logger:    logger,
	})
	if pipeline != nil {
		pipeline.Start(ctx, coord)
		defer pipeline.Stop()
	}

	mm := matchmaking.NewManager(matchmaking.Config{
		RatingRange:  cfg.Match.RatingRange,
		ChallengeTTL: cfg.Match.ChallengeTTL,
	}, matchmaking.Deps{
		Sessions: coord,
		Seats:    coord.Registry(),
		Users:    users,
		Presence: hub,
		Logger:   logger,
	})

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		logger.Fatal("catalog_load_failed", zap.Error(err))
	}

	srv := gateway.NewServer(gateway.Deps{
		Games:          coord,
		Matchmaker:     mm,
		Hub:            hub,
		Catalog:        cat,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           gateway.NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve_failed", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown_begin", zap.Int("sessions", coord.Live()), zap.Int("sockets", hub.Len()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
}
