package evaloracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/config"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/uci"
)

// Stockfish evaluates positions on pooled engine processes.
type Stockfish struct {
	pool   *uci.Pool
	limits uci.Limits
	logger *zap.Logger
}

func NewStockfish(cfg config.OracleConfig, logger *zap.Logger) (*Stockfish, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := uci.NewPool(uci.PoolConfig{
		Binary:   cfg.StockfishPath,
		Capacity: cfg.Concurrency,
		Options:  uci.Options{Threads: cfg.Threads, HashMB: cfg.HashMB},
	})
	if err != nil {
		return nil, fmt.Errorf("engine pool: %w", err)
	}
	return &Stockfish{
		pool:   pool,
		limits: uci.Limits{Depth: cfg.Depth, MoveTimeMs: cfg.MoveTimeMs},
		logger: logger,
	}, nil
}

func (s *Stockfish) Evaluate(ctx context.Context, fen string) (Evaluation, error) {
	eng, err := s.pool.Acquire(ctx)
	if err != nil {
		return Evaluation{}, err
	}
	res, err := eng.Evaluate(ctx, fen, s.limits)
	s.pool.Release(eng, err)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{CP: res.CP, Mate: res.Mate, Depth: res.Depth, BestMove: res.BestMove}
	s.logger.Debug("oracle_eval", zap.String("fen", fen), zap.Int("cp", ev.CP), zap.Int("mate", ev.Mate), zap.String("best", ev.BestMove))
	return ev, nil
}

func (s *Stockfish) PoolSize() int { return s.pool.Size() }

func (s *Stockfish) Close() error { return s.pool.Close() }
