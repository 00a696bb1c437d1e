// Package evaloracle is the client side of the position evaluation engine.
package evaloracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	ErrOracleTimeout = errors.New("oracle timeout")
	ErrOracleError   = errors.New("oracle error")
)

// Evaluation is reported from the side to move. CP already folds mate
// scores into a saturating magnitude; Mate keeps the raw distance.
type Evaluation struct {
	CP       int
	Mate     int
	BestMove string
	Depth    int
}

type Oracle interface {
	Evaluate(ctx context.Context, fen string) (Evaluation, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, fen string) (Evaluation, error)

func (f Func) Evaluate(ctx context.Context, fen string) (Evaluation, error) { return f(ctx, fen) }

type LimitConfig struct {
	Timeout     time.Duration
	MinInterval time.Duration
	Concurrency int
}

// Limited bounds another Oracle: at most Concurrency calls in flight, calls
// started no closer than MinInterval apart, each one cut at Timeout.
type Limited struct {
	inner   Oracle
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

func Limit(inner Oracle, cfg LimitConfig, logger *zap.Logger) *Limited {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := cfg.Concurrency
	if n <= 0 {
		n = 1
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Limited{inner: inner, sem: semaphore.NewWeighted(int64(n)), limiter: lim, timeout: timeout, logger: logger}
}

func (l *Limited) Evaluate(ctx context.Context, fen string) (Evaluation, error) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.sem.Acquire(cctx, 1); err != nil {
		return Evaluation{}, l.classify(fen, err)
	}
	defer l.sem.Release(1)
	if err := l.limiter.Wait(cctx); err != nil {
		return Evaluation{}, l.classify(fen, err)
	}

	type result struct {
		ev  Evaluation
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ev, err := l.inner.Evaluate(cctx, fen)
		ch <- result{ev, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return Evaluation{}, l.classify(fen, r.err)
		}
		return r.ev, nil
	case <-cctx.Done():
		return Evaluation{}, l.classify(fen, cctx.Err())
	}
}

func (l *Limited) classify(fen string, err error) error {
	if errors.Is(err, ErrOracleTimeout) || errors.Is(err, ErrOracleError) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		l.logger.Warn("oracle_timeout", zap.String("fen", fen), zap.Duration("timeout", l.timeout))
		return fmt.Errorf("%w: %v", ErrOracleTimeout, err)
	}
	l.logger.Warn("oracle_error", zap.String("fen", fen), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrOracleError, err)
}
