// Package analysis grades moves after they are played. Nothing here may
// block or fail a game: every oracle problem degrades to neutral values.
package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/evaloracle"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/rules"
)

var ErrQueueFull = errors.New("analysis queue full")

const (
	errTimeout   = "oracle_timeout"
	errOracle    = "oracle_error"
	errQueueFull = "queue_full"
)

// Job describes one accepted move.
type Job struct {
	SessionID string
	Seq       int
	Mover     domain.Color
	MoveUCI   string
	FENBefore string
	FENAfter  string
	Checkmate bool
}

// Sink receives results, possibly after the session has finished.
type Sink interface {
	DeliverAnalysis(ctx context.Context, sessionID string, seq int, res domain.AnalysisResult)
}

type Config struct {
	Workers   int
	QueueSize int
}

type Pipeline struct {
	oracle evaloracle.Oracle
	rules  rules.Oracle
	logger *zap.Logger

	workers int
	jobs    chan Job

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(cfg Config, oracle evaloracle.Oracle, ro rules.Oracle, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Pipeline{
		oracle:  oracle,
		rules:   ro,
		logger:  logger,
		workers: cfg.Workers,
		jobs:    make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. Results go to sink.
func (p *Pipeline) Start(ctx context.Context, sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, sink)
	}
}

// Stop cancels workers and waits for them. Queued jobs are dropped.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// Schedule enqueues without blocking.
func (p *Pipeline) Schedule(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		p.logger.Warn("analysis_queue_full", zap.String("session_id", job.SessionID), zap.Int("seq", job.Seq))
		return ErrQueueFull
	}
}

func (p *Pipeline) worker(ctx context.Context, sink Sink) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			res := p.Analyze(ctx, job)
			if sink != nil {
				sink.DeliverAnalysis(ctx, job.SessionID, job.Seq, res)
			}
		}
	}
}

// Neutral is the result recorded when a move could not be analyzed at all.
func Neutral(checkmate bool, reason string) domain.AnalysisResult {
	res := domain.AnalysisResult{WinProbBefore: 0.5, WinProbAfter: 0.5, BestMoveWinProb: 0.5, Error: reason}
	if checkmate {
		res.WinProbAfter = 1
	}
	res.PointsLost = res.WinProbBefore - res.WinProbAfter
	res.Classification = Classify(ClassifyInput{
		WinProbBefore:   res.WinProbBefore,
		WinProbAfter:    res.WinProbAfter,
		BestMoveWinProb: res.BestMoveWinProb,
		Checkmate:       checkmate,
	})
	return res
}

func NeutralQueueFull(checkmate bool) domain.AnalysisResult { return Neutral(checkmate, errQueueFull) }

// Analyze grades a single move. It always returns a result.
func (p *Pipeline) Analyze(ctx context.Context, job Job) domain.AnalysisResult {
	var (
		before, after evaloracle.Evaluation
		errBefore     error
		errAfter      error
	)
	var g errgroup.Group
	g.Go(func() error {
		before, errBefore = p.oracle.Evaluate(ctx, job.FENBefore)
		return nil
	})
	g.Go(func() error {
		after, errAfter = p.oracle.Evaluate(ctx, job.FENAfter)
		return nil
	})
	_ = g.Wait()

	var failures []error
	if errBefore != nil {
		before = evaloracle.Evaluation{}
		failures = append(failures, errBefore)
	}
	if errAfter != nil {
		after = evaloracle.Evaluation{}
		if !job.Checkmate {
			failures = append(failures, errAfter)
		}
	}
	opponent := job.Mover.Opposite()

	res := domain.AnalysisResult{
		EvalBeforeCP: whiteCP(before, job.Mover),
		EvalAfterCP:  whiteCP(after, opponent),
		BestMove:     before.BestMove,
	}
	if job.Checkmate {
		// engines report no usable score for a mated side
		res.EvalAfterCP = whiteCP(evaloracle.Evaluation{CP: -100000}, opponent)
	}
	res.WinProbBefore = moverProb(res.EvalBeforeCP, job.Mover)
	res.WinProbAfter = moverProb(res.EvalAfterCP, job.Mover)

	res.BestMoveWinProb = res.WinProbAfter
	if best := before.BestMove; best != "" && !strings.EqualFold(best, job.MoveUCI) {
		cp, err := p.evalBest(ctx, job.FENBefore, best, opponent)
		if err != nil {
			failures = append(failures, err)
		}
		res.BestMoveWinProb = moverProb(cp, job.Mover)
	} else if errBefore != nil {
		res.BestMoveWinProb = moverProb(0, job.Mover)
	}
	res.PointsLost = res.WinProbBefore - res.WinProbAfter
	res.MaterialDelta = p.materialDelta(job, after.BestMove)

	res.Classification = Classify(ClassifyInput{
		WinProbBefore:   res.WinProbBefore,
		WinProbAfter:    res.WinProbAfter,
		BestMoveWinProb: res.BestMoveWinProb,
		MaterialDelta:   res.MaterialDelta,
		Checkmate:       job.Checkmate,
	})
	if len(failures) > 0 {
		res.Error = failureCode(failures)
		p.logger.Warn("analysis_degraded",
			zap.String("session_id", job.SessionID),
			zap.Int("seq", job.Seq),
			zap.String("reason", res.Error),
			zap.Error(errors.Join(failures...)),
		)
	}
	return res
}

// evalBest plays the suggested move on the pre-move position and evaluates
// it, returning White's view. Failures are neutral.
func (p *Pipeline) evalBest(ctx context.Context, fenBefore, best string, sideToMove domain.Color) (int, error) {
	pos, err := p.rules.FromFEN(fenBefore)
	if err != nil {
		return 0, errors.Join(evaloracle.ErrOracleError, err)
	}
	if _, err := pos.Apply(best); err != nil {
		return 0, errors.Join(evaloracle.ErrOracleError, err)
	}
	if st := pos.Status(); st.Terminal && st.Reason == domain.ReasonCheckmate {
		return whiteCP(evaloracle.Evaluation{CP: -100000}, sideToMove), nil
	}
	ev, err := p.oracle.Evaluate(ctx, pos.FEN())
	if err != nil {
		return 0, err
	}
	return whiteCP(ev, sideToMove), nil
}

// materialDelta is the mover's balance after the opponent's best reply
// minus the balance before the move.
func (p *Pipeline) materialDelta(job Job, reply string) int {
	before, err := p.rules.FromFEN(job.FENBefore)
	if err != nil {
		return 0
	}
	after, err := p.rules.FromFEN(job.FENAfter)
	if err != nil {
		return 0
	}
	if reply != "" {
		_, _ = after.Apply(reply)
	}
	return after.Material().Balance(job.Mover) - before.Material().Balance(job.Mover)
}

func failureCode(errs []error) string {
	for _, err := range errs {
		if errors.Is(err, evaloracle.ErrOracleTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return errTimeout
		}
	}
	return errOracle
}
