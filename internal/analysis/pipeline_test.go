package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/evaloracle"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/rules"
)

// fenAfter plays moves from the start and returns the resulting FEN.
func fenAfter(t *testing.T, moves ...string) string {
	t.Helper()
	p := rules.New().NewPosition()
	for _, mv := range moves {
		if _, err := p.Apply(mv); err != nil {
			t.Fatalf("Apply(%q): %v", mv, err)
		}
	}
	return p.FEN()
}

func tableOracle(table map[string]evaloracle.Evaluation, def evaloracle.Evaluation) evaloracle.Oracle {
	return evaloracle.Func(func(ctx context.Context, fen string) (evaloracle.Evaluation, error) {
		if ev, ok := table[fen]; ok {
			return ev, nil
		}
		return def, nil
	})
}

func TestAnalyzeBestMove(t *testing.T) {
	before := fenAfter(t)
	after := fenAfter(t, "e2e4")
	oracle := tableOracle(map[string]evaloracle.Evaluation{
		before: {CP: 30, BestMove: "e2e4"},
		after:  {CP: -30, BestMove: "e7e5"},
	}, evaloracle.Evaluation{})
	p := NewPipeline(Config{}, oracle, rules.New(), nil)

	res := p.Analyze(context.Background(), Job{SessionID: "s", Seq: 1, Mover: domain.White, MoveUCI: "e2e4", FENBefore: before, FENAfter: after})
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if res.EvalBeforeCP != 30 || res.EvalAfterCP != 30 {
		t.Fatalf("white-relative evals %d/%d", res.EvalBeforeCP, res.EvalAfterCP)
	}
	if res.PointsLost != 0 || res.Classification != domain.ClassBest {
		t.Fatalf("unexpected grading %+v", res)
	}
}

func TestAnalyzeBlunderFromBlackSide(t *testing.T) {
	before := fenAfter(t, "e2e4")
	after := fenAfter(t, "e2e4", "f7f6")
	best := fenAfter(t, "e2e4", "e7e5")
	oracle := tableOracle(map[string]evaloracle.Evaluation{
		before: {CP: -30, BestMove: "e7e5"},
		after:  {CP: 500, BestMove: "d1h5"},
		best:   {CP: 30},
	}, evaloracle.Evaluation{})
	p := NewPipeline(Config{}, oracle, rules.New(), nil)

	res := p.Analyze(context.Background(), Job{Seq: 2, Mover: domain.Black, MoveUCI: "f7f6", FENBefore: before, FENAfter: after})
	if res.EvalBeforeCP != 30 || res.EvalAfterCP != 500 {
		t.Fatalf("white-relative evals %d/%d", res.EvalBeforeCP, res.EvalAfterCP)
	}
	if res.WinProbBefore < 0.45 || res.WinProbAfter > 0.25 {
		t.Fatalf("probabilities not from black's view: %+v", res)
	}
	if res.Classification != domain.ClassBlunder {
		t.Fatalf("classification %s, want Blunder (%+v)", res.Classification, res)
	}
}

func TestAnalyzeQueenSacrificeIsBrilliant(t *testing.T) {
	before := fenAfter(t, "e2e4", "d7d5")
	after := fenAfter(t, "e2e4", "d7d5", "d1g4")
	oracle := tableOracle(map[string]evaloracle.Evaluation{
		before: {CP: 40, BestMove: "d1g4"},
		after:  {CP: -60, BestMove: "c8g4"},
	}, evaloracle.Evaluation{})
	p := NewPipeline(Config{}, oracle, rules.New(), nil)

	res := p.Analyze(context.Background(), Job{Seq: 3, Mover: domain.White, MoveUCI: "d1g4", FENBefore: before, FENAfter: after})
	if res.MaterialDelta != -9 {
		t.Fatalf("material delta %d, want -9", res.MaterialDelta)
	}
	if res.Classification != domain.ClassBrilliant {
		t.Fatalf("classification %s, want Brilliant", res.Classification)
	}
}

func TestAnalyzeOracleTimeoutDegrades(t *testing.T) {
	oracle := evaloracle.Func(func(ctx context.Context, fen string) (evaloracle.Evaluation, error) {
		return evaloracle.Evaluation{}, evaloracle.ErrOracleTimeout
	})
	p := NewPipeline(Config{}, oracle, rules.New(), nil)
	res := p.Analyze(context.Background(), Job{Seq: 1, Mover: domain.White, MoveUCI: "e2e4", FENBefore: fenAfter(t), FENAfter: fenAfter(t, "e2e4")})
	if res.EvalBeforeCP != 0 || res.EvalAfterCP != 0 {
		t.Fatalf("evaluations must default to 0: %+v", res)
	}
	if res.Error != "oracle_timeout" {
		t.Fatalf("error = %q", res.Error)
	}
	if res.Classification == "" {
		t.Fatalf("classification must still be computed")
	}
}

func TestAnalyzeCheckmate(t *testing.T) {
	before := fenAfter(t, "f2f3", "e7e5", "g2g4")
	after := fenAfter(t, "f2f3", "e7e5", "g2g4", "d8h4")
	oracle := evaloracle.Func(func(ctx context.Context, fen string) (evaloracle.Evaluation, error) {
		if fen == after {
			return evaloracle.Evaluation{}, errors.New("no legal moves")
		}
		return evaloracle.Evaluation{CP: 99999, Mate: 1, BestMove: "d8h4"}, nil
	})
	p := NewPipeline(Config{}, oracle, rules.New(), nil)
	res := p.Analyze(context.Background(), Job{Seq: 4, Mover: domain.Black, MoveUCI: "d8h4", FENBefore: before, FENAfter: after, Checkmate: true})
	if res.Classification != domain.ClassCheckmate || res.Error != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.WinProbAfter < 0.99 {
		t.Fatalf("mate should be won for the mover: %v", res.WinProbAfter)
	}
}

type chanSink struct {
	mu  sync.Mutex
	got map[int]domain.AnalysisResult
	ch  chan int
}

func (s *chanSink) DeliverAnalysis(ctx context.Context, sessionID string, seq int, res domain.AnalysisResult) {
	s.mu.Lock()
	s.got[seq] = res
	s.mu.Unlock()
	s.ch <- seq
}

func TestPipelineDeliversToSink(t *testing.T) {
	oracle := tableOracle(nil, evaloracle.Evaluation{CP: 10})
	p := NewPipeline(Config{Workers: 2, QueueSize: 4}, oracle, rules.New(), nil)
	sink := &chanSink{got: map[int]domain.AnalysisResult{}, ch: make(chan int, 4)}
	p.Start(context.Background(), sink)
	defer p.Stop()

	for seq := 1; seq <= 2; seq++ {
		job := Job{SessionID: "s", Seq: seq, Mover: domain.White, MoveUCI: "e2e4", FENBefore: fenAfter(t), FENAfter: fenAfter(t, "e2e4")}
		if err := p.Schedule(job); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case <-sink.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("analysis not delivered")
		}
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.got) != 2 {
		t.Fatalf("delivered %d results", len(sink.got))
	}
}

func TestScheduleNeverBlocks(t *testing.T) {
	p := NewPipeline(Config{Workers: 1, QueueSize: 1}, tableOracle(nil, evaloracle.Evaluation{}), rules.New(), nil)
	if err := p.Schedule(Job{Seq: 1}); err != nil {
		t.Fatalf("first Schedule: %v", err)
	}
	if err := p.Schedule(Job{Seq: 2}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Schedule err = %v, want ErrQueueFull", err)
	}
}
