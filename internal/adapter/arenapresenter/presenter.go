package arenapresenter

import (
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

func ToDTOAnalysis(a *domain.AnalysisResult) *arenadto.Analysis {
	if a == nil {
		return nil
	}
	return &arenadto.Analysis{
		EvalBeforeCP:    a.EvalBeforeCP,
		EvalAfterCP:     a.EvalAfterCP,
		WinProbBefore:   a.WinProbBefore,
		WinProbAfter:    a.WinProbAfter,
		BestMoveWinProb: a.BestMoveWinProb,
		PointsLost:      a.PointsLost,
		Classification:  string(a.Classification),
		BestMove:        a.BestMove,
		MaterialDelta:   a.MaterialDelta,
		Error:           a.Error,
	}
}

func ToDTOMove(m domain.MoveRecord) arenadto.Move {
	return arenadto.Move{
		Seq:           m.Seq,
		Notation:      m.Notation,
		UCI:           m.UCI,
		Color:         string(m.Color),
		ActorID:       m.ActorID,
		PositionAfter: m.PositionAfter,
		DurationMs:    m.DurationMs,
		PlayedAt:      m.PlayedAt,
		Analysis:      ToDTOAnalysis(m.Analysis),
	}
}

func ToDTOMoves(list []domain.MoveRecord) []arenadto.Move {
	out := make([]arenadto.Move, 0, len(list))
	for _, m := range list {
		out = append(out, ToDTOMove(m))
	}
	return out
}

// ToDTOElo returns nil when no rating change was applied.
func ToDTOElo(c *domain.RatingChange) *arenadto.EloUpdate {
	if c == nil {
		return nil
	}
	return &arenadto.EloUpdate{
		White: arenadto.EloSide{Before: c.WhiteBefore, After: c.WhiteAfter(), Delta: c.WhiteDelta},
		Black: arenadto.EloSide{Before: c.BlackBefore, After: c.BlackAfter(), Delta: c.BlackDelta},
	}
}

func ToDTOGameOver(g domain.GameRecord, change *domain.RatingChange) arenadto.GameOver {
	return arenadto.GameOver{
		SessionID: g.ID,
		Result:    g.Result,
		Reason:    string(g.Reason),
		WinnerID:  g.WinnerID,
		EloUpdate: ToDTOElo(change),
		Accuracy:  arenadto.Accuracy{White: g.Accuracy.White, Black: g.Accuracy.Black},
	}
}
