package arenapresenter

import (
	"testing"
	"time"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

func TestToDTOMoveCarriesAnalysis(t *testing.T) {
	rec := domain.MoveRecord{
		Seq: 3, Notation: "Nf3", UCI: "g1f3", Color: domain.White, ActorID: "u1",
		PositionAfter: "fen", DurationMs: 1500, PlayedAt: time.Unix(10, 0),
		Analysis: &domain.AnalysisResult{Classification: domain.ClassBest, PointsLost: 0.001},
	}
	got := ToDTOMove(rec)
	if got.Seq != 3 || got.Color != "white" || got.UCI != "g1f3" {
		t.Fatalf("unexpected move dto: %+v", got)
	}
	if got.Analysis == nil || got.Analysis.Classification != "Best" {
		t.Fatalf("analysis not carried: %+v", got.Analysis)
	}
	if ToDTOMove(domain.MoveRecord{Seq: 1}).Analysis != nil {
		t.Fatalf("pending analysis must stay nil")
	}
}

func TestToDTOGameOver(t *testing.T) {
	g := domain.GameRecord{ID: "s1", Result: "1-0", Reason: domain.ReasonCheckmate, WinnerID: "w",
		Accuracy: domain.Accuracy{White: 91.5, Black: 40}}
	change := &domain.RatingChange{WhiteBefore: 1200, BlackBefore: 1200, WhiteDelta: 16, BlackDelta: -16}
	over := ToDTOGameOver(g, change)
	if over.EloUpdate == nil || over.EloUpdate.White.After != 1216 || over.EloUpdate.Black.After != 1184 {
		t.Fatalf("elo: %+v", over.EloUpdate)
	}
	if over.Reason != "checkmate" || over.Accuracy.White != 91.5 {
		t.Fatalf("unexpected: %+v", over)
	}
	if ToDTOGameOver(g, nil).EloUpdate != nil {
		t.Fatalf("nil change must omit eloUpdate")
	}
}
