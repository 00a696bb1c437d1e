package analysis

import (
	"math"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

const (
	// BaseBonus is added to every non-empty accuracy score before clamping.
	BaseBonus   = 5.0
	lossScale   = 0.25
	maxAccuracy = 100.0
)

// Score maps per-move losses to 0..100. No moves scores 0.
func Score(losses []float64) float64 {
	if len(losses) == 0 {
		return 0
	}
	var sum float64
	for _, l := range losses {
		sum += math.Max(0, l)
	}
	avg := sum / float64(len(losses))
	s := maxAccuracy*(1-avg/lossScale) + BaseBonus
	return math.Max(0, math.Min(maxAccuracy, s))
}

// SessionAccuracy scores each side over its successfully analyzed moves.
func SessionAccuracy(moves []domain.MoveRecord) domain.Accuracy {
	var white, black []float64
	for _, m := range moves {
		if !m.Analysis.Analyzed() {
			continue
		}
		if m.Color == domain.White {
			white = append(white, m.Analysis.PointsLost)
		} else {
			black = append(black, m.Analysis.PointsLost)
		}
	}
	return domain.Accuracy{White: Score(white), Black: Score(black)}
}
