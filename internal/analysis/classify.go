package analysis

import "github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"

const (
	bestMargin       = 0.005
	excellentMargin  = 0.015
	goodLoss         = 0.05
	inaccuracyLoss   = 0.10
	mistakeLoss      = 0.20
	sacrificeBalance = -1
	wonThreshold     = 0.95
	unclearThreshold = 0.8
	swingThreshold   = 0.15
)

// ClassifyInput holds everything classification depends on. Probabilities
// are from the mover's side; MaterialDelta is in pawns.
type ClassifyInput struct {
	WinProbBefore   float64
	WinProbAfter    float64
	BestMoveWinProb float64
	MaterialDelta   int
	Checkmate       bool
}

// Classify is a pure function of its input.
func Classify(in ClassifyInput) domain.Classification {
	if in.Checkmate {
		return domain.ClassCheckmate
	}
	gap := in.BestMoveWinProb - in.WinProbAfter
	lost := in.WinProbBefore - in.WinProbAfter

	var c domain.Classification
	switch {
	case gap <= bestMargin:
		c = domain.ClassBest
	case gap <= excellentMargin:
		c = domain.ClassExcellent
	case lost <= goodLoss:
		c = domain.ClassGood
	case lost <= inaccuracyLoss:
		c = domain.ClassInaccuracy
	case lost <= mistakeLoss:
		c = domain.ClassMistake
	default:
		c = domain.ClassBlunder
	}

	if (c == domain.ClassBest || c == domain.ClassExcellent) &&
		in.MaterialDelta < sacrificeBalance && in.WinProbBefore < wonThreshold {
		return domain.ClassBrilliant
	}
	if c == domain.ClassBest && in.WinProbBefore < unclearThreshold &&
		in.WinProbAfter-in.WinProbBefore > swingThreshold {
		return domain.ClassGreat
	}
	return c
}
