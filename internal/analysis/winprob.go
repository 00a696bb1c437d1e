package analysis

import (
	"math"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/evaloracle"
)

// WinProb maps a centipawn score onto the logistic win-probability curve.
func WinProb(cp int) float64 {
	return 1 / (1 + math.Exp(-float64(cp)/400))
}

// whiteCP turns a side-to-move evaluation into White's point of view.
func whiteCP(ev evaloracle.Evaluation, toMove domain.Color) int {
	if toMove == domain.Black {
		return -ev.CP
	}
	return ev.CP
}

// moverProb expresses a White-relative score as the mover's win probability.
func moverProb(cpWhite int, mover domain.Color) float64 {
	p := WinProb(cpWhite)
	if mover == domain.Black {
		return 1 - p
	}
	return p
}
