// Package rating applies symmetric Elo updates after a finished game.
package rating

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

const KFactor = 32

// Expected is White's expected score; Black's is 1 minus it.
func Expected(white, black int) float64 {
	return 1 / (1 + math.Pow(10, float64(black-white)/400))
}

// Deltas returns rating changes for both sides. They always sum to zero.
// A decisive result moves each rating by at least one point toward the
// winner, even when the expected score rounds the change away.
func Deltas(white, black int, winner domain.Color) (int, int) {
	score := 0.5
	switch winner {
	case domain.White:
		score = 1
	case domain.Black:
		score = 0
	}
	dw := int(math.Round(KFactor * (score - Expected(white, black))))
	switch winner {
	case domain.White:
		dw = max(dw, 1)
	case domain.Black:
		dw = min(dw, -1)
	}
	return dw, -dw
}

// Store persists both sides of a rating change atomically.
type Store interface {
	ApplyRatings(ctx context.Context, change domain.RatingChange) error
}

type Updater struct {
	store  Store
	logger *zap.Logger
}

func NewUpdater(store Store, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{store: store, logger: logger}
}

// Apply computes and stores the change. Aborted games change nothing and
// return a zero change with ok=false.
func (u *Updater) Apply(ctx context.Context, gameID string, white, black domain.User, outcome domain.Outcome) (domain.RatingChange, bool, error) {
	if outcome.Aborted() {
		return domain.RatingChange{}, false, nil
	}
	dw, db := Deltas(white.Rating, black.Rating, outcome.Winner)
	change := domain.RatingChange{
		GameID:      gameID,
		WhiteID:     white.ID,
		BlackID:     black.ID,
		WhiteBefore: white.Rating,
		BlackBefore: black.Rating,
		WhiteDelta:  dw,
		BlackDelta:  db,
	}
	if err := u.store.ApplyRatings(ctx, change); err != nil {
		return change, false, fmt.Errorf("apply ratings: %w", err)
	}
	u.logger.Info("rating_update",
		zap.String("game_id", gameID),
		zap.String("white_id", white.ID),
		zap.Int("white_delta", dw),
		zap.String("black_id", black.ID),
		zap.Int("black_delta", db),
	)
	return change, true, nil
}
