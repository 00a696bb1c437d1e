// Package store persists finished games, move history and ratings.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/analysis"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

var ErrNotFound = errors.New("not found")

const DefaultRating = 1200

// Repository is the Postgres-backed store.
type Repository struct {
	db *sql.DB
}

func Open(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) LookupUser(ctx context.Context, id string) (domain.User, error) {
	const q = `SELECT id, rating, COALESCE(wallet_address, '') FROM users WHERE id = $1`
	var u domain.User
	err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Rating, &u.Wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

const upsertGame = `INSERT INTO games (
    game_id, white_id, black_id, speed, match_type,
    result, reason, winner_id, final_fen, pgn,
    white_accuracy, black_accuracy, started_at, ended_at
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
  ON CONFLICT (game_id) DO UPDATE SET
    result=EXCLUDED.result,
    reason=EXCLUDED.reason,
    winner_id=EXCLUDED.winner_id,
    final_fen=EXCLUDED.final_fen,
    pgn=EXCLUDED.pgn,
    white_accuracy=EXCLUDED.white_accuracy,
    black_accuracy=EXCLUDED.black_accuracy,
    ended_at=EXCLUDED.ended_at`

// analysis is only overwritten by a non-null value so a result written out
// of band before the game row survives.
const upsertMove = `INSERT INTO game_moves (
    game_id, seq, notation, uci, color, actor_id, position_after, duration_ms, played_at, analysis
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  ON CONFLICT (game_id, seq) DO UPDATE SET
    notation=EXCLUDED.notation,
    uci=EXCLUDED.uci,
    color=EXCLUDED.color,
    actor_id=EXCLUDED.actor_id,
    position_after=EXCLUDED.position_after,
    duration_ms=EXCLUDED.duration_ms,
    played_at=EXCLUDED.played_at,
    analysis=COALESCE(EXCLUDED.analysis, game_moves.analysis)`

// SaveGame writes the finished game and its moves in one transaction.
func (r *Repository) SaveGame(ctx context.Context, g domain.GameRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertGame,
		g.ID, g.WhiteID, g.BlackID, string(g.Speed), string(g.MatchType),
		g.Result, string(g.Reason), nullString(g.WinnerID), g.FinalFEN, g.PGN,
		g.Accuracy.White, g.Accuracy.Black, g.StartedAt, g.EndedAt,
	); err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	for _, m := range g.Moves {
		raw, err := analysisJSON(m.Analysis)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertMove,
			g.ID, m.Seq, m.Notation, m.UCI, string(m.Color), m.ActorID, m.PositionAfter, m.DurationMs, m.PlayedAt, raw,
		); err != nil {
			return fmt.Errorf("upsert move %d: %w", m.Seq, err)
		}
	}
	return tx.Commit()
}

// UpdateMoveAnalysis attaches a late analysis result and rescores the game's
// accuracy columns in the same transaction. Idempotent.
func (r *Repository) UpdateMoveAnalysis(ctx context.Context, gameID string, seq int, res domain.AnalysisResult) error {
	raw, err := analysisJSON(&res)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO game_moves (game_id, seq, analysis) VALUES ($1,$2,$3)
  ON CONFLICT (game_id, seq) DO UPDATE SET analysis=EXCLUDED.analysis`
	if _, err := tx.ExecContext(ctx, q, gameID, seq, raw); err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	moves, err := analyzedMoves(ctx, tx, gameID)
	if err != nil {
		return err
	}
	acc := analysis.SessionAccuracy(moves)
	const rescore = `UPDATE games SET white_accuracy = $2, black_accuracy = $3 WHERE game_id = $1`
	// no games row yet means SaveGame will write the scores itself
	if _, err := tx.ExecContext(ctx, rescore, gameID, acc.White, acc.Black); err != nil {
		return fmt.Errorf("rescore accuracy: %w", err)
	}
	return tx.Commit()
}

func analyzedMoves(ctx context.Context, tx *sql.Tx, gameID string) ([]domain.MoveRecord, error) {
	const q = `SELECT seq, color, analysis FROM game_moves
  WHERE game_id = $1 AND color IS NOT NULL AND analysis IS NOT NULL ORDER BY seq`
	rows, err := tx.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("load analyses: %w", err)
	}
	defer rows.Close()
	var moves []domain.MoveRecord
	for rows.Next() {
		var (
			m     domain.MoveRecord
			color string
			raw   []byte
		)
		if err := rows.Scan(&m.Seq, &color, &raw); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		var a domain.AnalysisResult
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode analysis %d: %w", m.Seq, err)
		}
		m.Color = domain.Color(color)
		m.Analysis = &a
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// ApplyRatings moves both ratings and records history in one transaction.
func (r *Repository) ApplyRatings(ctx context.Context, c domain.RatingChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const bump = `INSERT INTO users (id, rating) VALUES ($1, $2)
  ON CONFLICT (id) DO UPDATE SET rating = users.rating + $3, updated_at = now()`
	const history = `INSERT INTO rating_history (game_id, user_id, rating_before, delta) VALUES ($1,$2,$3,$4)
  ON CONFLICT (game_id, user_id) DO NOTHING`

	sides := []struct {
		id     string
		before int
		delta  int
	}{
		{c.WhiteID, c.WhiteBefore, c.WhiteDelta},
		{c.BlackID, c.BlackBefore, c.BlackDelta},
	}
	for _, s := range sides {
		res, err := tx.ExecContext(ctx, history, c.GameID, s.id, s.before, s.delta)
		if err != nil {
			return fmt.Errorf("rating history %s: %w", s.id, err)
		}
		// a replayed finalize must not double-apply
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, bump, s.id, s.before+s.delta, s.delta); err != nil {
			return fmt.Errorf("rating %s: %w", s.id, err)
		}
	}
	return tx.Commit()
}

func analysisJSON(a *domain.AnalysisResult) (any, error) {
	if a == nil {
		return nil, nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return string(raw), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}
