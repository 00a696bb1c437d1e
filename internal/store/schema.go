package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    rating INTEGER NOT NULL DEFAULT 1200,
    wallet_address TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
  )`,
	`CREATE TABLE IF NOT EXISTS games (
    game_id TEXT PRIMARY KEY,
    white_id TEXT NOT NULL,
    black_id TEXT NOT NULL,
    speed TEXT NOT NULL,
    match_type TEXT NOT NULL,
    result TEXT NOT NULL,
    reason TEXT NOT NULL,
    winner_id TEXT,
    final_fen TEXT NOT NULL,
    pgn TEXT NOT NULL,
    white_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
    black_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL
  )`,
	`CREATE TABLE IF NOT EXISTS game_moves (
    game_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    notation TEXT,
    uci TEXT,
    color TEXT,
    actor_id TEXT,
    position_after TEXT,
    duration_ms BIGINT,
    played_at TIMESTAMPTZ,
    analysis JSONB,
    PRIMARY KEY (game_id, seq)
  )`,
	`CREATE TABLE IF NOT EXISTS rating_history (
    game_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    rating_before INTEGER NOT NULL,
    delta INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (game_id, user_id)
  )`,
}

// Migrate creates missing tables. Existing ones are left alone.
func (r *Repository) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema %d: %w", i, err)
		}
	}
	return nil
}
