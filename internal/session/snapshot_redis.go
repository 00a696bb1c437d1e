package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/adapter/arenapresenter"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

const defaultSnapshotTTL = 24 * time.Hour

// Snapshot is the observable state of a live session.
type Snapshot struct {
	arenadto.GameState
	Moves     []arenadto.Move `json:"moves"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Snapshots mirrors live sessions somewhere other processes can read.
type Snapshots interface {
	Save(ctx context.Context, snap Snapshot) error
	Delete(ctx context.Context, sessionID string, userIDs ...string) error
}

type RedisSnapshots struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSnapshots(rdb *redis.Client, ttl time.Duration) *RedisSnapshots {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &RedisSnapshots{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string { return "arena:session:" + strings.TrimSpace(id) }
func userIdxKey(id string) string { return "arena:user:" + strings.TrimSpace(id) }

func (r *RedisSnapshots) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(snap.SessionID), raw, r.ttl)
		p.Set(ctx, userIdxKey(snap.WhiteID), snap.SessionID, r.ttl)
		p.Set(ctx, userIdxKey(snap.BlackID), snap.SessionID, r.ttl)
		return nil
	})
	return err
}

func (r *RedisSnapshots) Delete(ctx context.Context, sessionID string, userIDs ...string) error {
	keys := make([]string, 0, len(userIDs)+1)
	keys = append(keys, sessionKey(sessionID))
	for _, uid := range userIDs {
		keys = append(keys, userIdxKey(uid))
	}
	return r.rdb.Del(ctx, keys...).Err()
}

// Load returns nil when no snapshot exists.
func (r *RedisSnapshots) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SessionFor returns the session id indexed for a user, or "".
func (r *RedisSnapshots) SessionFor(ctx context.Context, userID string) (string, error) {
	id, err := r.rdb.Get(ctx, userIdxKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (c *Coordinator) snapshotLocked(s *Session) Snapshot {
	now := c.clock.Now()
	return Snapshot{
		GameState: c.viewLocked(s, now, nil),
		Moves:     arenapresenter.ToDTOMoves(s.moves),
		UpdatedAt: now,
	}
}

func (c *Coordinator) saveSnapshotLocked(s *Session) {
	if c.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := c.snapshots.Save(ctx, c.snapshotLocked(s)); err != nil {
		c.logger.Warn("snapshot_save_failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (c *Coordinator) deleteSnapshot(ctx context.Context, s *Session) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Delete(ctx, s.ID, s.White.ID, s.Black.ID); err != nil {
		c.logger.Warn("snapshot_delete_failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}
