// Package reward emits the "game ended with a winner" message consumed by
// the payout workers.
package reward

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is the outbound payload.
type Event struct {
	WinnerID      string `json:"winnerId"`
	WalletAddress string `json:"walletAddress"`
	Amount        string `json:"amount"`
	GameID        string `json:"gameId"`
	MatchType     string `json:"matchType"`
}

const guardTTL = 7 * 24 * time.Hour

// guard and push happen in one script so a crash between them cannot emit twice.
var pushOnce = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'EX', ARGV[2]) then
  redis.call('LPUSH', KEYS[2], ARGV[3])
  return 1
end
return 0
`)

type Notifier struct {
	rdb    *redis.Client
	queue  string
	logger *zap.Logger
}

func NewNotifier(rdb *redis.Client, queue string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queue == "" {
		queue = "arena:rewards"
	}
	return &Notifier{rdb: rdb, queue: queue, logger: logger}
}

func (n *Notifier) sentKey(gameID string) string { return n.queue + ":sent:" + gameID }

// Notify pushes ev at most once per game. It reports whether this call
// emitted.
func (n *Notifier) Notify(ctx context.Context, ev Event) (bool, error) {
	if ev.GameID == "" || ev.WinnerID == "" {
		return false, fmt.Errorf("reward event needs game and winner")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return false, err
	}
	res, err := pushOnce.Run(ctx, n.rdb, []string{n.sentKey(ev.GameID), n.queue},
		ev.WinnerID, int(guardTTL/time.Second), string(raw)).Int()
	if err != nil {
		return false, fmt.Errorf("push reward: %w", err)
	}
	if res == 0 {
		n.logger.Info("reward_duplicate_suppressed", zap.String("game_id", ev.GameID))
		return false, nil
	}
	n.logger.Info("reward_emitted",
		zap.String("game_id", ev.GameID),
		zap.String("winner_id", ev.WinnerID),
		zap.String("match_type", ev.MatchType),
	)
	return true, nil
}
