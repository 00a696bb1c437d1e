package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

func elapsedMs(from, to time.Time) int64 {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return to.Sub(from).Milliseconds()
}

// chargeLocked bills the side to move for the time since the last charge.
func (c *Coordinator) chargeLocked(s *Session, now time.Time) {
	c.chargeSideLocked(s, s.pos.Turn(), now)
}

// chargeSideLocked bills side explicitly. ApplyMove needs it because the
// position has already flipped to the opponent by the time the mover is
// charged. Only an active session is charged.
func (c *Coordinator) chargeSideLocked(s *Session, side domain.Color, now time.Time) {
	if s.status != domain.StatusActive {
		return
	}
	d := elapsedMs(s.lastChargeAt, now)
	s.clockMs[side] = max(s.clockMs[side]-d, 0)
	s.turnSpentMs += d
	s.lastChargeAt = now
}

func (c *Coordinator) startLocked(s *Session) {
	now := c.clock.Now()
	s.status = domain.StatusActive
	s.startedAt = now
	s.lastChargeAt = now
	if s.joinTimer != nil {
		s.joinTimer.Stop()
		s.joinTimer = nil
	}
	stop := make(chan struct{})
	s.stopTicker = stop
	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	go c.runClock(s, ticker, stop)

	c.logger.Info("session_started", zap.String("session_id", s.ID))
}

func (c *Coordinator) pauseLocked(s *Session) {
	if s.status != domain.StatusActive {
		return
	}
	c.chargeLocked(s, c.clock.Now())
	s.status = domain.StatusPaused
}

// resumeLocked restarts charging from now, so paused time is never billed.
func (c *Coordinator) resumeLocked(s *Session) {
	if s.status != domain.StatusPaused {
		return
	}
	s.status = domain.StatusActive
	s.lastChargeAt = c.clock.Now()
}

func (c *Coordinator) runClock(s *Session, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			c.tick(s)
		}
	}
}

// tick charges the side to move and flags it when its time is gone.
func (c *Coordinator) tick(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusActive {
		return
	}
	now := c.clock.Now()
	c.chargeLocked(s, now)
	turn := s.pos.Turn()
	c.broadcastLocked(s, arenadto.EventTimeUpdate, arenadto.TimeUpdate{
		SessionID:   s.ID,
		WhiteTimeMs: s.clockMs[domain.White],
		BlackTimeMs: s.clockMs[domain.Black],
		Turn:        string(turn),
	})
	if s.clockMs[turn] <= 0 {
		c.logger.Info("clock_flagged", zap.String("session_id", s.ID), zap.String("color", string(turn)))
		c.finalizeLocked(context.Background(), s, domain.Outcome{Winner: turn.Opposite(), Reason: domain.ReasonTimeout}, true)
	}
}
