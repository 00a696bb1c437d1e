package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/adapter/arenapresenter"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

// Conn is one client socket. Send must not block.
type Conn interface {
	ID() string
	Send(event string, data any) error
	Close(reason string)
}

// Notifier reaches a user outside of any session binding.
type Notifier interface {
	Notify(userID, event string, data any)
}

type seat struct {
	sessionID string
	userID    string
}

// supervisor maps (session, user) seats to sockets. It never takes a session
// lock, so it is safe to call while holding one.
type supervisor struct {
	mu       sync.Mutex
	bindings map[seat]Conn
	byConn   map[string]map[seat]struct{}
	fallback Notifier
}

func newSupervisor(fallback Notifier) *supervisor {
	return &supervisor{
		bindings: make(map[seat]Conn),
		byConn:   make(map[string]map[seat]struct{}),
		fallback: fallback,
	}
}

// bind makes conn authoritative for the seat and returns the socket it replaced.
func (sv *supervisor) bind(conn Conn, sessionID, userID string) Conn {
	st := seat{sessionID: sessionID, userID: userID}
	sv.mu.Lock()
	defer sv.mu.Unlock()
	old := sv.bindings[st]
	if old != nil && old.ID() == conn.ID() {
		return nil
	}
	if old != nil {
		sv.forget(old.ID(), st)
	}
	sv.bindings[st] = conn
	seats := sv.byConn[conn.ID()]
	if seats == nil {
		seats = make(map[seat]struct{})
		sv.byConn[conn.ID()] = seats
	}
	seats[st] = struct{}{}
	return old
}

func (sv *supervisor) forget(connID string, st seat) {
	if seats := sv.byConn[connID]; seats != nil {
		delete(seats, st)
		if len(seats) == 0 {
			delete(sv.byConn, connID)
		}
	}
}

// release drops every seat still owned by conn and returns them.
func (sv *supervisor) release(conn Conn) []seat {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	seats := sv.byConn[conn.ID()]
	delete(sv.byConn, conn.ID())
	out := make([]seat, 0, len(seats))
	for st := range seats {
		if cur := sv.bindings[st]; cur != nil && cur.ID() == conn.ID() {
			delete(sv.bindings, st)
			out = append(out, st)
		}
	}
	return out
}

func (sv *supervisor) dropSession(sessionID string, userIDs ...string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	for _, uid := range userIDs {
		st := seat{sessionID: sessionID, userID: uid}
		if cur := sv.bindings[st]; cur != nil {
			sv.forget(cur.ID(), st)
			delete(sv.bindings, st)
		}
	}
}

func (sv *supervisor) send(sessionID, userID, event string, data any) {
	sv.mu.Lock()
	conn := sv.bindings[seat{sessionID: sessionID, userID: userID}]
	sv.mu.Unlock()
	if conn != nil {
		if err := conn.Send(event, data); err == nil {
			return
		}
	}
	if sv.fallback != nil {
		sv.fallback.Notify(userID, event, data)
	}
}

// Join binds conn to the user's seat and replays the session to it. The
// session starts once both players have joined; a join while the user's seat
// is disconnected is a rejoin.
func (c *Coordinator) Join(ctx context.Context, conn Conn, sessionID, userID string) error {
	s, ok := c.registry.Get(sessionID)
	if !ok {
		return ErrNotFound
	}
	color, ok := s.colorOf(userID)
	if !ok {
		return ErrNotParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.StatusFinished {
		return ErrFinished
	}
	if old := c.sup.bind(conn, sessionID, userID); old != nil {
		old.Close("superseded")
		c.logger.Info("socket_superseded",
			zap.String("session_id", s.ID),
			zap.String("user_id", userID),
			zap.String("old_conn", old.ID()),
			zap.String("new_conn", conn.ID()),
		)
	}
	s.joined[color] = true

	transitioned := false
	switch s.status {
	case domain.StatusWaiting:
		if s.joined[domain.White] && s.joined[domain.Black] {
			c.startLocked(s)
			transitioned = true
		}
	case domain.StatusActive, domain.StatusPaused:
		if s.disconnected[color] {
			c.reconnectLocked(s, color)
			transitioned = true
		}
	}
	c.saveSnapshotLocked(s)

	now := c.clock.Now()
	view := c.viewLocked(s, now, nil)
	_ = conn.Send(arenadto.EventGameState, view)
	_ = conn.Send(arenadto.EventMoveHistory, arenadto.MoveHistory{
		SessionID: s.ID,
		Moves:     arenapresenter.ToDTOMoves(s.moves),
	})
	if transitioned {
		c.sendToLocked(s, color.Opposite(), arenadto.EventGameState, view)
	}
	return nil
}

func (c *Coordinator) reconnectLocked(s *Session, color domain.Color) {
	s.disconnected[color] = false
	s.graceEpoch[color]++
	if t := s.graceTimers[color]; t != nil {
		t.Stop()
		delete(s.graceTimers, color)
	}
	c.logger.Info("player_reconnected", zap.String("session_id", s.ID), zap.String("color", string(color)))
	if s.anyDisconnected() {
		return
	}
	c.resumeLocked(s)
	c.broadcastLocked(s, arenadto.EventGameResumed, arenadto.PlayerPresence{
		SessionID: s.ID,
		UserID:    s.player(color).ID,
	})
}

// Disconnect handles a transport close. Only seats this socket still owns
// are affected; a superseded socket closing is a no-op.
func (c *Coordinator) Disconnect(conn Conn) {
	for _, st := range c.sup.release(conn) {
		c.seatLost(st)
	}
}

func (c *Coordinator) seatLost(st seat) {
	s, ok := c.registry.Get(st.sessionID)
	if !ok {
		return
	}
	color, ok := s.colorOf(st.userID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case domain.StatusFinished:
		return
	case domain.StatusWaiting:
		s.joined[color] = false
		c.saveSnapshotLocked(s)
		return
	}
	if s.disconnected[color] {
		return
	}
	s.disconnected[color] = true
	c.pauseLocked(s)
	s.graceEpoch[color]++
	epoch := s.graceEpoch[color]
	id := s.ID
	s.graceTimers[color] = c.clock.AfterFunc(c.cfg.ReconnectGrace, func() { c.expireGrace(id, color, epoch) })
	c.saveSnapshotLocked(s)

	c.sendToLocked(s, color.Opposite(), arenadto.EventOpponentDisconnected, arenadto.PlayerPresence{
		SessionID: s.ID,
		UserID:    st.userID,
		GraceMs:   c.cfg.ReconnectGrace.Milliseconds(),
	})
	c.logger.Info("player_disconnected",
		zap.String("session_id", s.ID),
		zap.String("user_id", st.userID),
		zap.Duration("grace", c.cfg.ReconnectGrace),
	)
}

func (c *Coordinator) expireGrace(sessionID string, color domain.Color, epoch int) {
	s, ok := c.registry.Get(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.StatusFinished || !s.disconnected[color] || s.graceEpoch[color] != epoch {
		return
	}
	delete(s.graceTimers, color)
	c.finalizeLocked(context.Background(), s, domain.Outcome{Winner: color.Opposite(), Reason: domain.ReasonDisconnect}, true)
}

func (c *Coordinator) expireJoin(sessionID string) {
	s, ok := c.registry.Get(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusWaiting {
		return
	}
	s.joinTimer = nil
	c.logger.Info("session_join_expired", zap.String("session_id", s.ID))
	c.finalizeLocked(context.Background(), s, domain.Outcome{Reason: domain.ReasonAborted}, true)
}

// Leave forfeits immediately without a grace period. Leaving a session that
// never started aborts it.
func (c *Coordinator) Leave(ctx context.Context, sessionID, userID string) error {
	s, ok := c.registry.Get(sessionID)
	if !ok {
		return ErrNotFound
	}
	color, ok := s.colorOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case domain.StatusFinished:
		return ErrFinished
	case domain.StatusWaiting:
		c.finalizeLocked(ctx, s, domain.Outcome{Reason: domain.ReasonAborted}, true)
	default:
		c.finalizeLocked(ctx, s, domain.Outcome{Winner: color.Opposite(), Reason: domain.ReasonAbandon}, true)
	}
	return nil
}
