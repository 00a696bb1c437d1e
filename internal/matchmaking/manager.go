package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/session"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

var (
	ErrInvalidArgs       = errors.New("invalid arguments")
	ErrUnknownSpeed      = errors.New("unknown speed")
	ErrAlreadyQueued     = errors.New("already queued")
	ErrInGame            = errors.New("user already in a game")
	ErrSelfChallenge     = errors.New("cannot challenge yourself")
	ErrOpponentOffline   = errors.New("opponent is offline")
	ErrChallengePending  = errors.New("opponent already has a pending challenge")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNotChallengeParty = errors.New("not a party to this challenge")
)

const defaultRatingRange = 1000

// Sessions creates games for paired users.
type Sessions interface {
	CreateSession(ctx context.Context, req session.CreateRequest) (string, error)
}

// Seats answers whether a user already sits in a live game.
type Seats interface {
	ActiveFor(userID string) (string, bool)
}

type Users interface {
	LookupUser(ctx context.Context, id string) (domain.User, error)
}

// Presence knows which users have a live socket and how to reach them.
type Presence interface {
	Online(userID string) bool
	Notify(userID, event string, data any)
}

type Config struct {
	RatingRange  int
	ChallengeTTL time.Duration
}

type Deps struct {
	Sessions Sessions
	Seats    Seats
	Users    Users
	Presence Presence
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// Manager owns the queue and outstanding challenges. Pairing removes both
// tickets under the lock; the session is created after it is released.
type Manager struct {
	cfg      Config
	sessions Sessions
	seats    Seats
	users    Users
	presence Presence
	clock    clockwork.Clock
	logger   *zap.Logger

	mu         sync.Mutex
	queue      []*Ticket
	queued     map[string]*Ticket
	challenges map[string]*Challenge
	byOpponent map[string]string
	timers     map[string]clockwork.Timer
}

func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.RatingRange <= 0 {
		cfg.RatingRange = defaultRatingRange
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = time.Minute
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{
		cfg:        cfg,
		sessions:   deps.Sessions,
		seats:      deps.Seats,
		users:      deps.Users,
		presence:   deps.Presence,
		clock:      deps.Clock,
		logger:     deps.Logger,
		queued:     make(map[string]*Ticket),
		challenges: make(map[string]*Challenge),
		byOpponent: make(map[string]string),
		timers:     make(map[string]clockwork.Timer),
	}
}

// QueueLen is the number of waiting tickets.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) busy(userID string) bool {
	if m.seats == nil {
		return false
	}
	_, ok := m.seats.ActiveFor(userID)
	return ok
}

func (m *Manager) rating(ctx context.Context, userID string) (int, error) {
	if m.users == nil {
		return 0, nil
	}
	u, err := m.users.LookupUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", userID, err)
	}
	return u.Rating, nil
}

// Enqueue adds a user to the queue and pairs it with the earliest compatible
// waiting ticket. It returns the created session id when a pair formed.
func (m *Manager) Enqueue(ctx context.Context, userID, socketID, speed, color string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidArgs
	}
	sp, ok := domain.ParseSpeed(speed)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSpeed, speed)
	}
	if m.busy(userID) {
		return "", ErrInGame
	}
	r, err := m.rating(ctx, userID)
	if err != nil {
		return "", err
	}

	t := &Ticket{
		UserID:     userID,
		SocketID:   socketID,
		Speed:      sp,
		Color:      ParseColorChoice(color),
		Rating:     r,
		EnqueuedAt: m.clock.Now(),
	}

	m.mu.Lock()
	if _, dup := m.queued[userID]; dup {
		m.mu.Unlock()
		return "", ErrAlreadyQueued
	}
	var partner *Ticket
	for i, other := range m.queue {
		if compatible(other, t, m.cfg.RatingRange) {
			partner = other
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			delete(m.queued, other.UserID)
			break
		}
	}
	if partner == nil {
		m.queue = append(m.queue, t)
		m.queued[userID] = t
	}
	m.mu.Unlock()

	if partner == nil {
		m.notify(userID, arenadto.EventInQueue, arenadto.InQueue{UserID: userID, Speed: string(sp)})
		m.logger.Info("queue_enter", zap.String("user_id", userID), zap.String("speed", string(sp)), zap.Int("rating", r))
		return "", nil
	}

	white, black := assignColors(partner, t)
	id, err := m.sessions.CreateSession(ctx, session.CreateRequest{
		WhiteID:   white,
		BlackID:   black,
		Speed:     string(sp),
		MatchType: domain.MatchQueue,
	})
	if err != nil {
		m.logger.Error("pairing_failed",
			zap.String("white_id", white),
			zap.String("black_id", black),
			zap.Error(err),
		)
		return "", err
	}
	m.announceMatch(id, white, black, sp)
	m.logger.Info("queue_paired",
		zap.String("session_id", id),
		zap.String("white_id", white),
		zap.String("black_id", black),
		zap.Duration("waited", m.clock.Since(partner.EnqueuedAt)),
	)
	return id, nil
}

func (m *Manager) announceMatch(sessionID, white, black string, sp domain.Speed) {
	m.notify(white, arenadto.EventMatchFound, arenadto.MatchFound{
		SessionID: sessionID, Color: string(domain.White), OpponentID: black, Speed: string(sp),
	})
	m.notify(black, arenadto.EventMatchFound, arenadto.MatchFound{
		SessionID: sessionID, Color: string(domain.Black), OpponentID: white, Speed: string(sp),
	})
}

// Cancel removes a user from the queue. Absent users are a no-op.
func (m *Manager) Cancel(userID string) bool {
	m.mu.Lock()
	removed := m.removeLocked(func(t *Ticket) bool { return t.UserID == userID })
	m.mu.Unlock()
	if removed == 0 {
		return false
	}
	m.notify(userID, arenadto.EventMatchmakingCancelled, arenadto.InQueue{UserID: userID})
	return true
}

// RemoveSocket drops every ticket enqueued through a closed socket.
func (m *Manager) RemoveSocket(socketID string) int {
	if socketID == "" {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(func(t *Ticket) bool { return t.SocketID == socketID })
}

func (m *Manager) removeLocked(match func(*Ticket) bool) int {
	kept := m.queue[:0]
	n := 0
	for _, t := range m.queue {
		if match(t) {
			delete(m.queued, t.UserID)
			n++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(m.queue); i++ {
		m.queue[i] = nil
	}
	m.queue = kept
	return n
}

// Challenge invites an online opponent. Only one challenge may be
// outstanding per opponent; it expires after the challenge TTL.
func (m *Manager) Challenge(ctx context.Context, challengerID, opponentID, speed, color string) (*Challenge, error) {
	challengerID = strings.TrimSpace(challengerID)
	opponentID = strings.TrimSpace(opponentID)
	if challengerID == "" || opponentID == "" {
		return nil, ErrInvalidArgs
	}
	if challengerID == opponentID {
		return nil, ErrSelfChallenge
	}
	sp, ok := domain.ParseSpeed(speed)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpeed, speed)
	}
	if m.presence == nil || !m.presence.Online(opponentID) {
		return nil, ErrOpponentOffline
	}
	if m.busy(challengerID) || m.busy(opponentID) {
		return nil, ErrInGame
	}

	now := m.clock.Now()
	ch := &Challenge{
		ID:           ulid.Make().String(),
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		Speed:        sp,
		Color:        ParseColorChoice(color),
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.cfg.ChallengeTTL),
	}

	m.mu.Lock()
	if _, pending := m.byOpponent[opponentID]; pending {
		m.mu.Unlock()
		return nil, ErrChallengePending
	}
	m.challenges[ch.ID] = ch
	m.byOpponent[opponentID] = ch.ID
	id := ch.ID
	m.timers[id] = m.clock.AfterFunc(m.cfg.ChallengeTTL, func() { m.expire(id) })
	m.mu.Unlock()

	dto := ToDTOChallenge(ch)
	m.notify(opponentID, arenadto.EventGameChallenge, dto)
	m.notify(challengerID, arenadto.EventChallengeSent, dto)
	m.logger.Info("challenge_create",
		zap.String("challenge_id", ch.ID),
		zap.String("challenger_id", challengerID),
		zap.String("opponent_id", opponentID),
		zap.String("speed", string(sp)),
	)
	return ch, nil
}

// take removes a challenge if check accepts it.
func (m *Manager) take(id string, check func(*Challenge) error) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if check != nil {
		if err := check(ch); err != nil {
			return nil, err
		}
	}
	delete(m.challenges, id)
	if m.byOpponent[ch.OpponentID] == id {
		delete(m.byOpponent, ch.OpponentID)
	}
	if t := m.timers[id]; t != nil {
		t.Stop()
		delete(m.timers, id)
	}
	return ch, nil
}

// Respond resolves a challenge for its opponent. Accepting creates the session
// and returns its id.
func (m *Manager) Respond(ctx context.Context, challengeID, userID string, accept bool) (string, error) {
	ch, err := m.take(challengeID, func(ch *Challenge) error {
		if ch.OpponentID != userID {
			return ErrNotChallengeParty
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !accept {
		resp := arenadto.ChallengeResponse{ChallengeID: ch.ID, Accepted: false}
		m.notify(ch.ChallengerID, arenadto.EventChallengeResponse, resp)
		m.notify(ch.OpponentID, arenadto.EventChallengeResponse, resp)
		m.logger.Info("challenge_declined", zap.String("challenge_id", ch.ID))
		return "", nil
	}

	white, black := challengeColors(ch)
	id, err := m.sessions.CreateSession(ctx, session.CreateRequest{
		WhiteID:   white,
		BlackID:   black,
		Speed:     string(ch.Speed),
		MatchType: domain.MatchChallenge,
	})
	if err != nil {
		return "", err
	}
	resp := arenadto.ChallengeResponse{ChallengeID: ch.ID, Accepted: true, SessionID: id}
	m.notify(ch.ChallengerID, arenadto.EventChallengeResponse, resp)
	m.notify(ch.OpponentID, arenadto.EventChallengeResponse, resp)
	m.announceMatch(id, white, black, ch.Speed)
	m.logger.Info("challenge_accepted", zap.String("challenge_id", ch.ID), zap.String("session_id", id))
	return id, nil
}

// CancelChallenge withdraws a challenge; only its challenger may do so.
func (m *Manager) CancelChallenge(challengeID, userID string) error {
	ch, err := m.take(challengeID, func(ch *Challenge) error {
		if ch.ChallengerID != userID {
			return ErrNotChallengeParty
		}
		return nil
	})
	if err != nil {
		return err
	}
	dto := ToDTOChallenge(ch)
	m.notify(ch.OpponentID, arenadto.EventChallengeCancelled, dto)
	m.notify(ch.ChallengerID, arenadto.EventChallengeCancelled, dto)
	return nil
}

func (m *Manager) expire(id string) {
	ch, err := m.take(id, nil)
	if err != nil {
		return
	}
	dto := ToDTOChallenge(ch)
	m.notify(ch.ChallengerID, arenadto.EventChallengeExpired, dto)
	m.notify(ch.OpponentID, arenadto.EventChallengeExpired, dto)
	m.logger.Info("challenge_expired", zap.String("challenge_id", ch.ID))
}

// Pending returns the outstanding challenge addressed to a user, if any. A
// socket opened while one is outstanding is offered it again.
func (m *Manager) Pending(opponentID string) (*Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOpponent[opponentID]
	if !ok {
		return nil, false
	}
	ch := *m.challenges[id]
	return &ch, true
}

func (m *Manager) notify(userID, event string, data any) {
	if m.presence != nil {
		m.presence.Notify(userID, event, data)
	}
}

// ToDTOChallenge is the wire form sent to both parties.
func ToDTOChallenge(ch *Challenge) arenadto.Challenge {
	return arenadto.Challenge{
		ChallengeID:  ch.ID,
		ChallengerID: ch.ChallengerID,
		OpponentID:   ch.OpponentID,
		Speed:        string(ch.Speed),
		ColorChoice:  string(ch.Color),
		ExpiresAt:    ch.ExpiresAt,
	}
}
