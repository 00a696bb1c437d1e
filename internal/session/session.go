package session

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/rules"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrIllegalMove    = errors.New("illegal move")
	ErrNotActive      = errors.New("session not active")
	ErrFinished       = errors.New("session finished")
	ErrUserBusy       = errors.New("user already seated in a live session")
	ErrNotParticipant = errors.New("user is not a participant")
	ErrInvalidPlayers = errors.New("invalid players")
	ErrUnknownSpeed   = errors.New("unknown speed")
	ErrUnknownUser    = errors.New("unknown user")
)

// Session is one live game. Every field below mu is guarded by it.
type Session struct {
	ID        string
	White     domain.User
	Black     domain.User
	Speed     domain.Speed
	MatchType domain.MatchType
	CreatedAt time.Time

	mu           sync.Mutex
	pos          rules.Position
	status       domain.Status
	clockMs      map[domain.Color]int64
	increment    int64
	lastChargeAt time.Time
	turnSpentMs  int64
	startedAt    time.Time
	moves        []domain.MoveRecord
	outcome      *domain.Outcome

	joined       map[domain.Color]bool
	disconnected map[domain.Color]bool
	graceTimers  map[domain.Color]clockwork.Timer
	graceEpoch   map[domain.Color]int
	joinTimer    clockwork.Timer
	stopTicker   chan struct{}
}

func newSession(id string, white, black domain.User, speed domain.Speed, mt domain.MatchType, pos rules.Position, now time.Time) *Session {
	tc := speed.TimeControl()
	initial := tc.Initial.Milliseconds()
	return &Session{
		ID:           id,
		White:        white,
		Black:        black,
		Speed:        speed,
		MatchType:    mt,
		CreatedAt:    now,
		pos:          pos,
		status:       domain.StatusWaiting,
		clockMs:      map[domain.Color]int64{domain.White: initial, domain.Black: initial},
		increment:    tc.Increment.Milliseconds(),
		joined:       make(map[domain.Color]bool, 2),
		disconnected: make(map[domain.Color]bool, 2),
		graceTimers:  make(map[domain.Color]clockwork.Timer, 2),
		graceEpoch:   make(map[domain.Color]int, 2),
	}
}

func (s *Session) colorOf(userID string) (domain.Color, bool) {
	switch userID {
	case s.White.ID:
		return domain.White, true
	case s.Black.ID:
		return domain.Black, true
	}
	return "", false
}

func (s *Session) player(c domain.Color) domain.User {
	if c == domain.White {
		return s.White
	}
	return s.Black
}

// Status returns the current lifecycle state.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Clock returns the remaining milliseconds for both sides as last charged.
func (s *Session) Clock() (white, black int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockMs[domain.White], s.clockMs[domain.Black]
}

// Moves returns a copy of the move list.
func (s *Session) Moves() []domain.MoveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MoveRecord, len(s.moves))
	copy(out, s.moves)
	return out
}

func (s *Session) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.FEN()
}

// Outcome is nil until the session finished.
func (s *Session) Outcome() *domain.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return nil
	}
	o := *s.outcome
	return &o
}

func (s *Session) record(seq int) *domain.MoveRecord {
	if seq < 1 || seq > len(s.moves) {
		return nil
	}
	rec := &s.moves[seq-1]
	if rec.Seq != seq {
		return nil
	}
	return rec
}

func (s *Session) anyDisconnected() bool {
	return s.disconnected[domain.White] || s.disconnected[domain.Black]
}

func (s *Session) stopTimers() {
	for c, t := range s.graceTimers {
		t.Stop()
		delete(s.graceTimers, c)
	}
	if s.joinTimer != nil {
		s.joinTimer.Stop()
		s.joinTimer = nil
	}
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
}
