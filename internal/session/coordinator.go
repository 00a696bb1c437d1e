package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/adapter/arenapresenter"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/analysis"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/reward"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/rules"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/store"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

const (
	persistTimeout  = 10 * time.Second
	snapshotTimeout = 2 * time.Second
)

type Users interface {
	LookupUser(ctx context.Context, id string) (domain.User, error)
}

type GameStore interface {
	SaveGame(ctx context.Context, g domain.GameRecord) error
	UpdateMoveAnalysis(ctx context.Context, gameID string, seq int, res domain.AnalysisResult) error
}

type Ratings interface {
	Apply(ctx context.Context, gameID string, white, black domain.User, outcome domain.Outcome) (domain.RatingChange, bool, error)
}

type Rewards interface {
	Notify(ctx context.Context, ev reward.Event) (bool, error)
}

type Analyzer interface {
	Schedule(job analysis.Job) error
}

type Config struct {
	ReconnectGrace time.Duration
	JoinTimeout    time.Duration
	TickInterval   time.Duration
	RewardAmount   string
}

// Deps are the collaborators of a Coordinator. Only Rules and Users are
// required; a nil optional dependency disables that concern.
type Deps struct {
	Rules     rules.Oracle
	Users     Users
	Store     GameStore
	Ratings   Ratings
	Rewards   Rewards
	Analyzer  Analyzer
	Snapshots Snapshots
	Notifier  Notifier
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

// Coordinator owns every live session and serializes all mutations of a
// session behind that session's lock.
type Coordinator struct {
	cfg      Config
	registry *Registry
	sup      *supervisor

	rules     rules.Oracle
	users     Users
	store     GameStore
	ratings   Ratings
	rewards   Rewards
	analyzer  Analyzer
	snapshots Snapshots
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewCoordinator(cfg Config, deps Deps) *Coordinator {
	if cfg.ReconnectGrace <= 0 {
		cfg.ReconnectGrace = 30 * time.Second
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 2 * time.Minute
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Rules == nil {
		deps.Rules = rules.New()
	}
	return &Coordinator{
		cfg:       cfg,
		registry:  NewRegistry(),
		sup:       newSupervisor(deps.Notifier),
		rules:     deps.Rules,
		users:     deps.Users,
		store:     deps.Store,
		ratings:   deps.Ratings,
		rewards:   deps.Rewards,
		analyzer:  deps.Analyzer,
		snapshots: deps.Snapshots,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
}

func (c *Coordinator) Registry() *Registry { return c.registry }

// Live is the number of sessions not yet finished.
func (c *Coordinator) Live() int { return c.registry.Len() }

type CreateRequest struct {
	WhiteID   string
	BlackID   string
	Speed     string
	MatchType domain.MatchType
}

// CreateSession seats both users in a new waiting session. The session starts
// once both have joined; otherwise it is aborted after the join timeout.
func (c *Coordinator) CreateSession(ctx context.Context, req CreateRequest) (string, error) {
	whiteID := strings.TrimSpace(req.WhiteID)
	blackID := strings.TrimSpace(req.BlackID)
	if whiteID == "" || blackID == "" || whiteID == blackID {
		return "", ErrInvalidPlayers
	}
	speed, ok := domain.ParseSpeed(req.Speed)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSpeed, req.Speed)
	}
	if req.MatchType == "" {
		req.MatchType = domain.MatchDirect
	}
	if _, busy := c.registry.ActiveFor(whiteID); busy {
		return "", ErrUserBusy
	}
	if _, busy := c.registry.ActiveFor(blackID); busy {
		return "", ErrUserBusy
	}
	white, err := c.lookup(ctx, whiteID)
	if err != nil {
		return "", err
	}
	black, err := c.lookup(ctx, blackID)
	if err != nil {
		return "", err
	}

	s := newSession(uuid.NewString(), white, black, speed, req.MatchType, c.rules.NewPosition(), c.clock.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.registry.reserve(s); err != nil {
		return "", err
	}
	id := s.ID
	s.joinTimer = c.clock.AfterFunc(c.cfg.JoinTimeout, func() { c.expireJoin(id) })
	c.saveSnapshotLocked(s)

	c.logger.Info("session_created",
		zap.String("session_id", s.ID),
		zap.String("white_id", white.ID),
		zap.String("black_id", black.ID),
		zap.String("speed", string(speed)),
		zap.String("match_type", string(req.MatchType)),
	)
	return s.ID, nil
}

func (c *Coordinator) lookup(ctx context.Context, id string) (domain.User, error) {
	if c.users == nil {
		return domain.User{ID: id, Rating: store.DefaultRating}, nil
	}
	u, err := c.users.LookupUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user %s: %w", id, err)
	}
	if u.ID == "" {
		u.ID = id
	}
	return u, nil
}

// MoveResult is what the mover's caller gets back.
type MoveResult struct {
	FEN      string
	Terminal bool
	Record   domain.MoveRecord
	Outcome  *domain.Outcome
}

// ApplyMove validates and applies one move. Rejections leave the session
// untouched. A terminal move is finalized before the state is broadcast.
func (c *Coordinator) ApplyMove(ctx context.Context, sessionID, actorID, notation string) (MoveResult, error) {
	s, ok := c.registry.Get(sessionID)
	if !ok {
		return MoveResult{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusFinished:
		return MoveResult{}, ErrFinished
	case domain.StatusWaiting, domain.StatusPaused:
		return MoveResult{}, ErrNotActive
	}
	color, ok := s.colorOf(actorID)
	if !ok {
		return MoveResult{}, ErrNotParticipant
	}
	if color != s.pos.Turn() {
		return MoveResult{}, ErrNotYourTurn
	}

	now := c.clock.Now()
	if s.clockMs[color]-elapsedMs(s.lastChargeAt, now) <= 0 {
		c.chargeLocked(s, now)
		c.finalizeLocked(ctx, s, domain.Outcome{Winner: color.Opposite(), Reason: domain.ReasonTimeout}, true)
		return MoveResult{}, ErrFinished
	}

	fenBefore := s.pos.FEN()
	mv, err := s.pos.Apply(notation)
	if err != nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, strings.TrimSpace(notation))
	}

	c.chargeSideLocked(s, color, now)
	s.clockMs[color] += s.increment
	rec := domain.MoveRecord{
		Seq:           len(s.moves) + 1,
		Notation:      mv.SAN,
		UCI:           mv.UCI,
		Color:         color,
		ActorID:       actorID,
		PositionAfter: s.pos.FEN(),
		DurationMs:    s.turnSpentMs,
		PlayedAt:      now,
	}
	s.turnSpentMs = 0
	st := s.pos.Status()
	checkmate := st.Terminal && st.Reason == domain.ReasonCheckmate

	if c.analyzer != nil {
		err := c.analyzer.Schedule(analysis.Job{
			SessionID: s.ID,
			Seq:       rec.Seq,
			Mover:     color,
			MoveUCI:   mv.UCI,
			FENBefore: fenBefore,
			FENAfter:  rec.PositionAfter,
			Checkmate: checkmate,
		})
		if err != nil {
			res := analysis.NeutralQueueFull(checkmate)
			rec.Analysis = &res
			c.logger.Warn("analysis_degraded", zap.String("session_id", s.ID), zap.Int("seq", rec.Seq), zap.Error(err))
		}
	}
	s.moves = append(s.moves, rec)

	c.logger.Debug("move_applied",
		zap.String("session_id", s.ID),
		zap.String("user_id", actorID),
		zap.Int("seq", rec.Seq),
		zap.String("uci", rec.UCI),
	)

	res := MoveResult{FEN: rec.PositionAfter, Terminal: st.Terminal, Record: rec}
	if st.Terminal {
		out := st.Outcome()
		res.Outcome = &out
		c.finalizeLocked(ctx, s, out, true)
		return res, nil
	}
	c.saveSnapshotLocked(s)
	c.broadcastLocked(s, arenadto.EventGameState, c.viewLocked(s, now, &rec))
	return res, nil
}

// Finalize ends a session. Calling it for an already finished session is a no-op.
func (c *Coordinator) Finalize(ctx context.Context, sessionID string, outcome domain.Outcome) error {
	s, ok := c.registry.Get(sessionID)
	if !ok {
		if c.registry.finished(sessionID) {
			return nil
		}
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.finalizeLocked(ctx, s, outcome, true)
	return nil
}

// finalizeLocked runs exactly once per session; later calls return
// immediately. Persistence happens before the session leaves the registry so
// late analysis always finds the saved game.
func (c *Coordinator) finalizeLocked(parent context.Context, s *Session, outcome domain.Outcome, withState bool) {
	if s.status == domain.StatusFinished {
		return
	}
	now := c.clock.Now()
	c.chargeLocked(s, now)
	s.status = domain.StatusFinished
	s.outcome = &outcome
	s.stopTimers()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), persistTimeout)
	defer cancel()

	rec := c.gameRecordLocked(s, outcome, now)
	if c.store != nil && !outcome.Aborted() {
		if err := c.store.SaveGame(ctx, rec); err != nil {
			c.logger.Error("game_persist_failed", zap.String("session_id", s.ID), zap.Error(err))
		}
	}

	var change *domain.RatingChange
	if c.ratings != nil {
		rc, applied, err := c.ratings.Apply(ctx, s.ID, s.White, s.Black, outcome)
		switch {
		case err != nil:
			c.logger.Error("rating_update_failed", zap.String("session_id", s.ID), zap.Error(err))
		case applied:
			change = &rc
		}
	}

	c.registry.remove(s)
	c.deleteSnapshot(ctx, s)

	if withState {
		c.broadcastLocked(s, arenadto.EventGameState, c.viewLocked(s, now, nil))
	}
	c.broadcastLocked(s, arenadto.EventGameOver, arenapresenter.ToDTOGameOver(rec, change))
	c.sup.dropSession(s.ID, s.White.ID, s.Black.ID)

	if c.rewards != nil && outcome.Winner != "" && !outcome.Aborted() {
		winner := s.player(outcome.Winner)
		_, err := c.rewards.Notify(ctx, reward.Event{
			WinnerID:      winner.ID,
			WalletAddress: winner.Wallet,
			Amount:        c.cfg.RewardAmount,
			GameID:        s.ID,
			MatchType:     string(s.MatchType),
		})
		if err != nil {
			c.logger.Error("reward_notify_failed", zap.String("session_id", s.ID), zap.Error(err))
		}
	}

	c.logger.Info("session_finalized",
		zap.String("session_id", s.ID),
		zap.String("result", rec.Result),
		zap.String("reason", string(outcome.Reason)),
		zap.Int("moves", len(s.moves)),
	)
}

func (c *Coordinator) gameRecordLocked(s *Session, outcome domain.Outcome, now time.Time) domain.GameRecord {
	moves := make([]domain.MoveRecord, len(s.moves))
	copy(moves, s.moves)
	started := s.startedAt
	if started.IsZero() {
		started = s.CreatedAt
	}
	var winnerID string
	if outcome.Winner != "" && !outcome.Aborted() {
		winnerID = s.player(outcome.Winner).ID
	}
	tags := map[string]string{
		"Event":       "Arena " + string(s.MatchType),
		"Site":        "arena",
		"Date":        started.UTC().Format("2006.01.02"),
		"White":       s.White.ID,
		"Black":       s.Black.ID,
		"WhiteElo":    strconv.Itoa(s.White.Rating),
		"BlackElo":    strconv.Itoa(s.Black.Rating),
		"TimeControl": s.Speed.TimeControl().String(),
	}
	return domain.GameRecord{
		ID:        s.ID,
		WhiteID:   s.White.ID,
		BlackID:   s.Black.ID,
		Speed:     s.Speed,
		MatchType: s.MatchType,
		Result:    outcome.Result(),
		Reason:    outcome.Reason,
		WinnerID:  winnerID,
		FinalFEN:  s.pos.FEN(),
		PGN:       s.pos.PGN(outcome, tags),
		Moves:     moves,
		Accuracy:  analysis.SessionAccuracy(moves),
		StartedAt: started,
		EndedAt:   now,
	}
}

// DeliverAnalysis attaches a result to its move. Results for sessions that
// already finished go straight to the store.
func (c *Coordinator) DeliverAnalysis(ctx context.Context, sessionID string, seq int, res domain.AnalysisResult) {
	if s, ok := c.registry.Get(sessionID); ok {
		s.mu.Lock()
		if s.status != domain.StatusFinished {
			if rec := s.record(seq); rec != nil {
				r := res
				rec.Analysis = &r
				c.broadcastLocked(s, arenadto.EventMoveAnalysis, arenadto.MoveAnalysis{
					SessionID: s.ID,
					Seq:       seq,
					Analysis:  *arenapresenter.ToDTOAnalysis(&r),
				})
			}
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
	if c.store == nil {
		return
	}
	if err := c.store.UpdateMoveAnalysis(ctx, sessionID, seq, res); err != nil {
		c.logger.Warn("late_analysis_dropped",
			zap.String("session_id", sessionID),
			zap.Int("seq", seq),
			zap.Error(err),
		)
	}
}

// snapshotReader is implemented by snapshot stores that can be read back.
type snapshotReader interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	SessionFor(ctx context.Context, userID string) (string, error)
}

// State returns the live view of a session. Sessions owned by another
// process are served from the last mirrored snapshot.
func (c *Coordinator) State(ctx context.Context, sessionID string) (Snapshot, error) {
	if s, ok := c.registry.Get(sessionID); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return c.snapshotLocked(s), nil
	}
	r, ok := c.snapshots.(snapshotReader)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	snap, err := r.Load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return Snapshot{}, ErrNotFound
	}
	return *snap, nil
}

// ActiveGame returns the session a user is seated in.
func (c *Coordinator) ActiveGame(ctx context.Context, userID string) (Snapshot, error) {
	if id, ok := c.registry.ActiveFor(userID); ok {
		return c.State(ctx, id)
	}
	r, ok := c.snapshots.(snapshotReader)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	id, err := r.SessionFor(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("user index: %w", err)
	}
	if id == "" {
		return Snapshot{}, ErrNotFound
	}
	return c.State(ctx, id)
}

func (c *Coordinator) viewLocked(s *Session, now time.Time, last *domain.MoveRecord) arenadto.GameState {
	white, black := s.clockMs[domain.White], s.clockMs[domain.Black]
	if s.status == domain.StatusActive {
		pending := elapsedMs(s.lastChargeAt, now)
		if s.pos.Turn() == domain.White {
			white -= pending
		} else {
			black -= pending
		}
	}
	gs := arenadto.GameState{
		SessionID:   s.ID,
		WhiteID:     s.White.ID,
		BlackID:     s.Black.ID,
		Speed:       string(s.Speed),
		MatchType:   string(s.MatchType),
		Status:      string(s.status),
		FEN:         s.pos.FEN(),
		Turn:        string(s.pos.Turn()),
		WhiteTimeMs: max(white, 0),
		BlackTimeMs: max(black, 0),
		MoveCount:   len(s.moves),
	}
	if last == nil && len(s.moves) > 0 {
		last = &s.moves[len(s.moves)-1]
	}
	if last != nil {
		mv := arenapresenter.ToDTOMove(*last)
		gs.LastMove = &mv
	}
	return gs
}

func (c *Coordinator) broadcastLocked(s *Session, event string, data any) {
	c.sup.send(s.ID, s.White.ID, event, data)
	c.sup.send(s.ID, s.Black.ID, event, data)
}

func (c *Coordinator) sendToLocked(s *Session, color domain.Color, event string, data any) {
	c.sup.send(s.ID, s.player(color).ID, event, data)
}
