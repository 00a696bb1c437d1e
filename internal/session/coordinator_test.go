package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/analysis"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/rating"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/reward"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/store"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

type sent struct {
	event string
	data  any
}

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []sent
	closed string
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(event string, data any) error {
	f.mu.Lock()
	f.events = append(f.events, sent{event: event, data: data})
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close(reason string) {
	f.mu.Lock()
	f.closed = reason
	f.mu.Unlock()
}

func (f *fakeConn) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (f *fakeConn) lastIndex(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].event == event {
			return i
		}
	}
	return -1
}

func (f *fakeConn) last(event string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].event == event {
			return f.events[i].data
		}
	}
	return nil
}

type fakeAnalyzer struct {
	mu   sync.Mutex
	jobs []analysis.Job
	full bool
}

func (a *fakeAnalyzer) Schedule(job analysis.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.full {
		return analysis.ErrQueueFull
	}
	a.jobs = append(a.jobs, job)
	return nil
}

type fakeRewards struct {
	mu     sync.Mutex
	events []reward.Event
}

func (r *fakeRewards) Notify(ctx context.Context, ev reward.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true, nil
}

func (r *fakeRewards) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type harness struct {
	c        *Coordinator
	clock    clockwork.FakeClock
	repo     *store.MemoryRepository
	analyzer *fakeAnalyzer
	rewards  *fakeRewards
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, tick time.Duration) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClockAt(t0),
		repo:     store.NewMemoryRepository(true),
		analyzer: &fakeAnalyzer{},
		rewards:  &fakeRewards{},
	}
	h.repo.PutUser(domain.User{ID: "alice", Rating: 1200, Wallet: "0xa11ce"})
	h.repo.PutUser(domain.User{ID: "bob", Rating: 1200, Wallet: "0xb0b"})
	h.c = NewCoordinator(Config{
		ReconnectGrace: 30 * time.Second,
		JoinTimeout:    2 * time.Minute,
		TickInterval:   tick,
		RewardAmount:   "10",
	}, Deps{
		Users:    h.repo,
		Store:    h.repo,
		Ratings:  rating.NewUpdater(h.repo, nil),
		Rewards:  h.rewards,
		Analyzer: h.analyzer,
		Clock:    h.clock,
	})
	return h
}

// start creates alice (white) vs bob (black) and joins both.
func (h *harness) start(t *testing.T, speed string) (string, *fakeConn, *fakeConn) {
	t.Helper()
	ctx := context.Background()
	id, err := h.c.CreateSession(ctx, CreateRequest{WhiteID: "alice", BlackID: "bob", Speed: speed, MatchType: domain.MatchQueue})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wc, bc := &fakeConn{id: "w1"}, &fakeConn{id: "b1"}
	if err := h.c.Join(ctx, wc, id, "alice"); err != nil {
		t.Fatalf("join white: %v", err)
	}
	if err := h.c.Join(ctx, bc, id, "bob"); err != nil {
		t.Fatalf("join black: %v", err)
	}
	return id, wc, bc
}

func (h *harness) session(t *testing.T, id string) *Session {
	t.Helper()
	s, ok := h.c.Registry().Get(id)
	if !ok {
		t.Fatalf("session %s not live", id)
	}
	return s
}

func (h *harness) play(t *testing.T, id string, moves ...string) {
	t.Helper()
	users := []string{"alice", "bob"}
	for i, mv := range moves {
		if _, err := h.c.ApplyMove(context.Background(), id, users[i%2], mv); err != nil {
			t.Fatalf("move %d %s: %v", i+1, mv, err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCreateSessionValidation(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"empty", CreateRequest{WhiteID: "", BlackID: "bob", Speed: "blitz"}, ErrInvalidPlayers},
		{"same", CreateRequest{WhiteID: "bob", BlackID: "bob", Speed: "blitz"}, ErrInvalidPlayers},
		{"speed", CreateRequest{WhiteID: "alice", BlackID: "bob", Speed: "hyper"}, ErrUnknownSpeed},
	}
	for _, tc := range cases {
		if _, err := h.c.CreateSession(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := h.c.CreateSession(ctx, CreateRequest{WhiteID: "alice", BlackID: "bob", Speed: "blitz"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.c.CreateSession(ctx, CreateRequest{WhiteID: "carol", BlackID: "alice", Speed: "blitz"}); !errors.Is(err, ErrUserBusy) {
		t.Fatalf("expected ErrUserBusy, got %v", err)
	}
	if h.c.Registry().Len() != 1 {
		t.Fatalf("expected one live session, got %d", h.c.Registry().Len())
	}
}

func TestCreateSessionUnknownUser(t *testing.T) {
	repo := store.NewMemoryRepository(false)
	repo.PutUser(domain.User{ID: "alice", Rating: 1200})
	c := NewCoordinator(Config{}, Deps{Users: repo, Clock: clockwork.NewFakeClock()})
	_, err := c.CreateSession(context.Background(), CreateRequest{WhiteID: "alice", BlackID: "ghost", Speed: "rapid"})
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if c.Registry().Len() != 0 {
		t.Fatalf("failed create must not register a session")
	}
}

func TestSessionStartsOnceBothJoined(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	id, err := h.c.CreateSession(ctx, CreateRequest{WhiteID: "alice", BlackID: "bob", Speed: "rapid"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wc := &fakeConn{id: "w1"}
	if err := h.c.Join(ctx, wc, id, "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	s := h.session(t, id)
	if s.Status() != domain.StatusWaiting {
		t.Fatalf("expected waiting, got %s", s.Status())
	}
	if _, err := h.c.ApplyMove(ctx, id, "alice", "e2e4"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive before start, got %v", err)
	}
	if err := h.c.Join(ctx, &fakeConn{id: "x"}, id, "mallory"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if err := h.c.Join(ctx, &fakeConn{id: "b1"}, id, "bob"); err != nil {
		t.Fatalf("join black: %v", err)
	}
	if s.Status() != domain.StatusActive {
		t.Fatalf("expected active, got %s", s.Status())
	}
	if wc.count(arenadto.EventGameState) < 2 {
		t.Fatalf("white should see the start broadcast")
	}
}

func TestApplyMoveRejectionsLeaveStateUntouched(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, _, _ := h.start(t, "blitz")
	s := h.session(t, id)
	ctx := context.Background()
	fen := s.FEN()
	h.clock.Advance(4 * time.Second)

	if _, err := h.c.ApplyMove(ctx, "nope", "alice", "e2e4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := h.c.ApplyMove(ctx, id, "bob", "e7e5"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := h.c.ApplyMove(ctx, id, "mallory", "e2e4"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := h.c.ApplyMove(ctx, id, "alice", "e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if s.FEN() != fen || len(s.Moves()) != 0 {
		t.Fatalf("rejected moves mutated the session")
	}
	w, b := s.Clock()
	if w != 180000 || b != 180000 {
		t.Fatalf("rejections must not charge clocks: %d %d", w, b)
	}
	if len(h.analyzer.jobs) != 0 {
		t.Fatalf("rejections must not schedule analysis")
	}
}

func TestApplyMoveChargesMoverAndCreditsIncrement(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, wc, bc := h.start(t, "blitz")
	s := h.session(t, id)

	h.clock.Advance(5 * time.Second)
	res, err := h.c.ApplyMove(context.Background(), id, "alice", "e4")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if res.Record.UCI != "e2e4" || res.Record.Notation != "e4" || res.Record.Seq != 1 {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
	if res.Record.Color != domain.White || res.Record.DurationMs != 5000 {
		t.Fatalf("unexpected mover/duration: %+v", res.Record)
	}
	w, b := s.Clock()
	if w != 180000-5000+2000 || b != 180000 {
		t.Fatalf("unexpected clocks: white=%d black=%d", w, b)
	}

	h.clock.Advance(3 * time.Second)
	if _, err := h.c.ApplyMove(context.Background(), id, "bob", "e7e5"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	w, b = s.Clock()
	if w != 177000 || b != 180000-3000+2000 {
		t.Fatalf("non-moving side must keep its clock: white=%d black=%d", w, b)
	}

	if len(h.analyzer.jobs) != 2 {
		t.Fatalf("expected 2 analysis jobs, got %d", len(h.analyzer.jobs))
	}
	job := h.analyzer.jobs[0]
	if job.Seq != 1 || job.Mover != domain.White || job.MoveUCI != "e2e4" || job.FENBefore == job.FENAfter {
		t.Fatalf("unexpected job: %+v", job)
	}
	for _, conn := range []*fakeConn{wc, bc} {
		gs, ok := conn.last(arenadto.EventGameState).(arenadto.GameState)
		if !ok || gs.MoveCount != 2 || gs.LastMove == nil || gs.LastMove.UCI != "e7e5" {
			t.Fatalf("%s: unexpected state broadcast %+v", conn.id, gs)
		}
	}
}

func TestMoverThinkingTimeNeverFlagsOpponent(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, _, _ := h.start(t, "bullet")
	s := h.session(t, id)

	h.clock.Advance(59 * time.Second)
	if _, err := h.c.ApplyMove(context.Background(), id, "alice", "e2e4"); err != nil {
		t.Fatalf("move: %v", err)
	}
	w, b := s.Clock()
	if w != 1000 || b != 60000 {
		t.Fatalf("mover's time billed to the wrong side: white=%d black=%d", w, b)
	}

	h.clock.Advance(2 * time.Second)
	h.c.tick(s)
	if s.Status() != domain.StatusActive {
		t.Fatalf("black flagged for white's thinking time")
	}
	if _, b = s.Clock(); b != 58000 {
		t.Fatalf("black clock after tick = %d", b)
	}
}

func TestQueueFullDegradesAnalysis(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.analyzer.full = true
	id, _, _ := h.start(t, "rapid")
	res, err := h.c.ApplyMove(context.Background(), id, "alice", "d2d4")
	if err != nil {
		t.Fatalf("move must be accepted even when analysis is saturated: %v", err)
	}
	if res.Record.Analysis == nil || res.Record.Analysis.Error != "queue_full" {
		t.Fatalf("expected queue_full neutral analysis, got %+v", res.Record.Analysis)
	}
}

func TestCheckmateFinalizesExactlyOnce(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, wc, bc := h.start(t, "blitz")
	h.play(t, id, "f2f3", "e7e5", "g2g4")
	res, err := h.c.ApplyMove(context.Background(), id, "bob", "d8h4")
	if err != nil {
		t.Fatalf("mate: %v", err)
	}
	if !res.Terminal || res.Outcome == nil || res.Outcome.Winner != domain.Black || res.Outcome.Reason != domain.ReasonCheckmate {
		t.Fatalf("unexpected result: %+v", res)
	}

	if err := h.c.Finalize(context.Background(), id, domain.Outcome{Winner: domain.White, Reason: domain.ReasonTimeout}); err != nil {
		t.Fatalf("second finalize should no-op, got %v", err)
	}
	if _, err := h.c.ApplyMove(context.Background(), id, "alice", "e2e4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("finished session must be gone from the registry, got %v", err)
	}

	for _, conn := range []*fakeConn{wc, bc} {
		if n := conn.count(arenadto.EventGameOver); n != 1 {
			t.Fatalf("%s: expected one gameOver, got %d", conn.id, n)
		}
		if conn.lastIndex(arenadto.EventGameState) > conn.lastIndex(arenadto.EventGameOver) {
			t.Fatalf("%s: gameOver must follow the final state", conn.id)
		}
		over := conn.last(arenadto.EventGameOver).(arenadto.GameOver)
		if over.Result != "0-1" || over.WinnerID != "bob" || over.EloUpdate == nil || over.EloUpdate.Black.Delta != 16 {
			t.Fatalf("%s: unexpected gameOver %+v", conn.id, over)
		}
	}
	gs := wc.last(arenadto.EventGameState).(arenadto.GameState)
	if gs.Status != string(domain.StatusFinished) {
		t.Fatalf("final broadcast should already be finished, got %s", gs.Status)
	}

	g, ok := h.repo.Game(id)
	if !ok {
		t.Fatalf("game not persisted")
	}
	if g.Result != "0-1" || g.Reason != domain.ReasonCheckmate || g.WinnerID != "bob" || len(g.Moves) != 4 || g.PGN == "" {
		t.Fatalf("unexpected record: %+v", g)
	}
	alice, _ := h.repo.LookupUser(context.Background(), "alice")
	bob, _ := h.repo.LookupUser(context.Background(), "bob")
	if alice.Rating != 1184 || bob.Rating != 1216 {
		t.Fatalf("unexpected ratings: %d %d", alice.Rating, bob.Rating)
	}
	if h.rewards.count() != 1 || h.rewards.events[0].WinnerID != "bob" || h.rewards.events[0].WalletAddress != "0xb0b" {
		t.Fatalf("expected one reward for bob, got %+v", h.rewards.events)
	}
	if _, busy := h.c.Registry().ActiveFor("alice"); busy {
		t.Fatalf("alice should be free after finalize")
	}
}

func TestFlagFallAtMoveTime(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, wc, _ := h.start(t, "bullet")
	h.clock.Advance(61 * time.Second)
	if _, err := h.c.ApplyMove(context.Background(), id, "alice", "e2e4"); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished on flag fall, got %v", err)
	}
	over, ok := wc.last(arenadto.EventGameOver).(arenadto.GameOver)
	if !ok || over.Reason != string(domain.ReasonTimeout) || over.WinnerID != "bob" {
		t.Fatalf("unexpected gameOver: %+v", over)
	}
	g, _ := h.repo.Game(id)
	if len(g.Moves) != 0 {
		t.Fatalf("flagged move must not be recorded")
	}
}

func TestTickFlagsSideToMove(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, _, bc := h.start(t, "bullet")
	s := h.session(t, id)

	h.clock.Advance(20 * time.Second)
	h.c.tick(s)
	w, _ := s.Clock()
	if w != 40000 {
		t.Fatalf("expected 40s left, got %d", w)
	}
	if bc.count(arenadto.EventTimeUpdate) != 1 {
		t.Fatalf("tick must broadcast timeUpdate")
	}

	h.clock.Advance(41 * time.Second)
	h.c.tick(s)
	out := s.Outcome()
	if out == nil || out.Reason != domain.ReasonTimeout || out.Winner != domain.Black {
		t.Fatalf("expected white to flag, got %+v", out)
	}
	h.c.tick(s)
	if bc.count(arenadto.EventGameOver) != 1 {
		t.Fatalf("ticks after finalize must not finalize again")
	}
}

func TestDisconnectWithinGraceResumesWithoutCharge(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, wc, bc := h.start(t, "rapid")
	s := h.session(t, id)
	h.clock.Advance(2 * time.Second)
	h.play(t, id, "e2e4")

	h.clock.Advance(3 * time.Second)
	h.c.Disconnect(bc)
	if s.Status() != domain.StatusPaused {
		t.Fatalf("expected paused, got %s", s.Status())
	}
	if wc.count(arenadto.EventOpponentDisconnected) != 1 {
		t.Fatalf("white should be told about the disconnect")
	}
	if _, err := h.c.ApplyMove(context.Background(), id, "bob", "e7e5"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("moves while paused must be rejected, got %v", err)
	}

	h.clock.Advance(29 * time.Second)
	bc2 := &fakeConn{id: "b2"}
	if err := h.c.Join(context.Background(), bc2, id, "bob"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if s.Status() != domain.StatusActive {
		t.Fatalf("expected active after rejoin, got %s", s.Status())
	}
	_, b := s.Clock()
	if b != 600000-3000 {
		t.Fatalf("paused time must not be charged, black=%d", b)
	}
	hist, ok := bc2.last(arenadto.EventMoveHistory).(arenadto.MoveHistory)
	if !ok || len(hist.Moves) != 1 || hist.Moves[0].UCI != "e2e4" {
		t.Fatalf("rejoin must replay history, got %+v", hist)
	}
	if wc.count(arenadto.EventGameResumed) != 1 {
		t.Fatalf("white should see gameResumed")
	}

	h.clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if s.Status() != domain.StatusActive {
		t.Fatalf("cancelled grace timer must not forfeit")
	}
}

func TestGraceExpiryForfeitsDisconnectedSide(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, wc, bc := h.start(t, "rapid")
	h.play(t, id, "e2e4")
	h.c.Disconnect(bc)

	h.clock.Advance(31 * time.Second)
	waitFor(t, "disconnect forfeit", func() bool {
		_, ok := h.repo.Game(id)
		return ok
	})
	g, _ := h.repo.Game(id)
	if g.Reason != domain.ReasonDisconnect || g.WinnerID != "alice" {
		t.Fatalf("unexpected record: %+v", g)
	}
	waitFor(t, "gameOver to white", func() bool { return wc.count(arenadto.EventGameOver) == 1 })
}

func TestSupersededSocketCloseIsIgnored(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, _, bc := h.start(t, "rapid")
	s := h.session(t, id)

	bc2 := &fakeConn{id: "b2"}
	if err := h.c.Join(context.Background(), bc2, id, "bob"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	bc.mu.Lock()
	closed := bc.closed
	bc.mu.Unlock()
	if closed != "superseded" {
		t.Fatalf("older socket should be closed, got %q", closed)
	}
	h.c.Disconnect(bc)
	if s.Status() != domain.StatusActive {
		t.Fatalf("closing a superseded socket must not pause, got %s", s.Status())
	}
	h.c.Disconnect(bc2)
	if s.Status() != domain.StatusPaused {
		t.Fatalf("closing the bound socket must pause, got %s", s.Status())
	}
}

func TestLeaveForfeitsImmediately(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, _, bc := h.start(t, "classical")
	h.play(t, id, "e2e4", "c7c5")
	if err := h.c.Leave(context.Background(), id, "alice"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	over := bc.last(arenadto.EventGameOver).(arenadto.GameOver)
	if over.Reason != string(domain.ReasonAbandon) || over.WinnerID != "bob" || over.Result != "0-1" {
		t.Fatalf("unexpected gameOver: %+v", over)
	}
	if err := h.c.Leave(context.Background(), id, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second leave: expected ErrNotFound, got %v", err)
	}
}

func TestJoinTimeoutAbortsWithoutRating(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, err := h.c.CreateSession(context.Background(), CreateRequest{WhiteID: "alice", BlackID: "bob", Speed: "blitz"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wc := &fakeConn{id: "w1"}
	if err := h.c.Join(context.Background(), wc, id, "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	h.clock.Advance(2*time.Minute + time.Second)
	waitFor(t, "abort", func() bool { return wc.count(arenadto.EventGameOver) == 1 })

	over, ok := wc.last(arenadto.EventGameOver).(arenadto.GameOver)
	if !ok || over.Reason != string(domain.ReasonAborted) || over.Result != "*" || over.EloUpdate != nil {
		t.Fatalf("unexpected gameOver: %+v", over)
	}
	if _, ok := h.repo.Game(id); ok {
		t.Fatalf("aborted sessions are not persisted")
	}
	alice, _ := h.repo.LookupUser(context.Background(), "alice")
	if alice.Rating != 1200 || h.rewards.count() != 0 {
		t.Fatalf("aborted session must not touch ratings or rewards")
	}
}

func TestDeliverAnalysisLiveAndAfterFinish(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, wc, _ := h.start(t, "rapid")
	s := h.session(t, id)
	h.play(t, id, "e2e4", "e7e5")
	ctx := context.Background()

	h.c.DeliverAnalysis(ctx, id, 1, domain.AnalysisResult{Classification: domain.ClassBest, WinProbBefore: 0.52, WinProbAfter: 0.52, BestMoveWinProb: 0.52})
	if a := s.Moves()[0].Analysis; a == nil || a.Classification != domain.ClassBest {
		t.Fatalf("live analysis not attached: %+v", a)
	}
	ma, ok := wc.last(arenadto.EventMoveAnalysis).(arenadto.MoveAnalysis)
	if !ok || ma.Seq != 1 || ma.Analysis.Classification != "Best" {
		t.Fatalf("unexpected moveAnalysis: %+v", ma)
	}

	if err := h.c.Leave(ctx, id, "bob"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if g, _ := h.repo.Game(id); g.Accuracy.Black != 0 {
		t.Fatalf("black scored before any analysis: %+v", g.Accuracy)
	}
	h.c.DeliverAnalysis(ctx, id, 2, domain.AnalysisResult{Classification: domain.ClassInaccuracy, PointsLost: 0.125})
	g, _ := h.repo.Game(id)
	if g.Accuracy.Black != 55 {
		t.Fatalf("late analysis did not rescore black accuracy: %+v", g.Accuracy)
	}
	if g.Moves[1].Analysis == nil || g.Moves[1].Analysis.Classification != domain.ClassInaccuracy {
		t.Fatalf("late analysis not persisted: %+v", g.Moves[1])
	}
	if g.Moves[0].Analysis == nil || g.Moves[0].Analysis.Classification != domain.ClassBest {
		t.Fatalf("live analysis lost on persist")
	}
}

func TestRegistryTombstones(t *testing.T) {
	r := NewRegistry()
	s := &Session{ID: "s1", White: domain.User{ID: "a"}, Black: domain.User{ID: "b"}}
	if err := r.reserve(s); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := r.reserve(&Session{ID: "s2", White: domain.User{ID: "c"}, Black: domain.User{ID: "b"}}); !errors.Is(err, ErrUserBusy) {
		t.Fatalf("expected ErrUserBusy, got %v", err)
	}
	r.remove(s)
	if _, ok := r.Get("s1"); ok || !r.finished("s1") {
		t.Fatalf("removed session should be tombstoned")
	}
	if _, ok := r.ActiveFor("b"); ok {
		t.Fatalf("user index not cleared")
	}
}
