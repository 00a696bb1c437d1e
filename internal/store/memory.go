package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/analysis"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

// MemoryRepository is an in-process store for local runs and tests.
type MemoryRepository struct {
	mu            sync.RWMutex
	autoProvision bool
	users         map[string]domain.User
	games         map[string]domain.GameRecord
	late          map[string]map[int]domain.AnalysisResult
	applied       map[string]bool
}

// NewMemoryRepository returns an empty store. With autoProvision, unknown
// users are created at DefaultRating on first lookup.
func NewMemoryRepository(autoProvision bool) *MemoryRepository {
	return &MemoryRepository{
		autoProvision: autoProvision,
		users:         make(map[string]domain.User),
		games:         make(map[string]domain.GameRecord),
		late:          make(map[string]map[int]domain.AnalysisResult),
		applied:       make(map[string]bool),
	}
}

func (m *MemoryRepository) PutUser(u domain.User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *MemoryRepository) LookupUser(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if ok {
		return u, nil
	}
	if !m.autoProvision || id == "" {
		return domain.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u = domain.User{ID: id, Rating: DefaultRating}
	m.users[id] = u
	return u, nil
}

func (m *MemoryRepository) SaveGame(ctx context.Context, g domain.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	moves := make([]domain.MoveRecord, len(g.Moves))
	copy(moves, g.Moves)
	merged := false
	for i := range moves {
		if moves[i].Analysis != nil {
			a := *moves[i].Analysis
			moves[i].Analysis = &a
			continue
		}
		if a, ok := m.late[g.ID][moves[i].Seq]; ok {
			moves[i].Analysis = &a
			merged = true
		}
	}
	g.Moves = moves
	if merged {
		g.Accuracy = analysis.SessionAccuracy(moves)
	}
	m.games[g.ID] = g
	return nil
}

func (m *MemoryRepository) UpdateMoveAnalysis(ctx context.Context, gameID string, seq int, res domain.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		for i := range g.Moves {
			if g.Moves[i].Seq == seq {
				a := res
				g.Moves[i].Analysis = &a
			}
		}
		g.Accuracy = analysis.SessionAccuracy(g.Moves)
		m.games[gameID] = g
		return nil
	}
	if m.late[gameID] == nil {
		m.late[gameID] = make(map[int]domain.AnalysisResult)
	}
	m.late[gameID][seq] = res
	return nil
}

func (m *MemoryRepository) ApplyRatings(ctx context.Context, c domain.RatingChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied[c.GameID] {
		return nil
	}
	m.applied[c.GameID] = true
	for _, s := range []struct {
		id     string
		before int
		delta  int
	}{{c.WhiteID, c.WhiteBefore, c.WhiteDelta}, {c.BlackID, c.BlackBefore, c.BlackDelta}} {
		u, ok := m.users[s.id]
		if !ok {
			u = domain.User{ID: s.id, Rating: s.before}
		}
		u.Rating += s.delta
		m.users[s.id] = u
	}
	return nil
}

// Game returns a copy of a saved game.
func (m *MemoryRepository) Game(id string) (domain.GameRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return domain.GameRecord{}, false
	}
	g.Moves = append([]domain.MoveRecord(nil), g.Moves...)
	return g, true
}

// Games lists saved game ids in order.
func (m *MemoryRepository) Games() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
