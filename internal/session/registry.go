package session

import "sync"

const tombstoneCap = 1024

// Registry indexes live sessions by id and by participant.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]string

	// recently finished ids, so a late Finalize can no-op instead of failing
	tombs     map[string]struct{}
	tombOrder []string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
		tombs:    make(map[string]struct{}),
	}
}

// reserve registers s unless one of its players already sits in a live session.
func (r *Registry) reserve(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.byUser[s.White.ID]; busy {
		return ErrUserBusy
	}
	if _, busy := r.byUser[s.Black.ID]; busy {
		return ErrUserBusy
	}
	r.sessions[s.ID] = s
	r.byUser[s.White.ID] = s.ID
	r.byUser[s.Black.ID] = s.ID
	return nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ActiveFor returns the live session a user is seated in.
func (r *Registry) ActiveFor(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID]; !ok || cur != s {
		return
	}
	delete(r.sessions, s.ID)
	for _, uid := range []string{s.White.ID, s.Black.ID} {
		if r.byUser[uid] == s.ID {
			delete(r.byUser, uid)
		}
	}
	r.tombs[s.ID] = struct{}{}
	r.tombOrder = append(r.tombOrder, s.ID)
	if len(r.tombOrder) > tombstoneCap {
		delete(r.tombs, r.tombOrder[0])
		r.tombOrder = r.tombOrder[1:]
	}
}

func (r *Registry) finished(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tombs[id]
	return ok
}
