package gateway

import "sync"

// Hub tracks live sockets per user. It satisfies both session.Notifier and
// matchmaking.Presence.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[string]*Conn)}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[c.userID]
	if set == nil {
		set = make(map[string]*Conn)
		h.conns[c.userID] = set
	}
	set[c.id] = c
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[c.userID]
	delete(set, c.id)
	if len(set) == 0 {
		delete(h.conns, c.userID)
	}
}

func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Notify sends to every socket the user has open.
func (h *Hub) Notify(userID, event string, data any) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns[userID]))
	for _, c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		_ = c.Send(event, data)
	}
}

// Len is the number of open sockets.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}
