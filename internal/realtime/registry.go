package realtime

import (
	"sync"

	"github.com/oggyb/muzz-match/internal/metrics"
)

// Registry maps a user id to at most one live connection on this instance.
// The newest registration wins; the replaced handle is invalidated so its
// owner shuts it down.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Register binds conn to userID, replacing any previous handle.
func (r *Registry) Register(userID string, conn *Conn) {
	r.mu.Lock()
	prev, existed := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if !existed {
		metrics.ActiveConnections.Inc()
		return
	}
	if prev != conn {
		prev.Invalidate()
	}
}

// Unregister removes the mapping only while conn is still the registered
// handle, so a late close of a replaced connection cannot evict its successor.
// It reports whether anything was removed.
func (r *Registry) Unregister(userID string, conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.conns[userID]
	if !ok || cur != conn {
		return false
	}
	delete(r.conns, userID)
	metrics.ActiveConnections.Dec()
	return true
}

// Lookup never blocks on I/O.
func (r *Registry) Lookup(userID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll invalidates every handle. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Invalidate()
	}
}
