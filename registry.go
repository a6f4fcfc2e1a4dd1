package framed

import (
	"sync"
)

type (
	// Registry maps connection ids to live connections. A connection is
	// present iff its state is Active or Closing; teardown removes it
	// synchronously with cleanup. All operations are goroutine-safe and
	// none of them block.
	Registry struct {
		mu    sync.Mutex
		conns map[ConnID]*Conn
	}
)

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[ConnID]*Conn),
	}
}

// Get returns the connection registered under id, if any.
func (r *Registry) Get(id ConnID) (*Conn, bool) {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	return c, ok
}

// Set registers conn under id, replacing any previous holder. Intended for
// advanced consumers; the server inserts accepted connections itself.
func (r *Registry) Set(id ConnID, conn *Conn) {
	r.mu.Lock()
	r.conns[id] = conn
	r.mu.Unlock()
}

// Delete removes id. Removing an absent id is a no-op so that a late error
// callback racing a manual close does not fault.
func (r *Registry) Delete(id ConnID) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	n := len(r.conns)
	r.mu.Unlock()
	return n
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id ConnID) bool {
	r.mu.Lock()
	_, ok := r.conns[id]
	r.mu.Unlock()
	return ok
}

// drain empties the registry and returns the connections it held.
// Used by shutdown to force-close everything in one sweep.
func (r *Registry) drain() []*Conn {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for id, c := range r.conns {
		conns = append(conns, c)
		delete(r.conns, id)
	}
	r.mu.Unlock()
	return conns
}
