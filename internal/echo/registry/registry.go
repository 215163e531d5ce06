package registry

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyRegistered - returns when handle with the same ID is kept already.
	// Registry keeps the first handle, do not close the connection because of this error.
	ErrAlreadyRegistered = errors.New("registry.Registry: connection is kept already")

	// ErrClosed - returns when registry has been closed with CloseAll
	// and does not accept new connections, so you should close such connection by your own.
	ErrClosed = errors.New("registry.Registry: closed")
)

// Registry - thread-safe directory of currently open connections.
// Register, Unregister and CloseAll share the same lock.
type Registry struct {
	mu     sync.Mutex
	closed bool
	list   map[ID]*Handle
}

// New - builds empty registry.
func New() *Registry {
	return &Registry{
		list: make(map[ID]*Handle),
	}
}

// Len - returns number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// Get - returns registered handle by id.
func (r *Registry) Get(id ID) (h *Handle, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok = r.list[id]
	return h, ok
}

// Contains - reports handle with given id is registered.
func (r *Registry) Contains(id ID) bool {
	_, ok := r.Get(id)
	return ok
}

// Register - adds handle into registry.
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, ok := r.list[h.ID]; ok {
		return ErrAlreadyRegistered
	}
	r.list[h.ID] = h
	return nil
}

// Unregister - forgets handle by id. Returns false if there was no such handle.
func (r *Registry) Unregister(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.list[id]; !ok {
		return false
	}
	delete(r.list, id)
	return true
}

// CloseAll - closes every registered connection, clears the registry
// and rejects any further registration. Returns number of closed handles.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	n := 0
	for id, h := range r.list {
		h.Close()
		delete(r.list, id)
		n++
	}
	return n
}

// Scan - calls f for snapshot of registered handles.
// f is called without the registry lock held.
func (r *Registry) Scan(f func(*Handle)) {
	r.mu.Lock()
	snapshot := make([]*Handle, 0, len(r.list))
	for _, h := range r.list {
		snapshot = append(snapshot, h)
	}
	r.mu.Unlock()
	for _, h := range snapshot {
		f(h)
	}
}
