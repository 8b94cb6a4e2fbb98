package session

import "sync"

// Registry maps session ids to their handlers. Handlers are created lazily on
// first use and kept for the life of the process: there is no eviction, so
// memory grows with the number of distinct sessions seen. Teardown is process
// exit.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]*Handler
	factory  func() *Handler
}

func NewRegistry(factory func() *Handler) *Registry {
	return &Registry{
		handlers: make(map[string]*Handler),
		factory:  factory,
	}
}

// Resolve returns the handler for sessionID, creating one on first reference.
// It never fails.
func (r *Registry) Resolve(sessionID string) *Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[sessionID]
	if !ok {
		h = r.factory()
		r.handlers[sessionID] = h
	}
	return h
}

// Reset clears the history of sessionID's handler if it exists; unknown ids
// are a no-op.
func (r *Registry) Reset(sessionID string) {
	r.mu.Lock()
	h, ok := r.handlers[sessionID]
	r.mu.Unlock()
	if ok {
		h.Reset()
	}
}

// Len reports how many sessions have been seen.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}
