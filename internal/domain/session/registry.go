package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultMaxSessions = 1024

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithMaxSessions bounds the number of live sessions.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.max = n
		}
	}
}

// WithIDGenerator overrides uuid-based session ids.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithClock overrides time.Now for access tracking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

type entry struct {
	mu      sync.Mutex
	s       *Session
	touched atomic.Int64 // unix nanos of the last access
}

// Registry owns live sessions and serializes access to each of them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	eval     Evaluator
	max      int
	newID    func() string
	now      func() time.Time
}

// NewRegistry returns an empty registry whose sessions are scored by eval.
func NewRegistry(eval Evaluator, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		eval:     eval,
		max:      defaultMaxSessions,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new idle session and returns its id.
func (r *Registry) Create() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.max {
		return "", fmt.Errorf("%w: limit %d", ErrRegistryFull, r.max)
	}
	id := r.newID()
	if _, exists := r.sessions[id]; exists {
		return "", fmt.Errorf("duplicate session id %q", id)
	}
	e := &entry{s: New(id, r.eval)}
	e.touched.Store(r.now().UnixNano())
	r.sessions[id] = e
	return id, nil
}

// Do runs fn with exclusive access to the session and marks it used.
func (r *Registry) Do(id string, fn func(*Session) error) error {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched.Store(r.now().UnixNano())
	return fn(e.s)
}

// Delete removes a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}

// Expire removes sessions last used before cutoff and returns how many
// were dropped.
func (r *Registry) Expire(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	limit := cutoff.UnixNano()
	for id, e := range r.sessions {
		if e.touched.Load() < limit {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
