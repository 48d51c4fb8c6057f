package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Factory builds a new session for id.
type Factory func(id string) *Session

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry keeps sessions in memory, keyed by id, and evicts the ones that
// have been idle for longer than the configured timeout. Nothing survives a
// restart.
type Registry struct {
	factory     Factory
	idleTimeout time.Duration
	lg          *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry(factory Factory, idleTimeout time.Duration, lg *zap.Logger) *Registry {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Registry{
		factory:     factory,
		idleTimeout: idleTimeout,
		lg:          lg,
		now:         time.Now,
		sessions:    make(map[string]*entry),
	}
}

// Get returns the session for id and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// GetOrCreate returns the session for id, creating it when absent. An empty
// id always creates a session with a fresh random id. The second result
// reports whether a session was created.
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if e, ok := r.sessions[id]; ok {
			e.lastSeen = r.now()
			return e.session, false
		}
	} else {
		id = uuid.New().String()
	}

	s := r.factory(id)
	r.sessions[id] = &entry{session: s, lastSeen: r.now()}
	r.lg.Debug("Session created", zap.String("session", id))
	return s, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Sweep evicts sessions idle since before now-idleTimeout. Sessions with a
// payment in flight are kept until it settles.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) < r.idleTimeout || e.session.Busy() {
			continue
		}
		e.session.Close()
		delete(r.sessions, id)
		evicted++
	}
	if evicted > 0 {
		r.lg.Debug("Evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

// StartSweeper evicts idle sessions every interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}

// Close closes every session and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		e.session.Close()
		delete(r.sessions, id)
	}
}
