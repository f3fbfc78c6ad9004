package session

import (
	"context"
	"sync"

	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

// Registry tracks one Manager per live session and routes request-path
// signals (activity, extension, snapshots) to the right one. Expired and
// stopped managers remove themselves when their Run loop returns.
type Registry struct {
	metrics *Metrics

	mu       sync.RWMutex
	managers map[id.SessionID]*Manager
}

type RegistryOption func(*Registry)

func WithRegistryMetrics(metrics *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		managers: make(map[id.SessionID]*Manager),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Manage registers a started manager and runs its periodic checks until it
// expires, stops, or ctx is cancelled, then forgets it.
func (r *Registry) Manage(ctx context.Context, m *Manager) {
	sessionID := m.Snapshot().SessionID

	r.mu.Lock()
	r.managers[sessionID] = m
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ManagerStarted()
	}

	go func() {
		m.Run(ctx)

		r.mu.Lock()
		delete(r.managers, sessionID)
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.ManagerStopped()
		}
	}()
}

// Get returns the manager for a session, if it is still tracked.
func (r *Registry) Get(sessionID id.SessionID) (*Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[sessionID]
	return m, ok
}

// Touch routes an activity signal. Unknown sessions are ignored: the
// manager may already have expired between the request entering the stack
// and reaching here.
func (r *Registry) Touch(ctx context.Context, sessionID id.SessionID) {
	if m, ok := r.Get(sessionID); ok {
		m.Touch(ctx)
	}
}

// Extend routes an extension request to the session's manager.
func (r *Registry) Extend(ctx context.Context, sessionID id.SessionID) (Snapshot, error) {
	m, ok := r.Get(sessionID)
	if !ok {
		return Snapshot{}, dErrors.New(dErrors.CodeNotFound, "no active session manager")
	}
	if _, err := m.Extend(ctx); err != nil {
		return Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// Snapshot returns the state of one managed session.
func (r *Registry) Snapshot(sessionID id.SessionID) (Snapshot, error) {
	m, ok := r.Get(sessionID)
	if !ok {
		return Snapshot{}, dErrors.New(dErrors.CodeNotFound, "no active session manager")
	}
	return m.Snapshot(), nil
}

// Remove stops a session's manager, for explicit sign-out. The Run loop
// then deletes the registry entry.
func (r *Registry) Remove(sessionID id.SessionID) {
	if m, ok := r.Get(sessionID); ok {
		m.Stop()
	}
}

// StopAll stops every tracked manager, for graceful shutdown.
func (r *Registry) StopAll() {
	r.mu.RLock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.RUnlock()

	for _, m := range managers {
		m.Stop()
	}
}

// Len reports how many managers are currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}
