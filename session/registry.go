package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultPruneGrace = time.Minute

// Registry maps browser session IDs to Managers, one per Store namespace.
// Its Ready flag is what the route guard consults: until the initial restore
// from the backing store has finished, guarded views must not render.
type Registry struct {
	backend    Backend
	api        AuthAPI
	logger     zerolog.Logger
	pruneGrace time.Duration

	lock     sync.RWMutex
	sessions map[string]*sessionEntry
	ready    atomic.Bool
}

type sessionEntry struct {
	mgr     *Manager
	created time.Time
}

// RegistryOption modifies a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger passed down to restored Managers.
func WithRegistryLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithPruneGrace sets how long a new session is exempt from Prune, covering
// the window between Create and a completed login.
func WithPruneGrace(grace time.Duration) RegistryOption {
	return func(r *Registry) {
		r.pruneGrace = grace
	}
}

// NewRegistry creates a Registry. Call Restore before serving traffic.
func NewRegistry(backend Backend, api AuthAPI, options ...RegistryOption) (*Registry, error) {
	if backend == nil {
		return nil, errors.New("[NewRegistry] backend is required")
	}
	if api == nil {
		return nil, errors.New("[NewRegistry] auth API is required")
	}

	r := &Registry{
		backend:    backend,
		api:        api,
		logger:     log.Logger,
		pruneGrace: defaultPruneGrace,
		sessions:   make(map[string]*sessionEntry),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Restore loads every persisted session namespace and marks the registry
// ready. Manager construction clears namespaces holding inconsistent state,
// so a corrupted session comes back Anonymous rather than half-authenticated.
func (r *Registry) Restore() error {
	namespaces, err := r.backend.Namespaces()
	if err != nil {
		return errors.Wrap(err, "[Registry.Restore] list namespaces")
	}

	r.lock.Lock()
	for _, ns := range namespaces {
		mgr, mgrErr := NewManager(r.backend.Open(ns), r.api, WithLogger(r.logger))
		if mgrErr != nil {
			r.lock.Unlock()
			return errors.Wrapf(mgrErr, "[Registry.Restore] namespace %s", ns)
		}
		r.sessions[ns] = &sessionEntry{mgr: mgr, created: time.Now()}
	}
	r.lock.Unlock()

	r.ready.Store(true)
	r.logger.Info().Int("sessions", len(namespaces)).Msg("session registry restored")
	return nil
}

// Ready reports whether the initial restore has completed.
func (r *Registry) Ready() bool {
	return r.ready.Load()
}

// Create provisions a new session namespace and returns its ID and Manager.
func (r *Registry) Create() (string, *Manager, error) {
	id := uuid.NewString()
	mgr, err := NewManager(r.backend.Open(id), r.api, WithLogger(r.logger))
	if err != nil {
		return "", nil, errors.Wrap(err, "[Registry.Create] new manager")
	}

	r.lock.Lock()
	r.sessions[id] = &sessionEntry{mgr: mgr, created: time.Now()}
	r.lock.Unlock()
	return id, mgr, nil
}

// Get returns the Manager for a session ID.
func (r *Registry) Get(id string) (*Manager, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return entry.mgr, true
}

// Delete tears a session down: local state first, then the best-effort server
// notification via the Manager, then the backing namespace.
func (r *Registry) Delete(ctx context.Context, id string) {
	r.lock.Lock()
	entry, ok := r.sessions[id]
	delete(r.sessions, id)
	r.lock.Unlock()

	if ok {
		entry.mgr.Logout(ctx)
	}
	if err := r.backend.Drop(id); err != nil {
		r.logger.Warn().Err(err).Str("session_id", id).Msg("failed to drop session namespace")
	}
}

// Prune removes sessions that are no longer authenticated, typically because
// their namespace aged out of the backing store (cookie or redis TTL).
// Sessions younger than the prune grace are left alone so a login in progress
// is never swept away. Returns the removed IDs so callers can release
// per-session resources keyed on them.
func (r *Registry) Prune() []string {
	cutoff := time.Now().Add(-r.pruneGrace)

	r.lock.Lock()
	var removed []string
	for id, entry := range r.sessions {
		if entry.created.After(cutoff) || entry.mgr.IsAuthenticated() {
			continue
		}
		delete(r.sessions, id)
		removed = append(removed, id)
	}
	r.lock.Unlock()

	for _, id := range removed {
		if err := r.backend.Drop(id); err != nil {
			r.logger.Warn().Err(err).Str("session_id", id).Msg("failed to drop pruned namespace")
		}
	}
	if len(removed) > 0 {
		r.logger.Info().Int("sessions", len(removed)).Msg("pruned expired sessions")
	}
	return removed
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}
