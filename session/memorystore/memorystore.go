// Package memorystore is the in-memory session store backend, used by tests
// and single-process development runs. Nothing survives a restart.
package memorystore

import (
	"sync"

	"github.com/fairhall/console/session"
)

var (
	_ session.Store   = (*Store)(nil)
	_ session.Backend = (*Backend)(nil)
)

// Store is a map-backed session.Store.
type Store struct {
	lock   sync.RWMutex
	values map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(key string) (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key, value string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
}

func (s *Store) Remove(key string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.values, key)
}

// Len reports the number of stored keys. Handy in tests.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.values)
}

// Backend hands out namespaced in-memory Stores.
type Backend struct {
	lock   sync.Mutex
	stores map[string]*Store
}

// NewBackend creates an empty Backend.
func NewBackend() *Backend {
	return &Backend{stores: make(map[string]*Store)}
}

func (b *Backend) Open(namespace string) session.Store {
	b.lock.Lock()
	defer b.lock.Unlock()
	st, ok := b.stores[namespace]
	if !ok {
		st = New()
		b.stores[namespace] = st
	}
	return st
}

func (b *Backend) Namespaces() ([]string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	names := make([]string, 0, len(b.stores))
	for ns, st := range b.stores {
		if st.Len() > 0 {
			names = append(names, ns)
		}
	}
	return names, nil
}

func (b *Backend) Drop(namespace string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.stores, namespace)
	return nil
}
