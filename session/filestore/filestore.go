// Package filestore persists sessions as one JSON document per namespace
// under a data folder, so sessions survive gateway restarts on single-node
// deploys. Writes go through a temp file and rename, which is as atomic as
// the medium allows.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fairhall/console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const fileExt = ".session.json"

var (
	_ session.Store   = (*Store)(nil)
	_ session.Backend = (*Backend)(nil)
)

// Store is a file-backed session.Store. The whole document is held in memory
// and flushed on every write; reads never touch the disk after load.
type Store struct {
	path   string
	logger zerolog.Logger

	lock   sync.Mutex
	values map[string]string
}

func newStore(path string, logger zerolog.Logger) *Store {
	s := &Store{path: path, logger: logger, values: make(map[string]string)}
	s.load()
	return s
}

// load reads the backing file. A missing file is an empty store; a corrupt
// file is discarded — the Store contract treats unreadable values as absent.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("session file unreadable, starting empty")
		}
		return
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("session file corrupt, discarding")
		s.values = make(map[string]string)
		_ = os.Remove(s.path)
	}
}

func (s *Store) Get(key string) (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key, value string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	s.flushLocked()
}

func (s *Store) Remove(key string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	if len(s.values) == 0 {
		_ = os.Remove(s.path)
		return
	}
	s.flushLocked()
}

func (s *Store) flushLocked() {
	data, err := json.Marshal(s.values)
	if err != nil {
		s.logger.Error().Err(err).Msg("session flush failed")
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("session flush failed")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("session flush failed")
	}
}

// Backend stores each namespace as <dir>/<namespace>.session.json.
type Backend struct {
	dir    string
	logger zerolog.Logger

	lock   sync.Mutex
	stores map[string]*Store
}

// BackendOption modifies a Backend.
type BackendOption func(*Backend)

// WithLogger sets the logger used for I/O diagnostics.
func WithLogger(logger zerolog.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// NewBackend creates the data folder if needed and returns a Backend over it.
func NewBackend(dir string, options ...BackendOption) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.NewBackend] create data folder")
	}
	b := &Backend{dir: dir, logger: log.Logger, stores: make(map[string]*Store)}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

func (b *Backend) Open(namespace string) session.Store {
	b.lock.Lock()
	defer b.lock.Unlock()
	st, ok := b.stores[namespace]
	if !ok {
		st = newStore(filepath.Join(b.dir, namespace+fileExt), b.logger)
		b.stores[namespace] = st
	}
	return st
}

func (b *Backend) Namespaces() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.Backend.Namespaces] read data folder")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	return names, nil
}

func (b *Backend) Drop(namespace string) error {
	b.lock.Lock()
	delete(b.stores, namespace)
	b.lock.Unlock()

	err := os.Remove(filepath.Join(b.dir, namespace+fileExt))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[filestore.Backend.Drop] remove session file")
	}
	return nil
}
