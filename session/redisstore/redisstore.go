// Package redisstore is the production session store backend. Each session
// field lives under session:<namespace>:<key> with a TTL matching the refresh
// token's useful lifetime, so abandoned sessions age out on their own.
package redisstore

import (
	"context"
	"strings"
	"time"

	"github.com/fairhall/console/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix  = "session:"
	defaultTTL = 30 * 24 * time.Hour
	opTimeout  = 2 * time.Second
)

var (
	_ session.Store   = (*Store)(nil)
	_ session.Backend = (*Backend)(nil)
)

// Store is a Redis-backed session.Store scoped to one namespace. The Store
// contract has no error returns, so Redis failures are logged and read as
// absent; the Manager then treats the session as expired, which is the safe
// direction to fail in.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

func (s *Store) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return "", false
	}
	return v, true
}

func (s *Store) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("redis set failed")
	}
}

func (s *Store) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("redis del failed")
	}
}

// Backend provisions namespaced Redis stores.
type Backend struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

// BackendOption modifies a Backend.
type BackendOption func(*Backend)

// WithTTL overrides the default 30-day key TTL.
func WithTTL(ttl time.Duration) BackendOption {
	return func(b *Backend) {
		b.ttl = ttl
	}
}

// WithLogger sets the logger used for Redis diagnostics.
func WithLogger(logger zerolog.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// NewBackend creates a Backend over an existing Redis client.
func NewBackend(client redis.UniversalClient, options ...BackendOption) *Backend {
	b := &Backend{client: client, ttl: defaultTTL, logger: log.Logger}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *Backend) Open(namespace string) session.Store {
	return &Store{
		client: b.client,
		prefix: keyPrefix + namespace + ":",
		ttl:    b.ttl,
		logger: b.logger,
	}
}

// Namespaces scans for live session keys and returns the distinct namespaces.
func (b *Backend) Namespaces() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seen := make(map[string]struct{})
	iter := b.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), keyPrefix)
		if idx := strings.LastIndex(rest, ":"); idx > 0 {
			seen[rest[:idx]] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "[redisstore.Backend.Namespaces] scan")
	}

	names := make([]string, 0, len(seen))
	for ns := range seen {
		names = append(names, ns)
	}
	return names, nil
}

func (b *Backend) Drop(namespace string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	keys := []string{
		keyPrefix + namespace + ":" + session.KeyAccessToken,
		keyPrefix + namespace + ":" + session.KeyRefreshToken,
		keyPrefix + namespace + ":" + session.KeyUser,
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Backend.Drop] del")
	}
	return nil
}
