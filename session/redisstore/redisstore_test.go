package redisstore_test

import (
	"os"
	"testing"

	"github.com/fairhall/console/session"
	"github.com/fairhall/console/session/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// These tests need a live Redis. Set TEST_REDIS_ADDR (e.g. localhost:6379)
// to run them.
func testClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	return redis.NewClient(&redis.Options{Addr: addr, DB: 15})
}

func TestStore_RoundTrip(t *testing.T) {
	client := testClient(t)
	backend := redisstore.NewBackend(client)
	t.Cleanup(func() { _ = backend.Drop("it-sid-1") })

	st := backend.Open("it-sid-1")
	st.Set(session.KeyAccessToken, "tok")

	v, ok := st.Get(session.KeyAccessToken)
	require.True(t, ok)
	require.Equal(t, "tok", v)

	st.Remove(session.KeyAccessToken)
	_, ok = st.Get(session.KeyAccessToken)
	require.False(t, ok)
}

func TestBackend_Namespaces(t *testing.T) {
	client := testClient(t)
	backend := redisstore.NewBackend(client)
	t.Cleanup(func() {
		_ = backend.Drop("it-sid-a")
		_ = backend.Drop("it-sid-b")
	})

	backend.Open("it-sid-a").Set(session.KeyAccessToken, "a")
	backend.Open("it-sid-b").Set(session.KeyRefreshToken, "b")

	names, err := backend.Namespaces()
	require.NoError(t, err)
	require.Subset(t, names, []string{"it-sid-a", "it-sid-b"})
}
