package session

// The three fields that make up a persisted session. The names match the keys
// the platform's web clients have always used, so a store can be inspected
// with ordinary tooling.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Store is durable key-value persistence for one logical session. It is
// deliberately free of logic and of error returns: a corrupt or missing value
// reads as absent, writes overwrite unconditionally, and Remove of an absent
// key is a no-op. Implementations backed by fallible media log failures and
// degrade to absent rather than surfacing errors to callers.
type Store interface {
	// Get returns the value for key, or false if it is missing or unreadable.
	Get(key string) (string, bool)

	// Set overwrites key with value.
	Set(key, value string)

	// Remove deletes key. Idempotent.
	Remove(key string)
}

// Backend provisions per-session Stores. Each namespace holds exactly one
// logical session; the gateway uses the browser session ID as the namespace.
type Backend interface {
	// Open returns the Store for a namespace, creating it if needed.
	Open(namespace string) Store

	// Namespaces lists the namespaces that currently hold data, so sessions
	// survive a gateway restart.
	Namespaces() ([]string, error)

	// Drop removes a namespace and everything in it.
	Drop(namespace string) error
}
