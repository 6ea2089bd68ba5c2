package secrets

import (
	"context"
	"errors"

	"github.com/quantpulse/brokerauth/broker"
)

// Canonical key names under a token path.
const (
	// KeyAccessToken is an exported constant or variable used by the secret store.
	KeyAccessToken = "access_token"
	// KeyRefreshToken is an exported constant or variable used by the secret store.
	KeyRefreshToken = "refresh_token"
)

// ErrUnavailable wraps backend I/O failures.
var ErrUnavailable = errors.New("secret store unavailable")

// Store is the path-addressed secret store contract. Implementations must
// merge on Store/StoreBatch rather than replacing the whole path, and must
// be safe for concurrent use.
type Store interface {
	// Store writes one key at path, preserving sibling keys.
	Store(ctx context.Context, path, key, value string) error
	// StoreBatch merges all entries of values into path.
	StoreBatch(ctx context.Context, path string, values map[string]string) error
	// Get reads one key. The bool reports presence; absence is not an error.
	Get(ctx context.Context, path, key string) (string, bool, error)
	// GetAll reads the full map at path; an absent path yields an empty map.
	GetAll(ctx context.Context, path string) (map[string]string, error)
	// Delete removes the path and everything under it. Idempotent.
	Delete(ctx context.Context, path string) error
	// Exists reports whether anything is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// TokenPath builds the deterministic path for one user's broker tokens:
// "<backend>/<userId>/<broker-lowercase>".
func TokenPath(backend, userID string, b broker.Type) string {
	return backend + "/" + userID + "/" + b.Lower()
}
